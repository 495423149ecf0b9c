package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordGeneration(t *testing.T) {
	before := testutil.ToFloat64(GenerationsTotal.WithLabelValues("flux-dev", "fal", "success"))
	RecordGeneration("flux-dev", "fal", "success", 2*time.Second)
	RecordGeneration("flux-dev", "fal", "success", 0)
	assert.Equal(t, before+2, testutil.ToFloat64(GenerationsTotal.WithLabelValues("flux-dev", "fal", "success")))
}

func TestRecordCredits(t *testing.T) {
	debited := testutil.ToFloat64(CreditsDebitedTotal)
	refunded := testutil.ToFloat64(CreditsRefundedTotal)
	RecordDebit(10)
	RecordRefund(10)
	assert.Equal(t, debited+10, testutil.ToFloat64(CreditsDebitedTotal))
	assert.Equal(t, refunded+10, testutil.ToFloat64(CreditsRefundedTotal))
}

func TestRecordRequest(t *testing.T) {
	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("POST", "/api/ai/generate", "402"))
	RecordRequest("POST", "/api/ai/generate", 402, 15*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(RequestsTotal.WithLabelValues("POST", "/api/ai/generate", "402")))
}
