package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewArchiveWithoutBucketIsNoop(t *testing.T) {
	a, err := NewArchive(Config{})
	require.NoError(t, err)
	assert.False(t, a.Enabled())
	assert.NoError(t, a.Record(context.Background(), AuditRecord{UserID: "u1"}))

	var nilArchive *Archive
	assert.NoError(t, nilArchive.Record(context.Background(), AuditRecord{}))
}

func TestNewArchiveValidatesConfig(t *testing.T) {
	_, err := NewArchive(Config{Bucket: "audit"})
	assert.ErrorContains(t, err, "region")

	_, err = NewArchive(Config{Bucket: "audit", Region: "us-east-1"})
	assert.ErrorContains(t, err, "credentials")
}

func TestArchiveRecordPutsJSONLines(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		gotKey string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, gotKey, body = r.Method, r.URL.Path, string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, err := NewArchive(Config{
		Endpoint:     srv.URL,
		Region:       "us-east-1",
		AccessKey:    "key",
		SecretKey:    "secret",
		Bucket:       "audit",
		UsePathStyle: true,
		Prefix:       "/generations/",
	})
	require.NoError(t, err)

	err = a.Record(context.Background(), AuditRecord{
		ID:        "rec-1",
		UserID:    "u1",
		Model:     "dall-e-3",
		Provider:  "openai",
		Cost:      10,
		Outcome:   "success",
		CreatedAt: time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/audit/generations/2024/03/07/rec-1.jsonl", gotKey)
	assert.Contains(t, body, `"model":"dall-e-3"`)
	assert.Contains(t, body, `"outcome":"success"`)
}

func TestArchiveRecordUploadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<Error><Code>AccessDenied</Code><Message>denied</Message></Error>`))
	}))
	defer srv.Close()

	a, err := NewArchive(Config{
		Endpoint: srv.URL, Region: "us-east-1", AccessKey: "k", SecretKey: "s",
		Bucket: "audit", UsePathStyle: true,
	})
	require.NoError(t, err)

	err = a.Record(context.Background(), AuditRecord{UserID: "u1"})
	assert.ErrorContains(t, err, "upload audit record")
}
