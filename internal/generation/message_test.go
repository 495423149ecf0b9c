package generation

import (
	"errors"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"

	"github.com/digkill/ImageForge/internal/providers"
)

func TestProviderErrorMessage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "Failed to generate image"},
		{
			"body error message",
			&providers.APIError{StatusCode: 400, Body: []byte(`{"error":{"message":"Invalid prompt"},"message":"outer"}`)},
			"Invalid prompt",
		},
		{
			"body message",
			&providers.APIError{StatusCode: 422, Body: []byte(`{"message":"Prompt too long"}`)},
			"Prompt too long",
		},
		{
			"body detail",
			&providers.APIError{StatusCode: 422, Body: []byte(`{"detail":"Unprocessable prompt"}`)},
			"Unprocessable prompt",
		},
		{
			"openai sdk error",
			&openai.APIError{HTTPStatusCode: http.StatusBadRequest, Message: "Your request was rejected"},
			"Your request was rejected",
		},
		{
			"own message for text body",
			&providers.APIError{StatusCode: 502, Body: []byte("Bad Gateway"), Message: "Bad Gateway"},
			"Bad Gateway",
		},
		{
			"plain error",
			errors.New("socket hang up"),
			"socket hang up",
		},
		{
			"response error string",
			&providers.APIError{StatusCode: 401, Body: []byte(`{"error":"Invalid API key"}`)},
			"Invalid API key",
		},
		{
			"response error object",
			&providers.APIError{StatusCode: 500, Body: []byte(`{"error":{"code":17}}`)},
			`{"code":17}`,
		},
		{
			"openai request error body",
			&openai.RequestError{HTTPStatusCode: 401, Body: []byte(`{"error":"bad key"}`)},
			"bad key",
		},
		{
			"nothing usable",
			&providers.APIError{StatusCode: 500, Body: []byte(`{"status":"failed"}`)},
			"Failed to generate image",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ProviderErrorMessage(tc.err))
		})
	}
}

func TestProviderErrorMessageAppendsCause(t *testing.T) {
	err := &providers.APIError{Provider: "fal", Message: "Cannot connect to API", Cause: errors.New("connection refused")}
	assert.Equal(t, "Cannot connect to API (Cause: connection refused)", ProviderErrorMessage(err))
}
