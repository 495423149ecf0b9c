package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/digkill/ImageForge/internal/providers"
)

const defaultProviderMessage = "Failed to generate image"

// ProviderErrorMessage extracts the most specific human-readable message from
// a provider failure. The first non-empty candidate wins.
func ProviderErrorMessage(err error) string {
	if err == nil {
		return defaultProviderMessage
	}

	msg := firstNonEmpty(
		func() string { return bodyString(err, "error", "message") },
		func() string { return bodyString(err, "message") },
		func() string { return bodyString(err, "detail") },
		func() string { return sdkMessage(err) },
		func() string { return ownMessage(err) },
		func() string { return responseErrorField(err) },
	)
	if msg == "" {
		msg = defaultProviderMessage
	}

	if cause := errorCause(err); cause != nil {
		msg = fmt.Sprintf("%s (Cause: %v)", msg, cause)
	}
	return msg
}

func firstNonEmpty(candidates ...func() string) string {
	for _, c := range candidates {
		if s := strings.TrimSpace(c()); s != "" {
			return s
		}
	}
	return ""
}

// bodyString walks a JSON object path in the upstream response body and
// returns the value when it is a string.
func bodyString(err error, path ...string) string {
	var apiErr *providers.APIError
	if !errors.As(err, &apiErr) || len(apiErr.Body) == 0 {
		return ""
	}
	v, ok := lookup(apiErr.Body, path...)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func sdkMessage(err error) string {
	var oaErr *openai.APIError
	if errors.As(err, &oaErr) {
		return oaErr.Message
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.Err != nil && len(reqErr.Body) == 0 {
		return reqErr.Err.Error()
	}
	return ""
}

func ownMessage(err error) string {
	var apiErr *providers.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return ""
	}
	return err.Error()
}

// responseErrorField reads the "error" member of a raw response body, either
// as a string or re-encoded as JSON.
func responseErrorField(err error) string {
	var body []byte
	var apiErr *providers.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		body = apiErr.Body
	case errors.As(err, &reqErr):
		body = reqErr.Body
	}
	if len(body) == 0 {
		return ""
	}

	v, ok := lookup(body, "error")
	if !ok || v == nil {
		return ""
	}
	if m, isObj := v.(map[string]any); isObj {
		if s, isStr := m["message"].(string); isStr && s != "" {
			return s
		}
	}
	if s, isStr := v.(string); isStr {
		return s
	}
	encoded, mErr := json.Marshal(v)
	if mErr != nil {
		return ""
	}
	return string(encoded)
}

func errorCause(err error) error {
	var apiErr *providers.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Cause
	}
	return nil
}

func lookup(body []byte, path ...string) (any, bool) {
	var cur any
	if err := json.Unmarshal(body, &cur); err != nil {
		return nil, false
	}
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
