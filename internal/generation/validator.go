package generation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/digkill/ImageForge/internal/registry"
)

// AllowedSizes is the request-level size enum, checked before the model is known.
var AllowedSizes = []string{"256x256", "512x512", "768x768", "1024x1024", "1024x1792", "1792x1024"}

// Request is a validated generation request. Prompt is kept as sent.
type Request struct {
	Prompt  string
	Model   string
	Size    string
	HasSize bool
}

// Validate decodes the raw body and applies the field rules in order; the
// first failing rule is returned.
func Validate(raw []byte) (Request, *Error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil || body == nil {
		return Request{}, ErrInvalidBody(err)
	}

	prompt, ok := stringField(body, "prompt")
	if !ok || strings.TrimSpace(prompt) == "" {
		return Request{}, newError(CodePromptRequired, http.StatusBadRequest, "Prompt is required")
	}

	model, ok := stringField(body, "model")
	if !ok || model == "" {
		return Request{}, newError(CodeModelRequired, http.StatusBadRequest, "Model is required")
	}

	req := Request{Prompt: prompt, Model: model}

	rawSize, present := body["size"]
	if !present || isFalsy(rawSize) {
		return req, nil
	}
	size, ok := stringField(body, "size")
	if !ok || !slices.Contains(AllowedSizes, size) {
		shown := size
		if !ok {
			shown = string(bytes.TrimSpace(rawSize))
		}
		return Request{}, newError(CodeInvalidSize, http.StatusBadRequest, fmt.Sprintf("Unsupported size option: %s", shown))
	}
	req.Size = size
	req.HasSize = true
	return req, nil
}

// CheckModelSize rejects a size the resolved model does not list. Only used
// when strict size checking is enabled.
func CheckModelSize(model registry.Model, req Request) *Error {
	if !req.HasSize || model.SupportsSize(req.Size) {
		return nil
	}
	return ErrUnsupportedSize(req.Size, model.ID, model.SupportedSizes)
}

func stringField(body map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := body[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// isFalsy treats null, false, 0 and "" as an omitted field.
func isFalsy(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "null", "false", "0", `""`:
		return true
	}
	return false
}
