package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

const replicateBaseURL = "https://api.replicate.com/v1"

// Replicate creates a prediction, waiting synchronously when the API allows
// it and polling otherwise.
type Replicate struct {
	rest *resty.Client
	opts options
}

func NewReplicate(apiKey string, opts ...Option) *Replicate {
	o := buildOptions(replicateBaseURL, opts)
	return &Replicate{rest: newRestClient(o).SetAuthToken(apiKey), opts: o}
}

type replicateRequest struct {
	Version string         `json:"version,omitempty"`
	Input   map[string]any `json:"input"`
}

type replicatePrediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
}

func (r *Replicate) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	input := map[string]any{"prompt": req.Prompt}
	if req.Size != "" {
		input["aspect_ratio"] = aspectRatio(req.Size)
	}

	body := replicateRequest{Input: input}
	path := "/models/" + req.Model + "/predictions"
	// owner/name:version ids go through the versioned endpoint.
	if name, version, ok := strings.Cut(req.Model, ":"); ok && name != "" {
		body.Version = version
		path = "/predictions"
	}

	var created replicatePrediction
	resp, err := r.rest.R().
		SetContext(ctx).
		SetHeader("Prefer", "wait").
		SetBody(body).
		SetResult(&created).
		Post(path)
	if err != nil {
		return nil, transportError("replicate", err)
	}
	if resp.IsError() {
		return nil, responseError("replicate", resp)
	}

	pred := &created
	if !replicateTerminal(pred.Status) {
		pred, err = pollTask(ctx, r.opts, func(ctx context.Context, attempt int) (*replicatePrediction, bool, error) {
			var out replicatePrediction
			resp, err := r.rest.R().
				SetContext(ctx).
				SetResult(&out).
				Get("/predictions/" + created.ID)
			if err != nil {
				return nil, false, transportError("replicate", err)
			}
			if resp.IsError() {
				return nil, false, responseError("replicate", resp)
			}
			return &out, replicateTerminal(out.Status), nil
		})
		if err != nil {
			return nil, err
		}
	}

	if pred.Status != "succeeded" {
		msg := strings.Trim(string(pred.Error), `"`)
		if msg == "" || msg == "null" {
			msg = "prediction " + pred.Status
		}
		raw, _ := json.Marshal(map[string]any{"error": map[string]string{"message": msg}})
		return nil, &APIError{Provider: "replicate", Body: raw, Message: msg}
	}

	urls, err := replicateOutputURLs(pred.Output)
	if err != nil {
		return nil, err
	}
	images := make([]Image, 0, len(urls))
	for _, u := range urls {
		images = append(images, Image{URL: u})
	}
	return &ImageResponse{Images: images}, nil
}

func replicateTerminal(status string) bool {
	switch status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}

// replicateOutputURLs accepts either a single URL or a list of URLs.
func replicateOutputURLs(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode replicate output: %w", err)
	}
	return list, nil
}
