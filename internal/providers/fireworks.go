package providers

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/go-resty/resty/v2"
)

const fireworksBaseURL = "https://api.fireworks.ai/inference/v1"

// fireworksWorkflowModels are served by the workflow endpoint and take an
// aspect ratio instead of explicit dimensions.
var fireworksWorkflowModels = map[string]bool{
	"accounts/fireworks/models/flux-1-dev-fp8":     true,
	"accounts/fireworks/models/flux-1-schnell-fp8": true,
}

// Fireworks returns raw image bytes from its inference endpoints.
type Fireworks struct {
	rest *resty.Client
}

func NewFireworks(apiKey string, opts ...Option) *Fireworks {
	o := buildOptions(fireworksBaseURL, opts)
	rest := newRestClient(o).
		SetAuthToken(apiKey).
		SetHeader("Accept", "image/*")
	return &Fireworks{rest: rest}
}

type fireworksRequest struct {
	Prompt      string `json:"prompt"`
	Samples     int    `json:"samples"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

func (f *Fireworks) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	body := fireworksRequest{Prompt: req.Prompt, Samples: 1}
	path := "/image_generation/" + req.Model
	workflow := fireworksWorkflowModels[req.Model]
	if workflow {
		path = "/workflows/" + req.Model + "/text_to_image"
	}
	if req.Size != "" {
		if workflow {
			body.AspectRatio = aspectRatio(req.Size)
		} else if w, h, ok := parseSize(req.Size); ok {
			body.Width, body.Height = w, h
		}
	}

	resp, err := f.rest.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		return nil, transportError("fireworks", err)
	}
	if resp.IsError() {
		return nil, responseError("fireworks", resp)
	}
	if strings.HasPrefix(resp.Header().Get("Content-Type"), "application/json") {
		return nil, &APIError{Provider: "fireworks", StatusCode: resp.StatusCode(), Body: resp.Body(), Message: "unexpected JSON response"}
	}
	if len(resp.Body()) == 0 {
		return &ImageResponse{}, nil
	}

	return &ImageResponse{Image: &Image{Base64: base64.StdEncoding.EncodeToString(resp.Body())}}, nil
}
