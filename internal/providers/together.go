package providers

import (
	"context"

	"github.com/go-resty/resty/v2"
)

const togetherBaseURL = "https://api.together.xyz/v1"

// TogetherAI calls the /images/generations endpoint with explicit dimensions.
type TogetherAI struct {
	rest *resty.Client
}

func NewTogetherAI(apiKey string, opts ...Option) *TogetherAI {
	o := buildOptions(togetherBaseURL, opts)
	return &TogetherAI{rest: newRestClient(o).SetAuthToken(apiKey)}
}

type togetherRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
}

type togetherResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
}

func (t *TogetherAI) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	body := togetherRequest{
		Model:          req.Model,
		Prompt:         req.Prompt,
		N:              1,
		ResponseFormat: "base64",
	}
	if w, h, ok := parseSize(req.Size); ok {
		body.Width, body.Height = w, h
	}

	var out togetherResponse
	resp, err := t.rest.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/images/generations")
	if err != nil {
		return nil, transportError("togetherai", err)
	}
	if resp.IsError() {
		return nil, responseError("togetherai", resp)
	}

	images := make([]Image, 0, len(out.Data))
	for _, d := range out.Data {
		images = append(images, Image{Base64: d.B64JSON, URL: d.URL})
	}
	return &ImageResponse{Images: images}, nil
}
