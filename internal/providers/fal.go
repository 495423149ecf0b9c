package providers

import (
	"context"

	"github.com/go-resty/resty/v2"
)

const falBaseURL = "https://fal.run"

// FAL runs models synchronously on fal.run. Model ids are given without the
// "fal-ai/" namespace, which the client adds back to the path.
type FAL struct {
	rest *resty.Client
}

func NewFAL(apiKey string, opts ...Option) *FAL {
	o := buildOptions(falBaseURL, opts)
	return &FAL{rest: newRestClient(o).SetHeader("Authorization", "Key "+apiKey)}
}

type falImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type falRequest struct {
	Prompt    string        `json:"prompt"`
	NumImages int           `json:"num_images"`
	ImageSize *falImageSize `json:"image_size,omitempty"`
}

type falResponse struct {
	Images []struct {
		URL         string `json:"url"`
		ContentType string `json:"content_type"`
	} `json:"images"`
}

func (f *FAL) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	body := falRequest{Prompt: req.Prompt, NumImages: 1}
	if w, h, ok := parseSize(req.Size); ok {
		body.ImageSize = &falImageSize{Width: w, Height: h}
	}

	var out falResponse
	resp, err := f.rest.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/fal-ai/" + req.Model)
	if err != nil {
		return nil, transportError("fal", err)
	}
	if resp.IsError() {
		return nil, responseError("fal", resp)
	}

	images := make([]Image, 0, len(out.Images))
	for _, img := range out.Images {
		images = append(images, Image{URL: img.URL})
	}
	return &ImageResponse{Images: images}, nil
}
