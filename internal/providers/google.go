package providers

import (
	"context"
	"net/url"

	"github.com/go-resty/resty/v2"
)

const googleBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Google calls the Imagen predict endpoint.
type Google struct {
	rest   *resty.Client
	apiKey string
}

func NewGoogle(apiKey string, opts ...Option) *Google {
	o := buildOptions(googleBaseURL, opts)
	return &Google{rest: newRestClient(o), apiKey: apiKey}
}

type imagenRequest struct {
	Instances  []imagenInstance `json:"instances"`
	Parameters imagenParameters `json:"parameters"`
}

type imagenInstance struct {
	Prompt string `json:"prompt"`
}

type imagenParameters struct {
	SampleCount int    `json:"sampleCount"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type imagenResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
}

func (g *Google) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	body := imagenRequest{
		Instances:  []imagenInstance{{Prompt: req.Prompt}},
		Parameters: imagenParameters{SampleCount: 1},
	}
	if req.Size != "" {
		body.Parameters.AspectRatio = aspectRatio(req.Size)
	}

	var out imagenResponse
	resp, err := g.rest.R().
		SetContext(ctx).
		SetHeader("x-goog-api-key", g.apiKey).
		SetBody(body).
		SetResult(&out).
		Post("/models/" + url.PathEscape(req.Model) + ":predict")
	if err != nil {
		return nil, transportError("google", err)
	}
	if resp.IsError() {
		return nil, responseError("google", resp)
	}

	images := make([]Image, 0, len(out.Predictions))
	for _, p := range out.Predictions {
		images = append(images, Image{Base64: p.BytesBase64Encoded})
	}
	return &ImageResponse{Images: images}, nil
}
