package providers

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

const (
	deepInfraBaseURL = "https://api.deepinfra.com/v1/openai"
	xaiBaseURL       = "https://api.x.ai/v1"
)

// OpenAICompatible serves every upstream that speaks the OpenAI images API.
type OpenAICompatible struct {
	client *openai.Client
}

// NewOpenAI returns a client for api.openai.com.
func NewOpenAI(apiKey string, opts ...Option) *OpenAICompatible {
	return newOpenAICompatible(apiKey, "", opts)
}

// NewDeepInfra returns a client for DeepInfra's OpenAI-compatible endpoint.
func NewDeepInfra(apiKey string, opts ...Option) *OpenAICompatible {
	return newOpenAICompatible(apiKey, deepInfraBaseURL, opts)
}

// NewXAI returns a client for the xAI API.
func NewXAI(apiKey string, opts ...Option) *OpenAICompatible {
	return newOpenAICompatible(apiKey, xaiBaseURL, opts)
}

func newOpenAICompatible(apiKey, baseURL string, opts []Option) *OpenAICompatible {
	o := buildOptions(baseURL, opts)
	cfg := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if o.httpClient != nil {
		cfg.HTTPClient = o.httpClient
	}
	return &OpenAICompatible{client: openai.NewClientWithConfig(cfg)}
}

func (c *OpenAICompatible) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	imgReq := openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          req.Model,
		N:              1,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	}
	if req.Size != "" {
		imgReq.Size = req.Size
	}

	resp, err := c.client.CreateImage(ctx, imgReq)
	if err != nil {
		return nil, err
	}

	images := make([]Image, 0, len(resp.Data))
	for _, d := range resp.Data {
		images = append(images, Image{Base64: d.B64JSON, URL: d.URL})
	}
	return &ImageResponse{Images: images}, nil
}
