package providers

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

const lumaBaseURL = "https://api.lumalabs.ai/dream-machine/v1"

// Luma creates an image generation and polls it until it completes.
type Luma struct {
	rest *resty.Client
	opts options
}

func NewLuma(apiKey string, opts ...Option) *Luma {
	o := buildOptions(lumaBaseURL, opts)
	return &Luma{rest: newRestClient(o).SetAuthToken(apiKey), opts: o}
}

type lumaRequest struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

type lumaGeneration struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	FailureReason string `json:"failure_reason"`
	Assets        struct {
		Image string `json:"image"`
	} `json:"assets"`
}

func (l *Luma) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	id, err := l.createGeneration(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create generation: %w", err)
	}

	gen, err := pollTask(ctx, l.opts, func(ctx context.Context, attempt int) (*lumaGeneration, bool, error) {
		var out lumaGeneration
		resp, err := l.rest.R().
			SetContext(ctx).
			SetResult(&out).
			Get("/generations/" + id)
		if err != nil {
			return nil, false, transportError("luma", err)
		}
		if resp.IsError() {
			return nil, false, responseError("luma", resp)
		}
		switch out.State {
		case "completed":
			l.opts.log.Debug("luma generation completed", "id", id, "attempt", attempt+1)
			return &out, true, nil
		case "failed":
			reason := out.FailureReason
			if reason == "" {
				reason = "unknown error"
			}
			return nil, false, &APIError{Provider: "luma", Body: resp.Body(), Message: "generation failed: " + reason}
		case "queued", "dreaming", "pending", "":
			if attempt%10 == 0 {
				l.opts.log.Debug("luma generation waiting", "id", id, "state", out.State, "attempt", attempt+1)
			}
			return nil, false, nil
		default:
			return nil, false, fmt.Errorf("unknown generation state: %s", out.State)
		}
	})
	if err != nil {
		return nil, err
	}

	if gen.Assets.Image == "" {
		return &ImageResponse{}, nil
	}
	return &ImageResponse{Image: &Image{URL: gen.Assets.Image}}, nil
}

func (l *Luma) createGeneration(ctx context.Context, req ImageRequest) (string, error) {
	body := lumaRequest{Prompt: req.Prompt, Model: req.Model}
	if req.Size != "" {
		body.AspectRatio = aspectRatio(req.Size)
	}

	var out lumaGeneration
	resp, err := l.rest.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/generations/image")
	if err != nil {
		return "", transportError("luma", err)
	}
	if resp.IsError() {
		return "", responseError("luma", resp)
	}
	if out.ID == "" {
		return "", &APIError{Provider: "luma", StatusCode: resp.StatusCode(), Body: resp.Body(), Message: "empty generation id in response"}
	}
	l.opts.log.Debug("luma generation created", "id", out.ID, "model", req.Model)
	return out.ID, nil
}
