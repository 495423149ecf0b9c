package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ImageRequest is the provider-neutral generation call. An empty Size means
// the caller did not ask for one and nothing is sent upstream.
type ImageRequest struct {
	Model  string
	Prompt string
	Size   string
}

// Image is one generated image in whichever shape the upstream returned it.
type Image struct {
	Base64  string
	URL     string
	DataURL func() (string, error)
}

// ImageResponse carries either a single image or a list of images.
type ImageResponse struct {
	Image  *Image
	Images []Image
}

// Generator is implemented by every provider client.
type Generator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error)
}

// APIError is returned when an upstream answers with a failure.
type APIError struct {
	Provider   string
	StatusCode int
	Body       []byte
	Message    string
	Cause      error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = truncateBody(e.Body)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status=%d: %s", e.Provider, e.StatusCode, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

type options struct {
	baseURL      string
	httpClient   *http.Client
	timeout      time.Duration
	pollInterval time.Duration
	maxAttempts  int
	log          *slog.Logger
}

// Option customises a provider client.
type Option func(*options)

// WithBaseURL points the client at a different API root.
func WithBaseURL(baseURL string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithPolling sets the poll cadence for asynchronous providers.
func WithPolling(interval time.Duration, maxAttempts int) Option {
	return func(o *options) {
		o.pollInterval = interval
		o.maxAttempts = maxAttempts
	}
}

// WithLogger attaches a logger used for task progress.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

func buildOptions(defaultBaseURL string, opts []Option) options {
	o := options{
		baseURL:      defaultBaseURL,
		timeout:      2 * time.Minute,
		pollInterval: 2 * time.Second,
		maxAttempts:  60,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newRestClient(o options) *resty.Client {
	var c *resty.Client
	if o.httpClient != nil {
		c = resty.NewWithClient(o.httpClient)
	} else {
		c = resty.New().SetTimeout(o.timeout)
	}
	return c.SetBaseURL(o.baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
}

// responseError keeps the raw body of a failed call. Message is left empty for
// JSON bodies so callers read the structured fields instead.
func responseError(provider string, resp *resty.Response) *APIError {
	e := &APIError{
		Provider:   provider,
		StatusCode: resp.StatusCode(),
		Body:       resp.Body(),
	}
	var fields map[string]json.RawMessage
	if json.Unmarshal(resp.Body(), &fields) != nil {
		e.Message = truncateBody(resp.Body())
		if e.Message == "" {
			e.Message = resp.Status()
		}
	}
	return e
}

// transportError wraps a failure to reach the upstream at all.
func transportError(provider string, err error) *APIError {
	return &APIError{Provider: provider, Message: "Cannot connect to API", Cause: err}
}

// parseSize splits "<w>x<h>".
func parseSize(size string) (int, int, bool) {
	w, h, ok := strings.Cut(size, "x")
	if !ok {
		return 0, 0, false
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return 0, 0, false
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return 0, 0, false
	}
	return width, height, true
}

// aspectRatio maps a size onto the coarse ratios most providers accept.
func aspectRatio(size string) string {
	w, h, ok := parseSize(size)
	if !ok {
		return ""
	}
	switch {
	case w == h:
		return "1:1"
	case w > h:
		return "16:9"
	default:
		return "9:16"
	}
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
