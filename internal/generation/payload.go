package generation

import (
	"errors"
	"strings"

	"github.com/digkill/ImageForge/internal/providers"
)

// PayloadKind tells how the generated image is carried.
type PayloadKind int

const (
	PayloadBase64 PayloadKind = iota + 1
	PayloadDataURL
	PayloadRemoteURL
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadBase64:
		return "base64"
	case PayloadDataURL:
		return "data_url"
	case PayloadRemoteURL:
		return "remote_url"
	default:
		return "unknown"
	}
}

// ErrEmptyResult is returned when a provider answers without any image.
var ErrEmptyResult = errors.New("provider returned no image")

// Payload is the normalized image result.
type Payload struct {
	Kind   PayloadKind
	Base64 string
	URL    string
}

// ImageURL returns something a browser can render directly.
func (p Payload) ImageURL() string {
	if p.Kind == PayloadBase64 {
		return "data:image/png;base64," + p.Base64
	}
	return p.URL
}

// Base64Value returns the raw base64 image data when it is known.
func (p Payload) Base64Value() string {
	return p.Base64
}

// normalize picks the single image out of whatever shape the provider used.
func normalize(resp *providers.ImageResponse) (Payload, error) {
	if resp == nil {
		return Payload{}, ErrEmptyResult
	}
	if resp.Image != nil {
		p, ok, err := fromImage(*resp.Image)
		if err != nil || ok {
			return p, err
		}
	}
	if len(resp.Images) > 0 {
		p, ok, err := fromImage(resp.Images[0])
		if err != nil || ok {
			return p, err
		}
	}
	return Payload{}, ErrEmptyResult
}

func fromImage(img providers.Image) (Payload, bool, error) {
	if img.Base64 != "" {
		return Payload{Kind: PayloadBase64, Base64: img.Base64}, true, nil
	}
	if img.DataURL != nil {
		u, err := img.DataURL()
		if err != nil {
			return Payload{}, false, err
		}
		if u != "" {
			return dataURLPayload(u), true, nil
		}
	}
	if img.URL != "" {
		if strings.HasPrefix(img.URL, "data:") {
			return dataURLPayload(img.URL), true, nil
		}
		return Payload{Kind: PayloadRemoteURL, URL: img.URL}, true, nil
	}
	return Payload{}, false, nil
}

func dataURLPayload(u string) Payload {
	p := Payload{Kind: PayloadDataURL, URL: u}
	if _, data, ok := strings.Cut(u, ";base64,"); ok {
		p.Base64 = data
	}
	return p
}
