package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/digkill/ImageForge/internal/providers"
	"github.com/digkill/ImageForge/internal/registry"
)

// Factory builds a provider client for one call.
type Factory func(apiKey string) providers.Generator

// DefaultFactories wires every provider to its client constructor.
func DefaultFactories(opts ...providers.Option) map[registry.Provider]Factory {
	return map[registry.Provider]Factory{
		registry.ProviderOpenAI: func(k string) providers.Generator { return providers.NewOpenAI(k, opts...) },
		registry.ProviderGoogle: func(k string) providers.Generator { return providers.NewGoogle(k, opts...) },
		registry.ProviderDeepInfra: func(k string) providers.Generator {
			return providers.NewDeepInfra(k, opts...)
		},
		registry.ProviderFireworks: func(k string) providers.Generator {
			return providers.NewFireworks(k, opts...)
		},
		registry.ProviderLuma: func(k string) providers.Generator { return providers.NewLuma(k, opts...) },
		registry.ProviderTogetherAI: func(k string) providers.Generator {
			return providers.NewTogetherAI(k, opts...)
		},
		registry.ProviderXAI: func(k string) providers.Generator { return providers.NewXAI(k, opts...) },
		registry.ProviderFAL: func(k string) providers.Generator { return providers.NewFAL(k, opts...) },
		registry.ProviderReplicate: func(k string) providers.Generator {
			return providers.NewReplicate(k, opts...)
		},
	}
}

// Dispatcher routes a resolved model to its provider client.
type Dispatcher struct {
	factories map[registry.Provider]Factory
	lookupEnv func(string) (string, bool)
	log       *slog.Logger
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLookupEnv replaces os.LookupEnv for credential reads.
func WithLookupEnv(fn func(string) (string, bool)) DispatcherOption {
	return func(d *Dispatcher) {
		d.lookupEnv = fn
	}
}

// WithDispatcherLogger sets the logger used for upstream failures.
func WithDispatcherLogger(log *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.log = log
	}
}

func NewDispatcher(factories map[registry.Provider]Factory, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		factories: factories,
		lookupEnv: os.LookupEnv,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) credential(model registry.Model) (string, *Error) {
	apiKey, ok := d.lookupEnv(model.CredentialEnv)
	if !ok || strings.TrimSpace(apiKey) == "" {
		return "", ErrAPIKeyNotConfigured(model.DisplayName)
	}
	return apiKey, nil
}

// CheckCredential reports API_KEY_NOT_CONFIGURED when the model's provider
// key is unset, without calling the provider.
func (d *Dispatcher) CheckCredential(model registry.Model) *Error {
	_, derr := d.credential(model)
	return derr
}

// Dispatch generates one image with the model's provider. Credentials are read
// on every call so rotated keys apply without a restart.
func (d *Dispatcher) Dispatch(ctx context.Context, model registry.Model, prompt, size string) (Payload, *Error) {
	apiKey, derr := d.credential(model)
	if derr != nil {
		return Payload{}, derr
	}

	factory, ok := d.factories[model.Provider]
	if !ok {
		return Payload{}, ErrGenerationFailed(fmt.Sprintf("No client registered for provider %s", model.Provider), nil)
	}

	resp, err := factory(apiKey).GenerateImage(ctx, providers.ImageRequest{
		Model:  providerModelID(model),
		Prompt: prompt,
		Size:   size,
	})
	if err != nil {
		if isTimeout(ctx, err) {
			return Payload{}, ErrGenerationTimeout(err)
		}
		d.log.Warn("provider call failed", "provider", model.Provider, "model", model.ID, "err", err)
		return Payload{}, ErrGenerationFailed(ProviderErrorMessage(err), err)
	}

	payload, err := normalize(resp)
	if err != nil {
		if errors.Is(err, ErrEmptyResult) {
			return Payload{}, ErrGenerationFailed("Provider returned no image", err)
		}
		return Payload{}, ErrGenerationFailed(ProviderErrorMessage(err), err)
	}
	return payload, nil
}

// providerModelID is the handle the upstream expects for a registry id.
func providerModelID(model registry.Model) string {
	if model.Provider == registry.ProviderFAL {
		return strings.TrimPrefix(model.ID, "fal-ai/")
	}
	return model.ID
}

func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
