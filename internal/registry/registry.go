package registry

import (
	"fmt"
	"slices"
)

// Provider identifies the upstream service that serves a model.
type Provider string

const (
	ProviderOpenAI     Provider = "openai"
	ProviderGoogle     Provider = "google"
	ProviderDeepInfra  Provider = "deepinfra"
	ProviderFireworks  Provider = "fireworks"
	ProviderLuma       Provider = "luma"
	ProviderTogetherAI Provider = "togetherai"
	ProviderXAI        Provider = "xai"
	ProviderFAL        Provider = "fal"
	ProviderReplicate  Provider = "replicate"
)

// FallbackSize is returned by SupportedSizesFor for models missing from the table.
const FallbackSize = "1024x1024"

// Model describes one image model: who serves it, which credential it needs
// and which output sizes it accepts. The first size is the default.
type Model struct {
	ID             string
	Provider       Provider
	CredentialEnv  string
	DisplayName    string
	SupportedSizes []string
}

// DefaultSize returns the first supported size.
func (m Model) DefaultSize() string {
	return m.SupportedSizes[0]
}

// SupportsSize reports whether size is one of the model's supported sizes.
func (m Model) SupportsSize(size string) bool {
	return slices.Contains(m.SupportedSizes, size)
}

// Registry is an immutable model table built once at startup.
type Registry struct {
	order  []string
	models map[string]Model
}

// New builds a registry from models, keeping their order. It panics on a
// duplicate id or a model without sizes since both are programming errors.
func New(models ...Model) *Registry {
	r := &Registry{
		order:  make([]string, 0, len(models)),
		models: make(map[string]Model, len(models)),
	}
	for _, m := range models {
		if _, dup := r.models[m.ID]; dup {
			panic(fmt.Sprintf("registry: duplicate model id %q", m.ID))
		}
		if len(m.SupportedSizes) == 0 {
			panic(fmt.Sprintf("registry: model %q has no supported sizes", m.ID))
		}
		m.SupportedSizes = slices.Clone(m.SupportedSizes)
		r.order = append(r.order, m.ID)
		r.models[m.ID] = m
	}
	return r
}

// Resolve looks a model up by id.
func (r *Registry) Resolve(id string) (Model, bool) {
	m, ok := r.models[id]
	if !ok {
		return Model{}, false
	}
	m.SupportedSizes = slices.Clone(m.SupportedSizes)
	return m, true
}

// SupportedSizesFor returns the model's sizes, or FallbackSize alone when the
// id is unknown. Strict callers must use Resolve instead.
func (r *Registry) SupportedSizesFor(id string) []string {
	if m, ok := r.models[id]; ok {
		return slices.Clone(m.SupportedSizes)
	}
	return []string{FallbackSize}
}

// IDs returns all model ids in table order.
func (r *Registry) IDs() []string {
	return slices.Clone(r.order)
}

// Models returns all descriptors in table order.
func (r *Registry) Models() []Model {
	out := make([]Model, 0, len(r.order))
	for _, id := range r.order {
		m, _ := r.Resolve(id)
		out = append(out, m)
	}
	return out
}
