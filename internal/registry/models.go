package registry

const (
	envOpenAI     = "OPENAI_API_KEY"
	envGoogle     = "GOOGLE_GENERATIVE_AI_API_KEY"
	envDeepInfra  = "DEEPINFRA_API_KEY"
	envFireworks  = "FIREWORKS_API_KEY"
	envLuma       = "LUMA_API_KEY"
	envTogetherAI = "TOGETHER_AI_API_KEY"
	envXAI        = "XAI_API_KEY"
	envFAL        = "FAL_API_KEY"
	envReplicate  = "REPLICATE_API_TOKEN"
)

func openai(id string, sizes ...string) Model {
	return Model{ID: id, Provider: ProviderOpenAI, CredentialEnv: envOpenAI, DisplayName: "OpenAI", SupportedSizes: sizes}
}

func google(id string, sizes ...string) Model {
	return Model{ID: id, Provider: ProviderGoogle, CredentialEnv: envGoogle, DisplayName: "Google", SupportedSizes: sizes}
}

func deepinfra(id string, sizes ...string) Model {
	return Model{ID: id, Provider: ProviderDeepInfra, CredentialEnv: envDeepInfra, DisplayName: "DeepInfra", SupportedSizes: sizes}
}

func fireworks(id string, sizes ...string) Model {
	return Model{ID: id, Provider: ProviderFireworks, CredentialEnv: envFireworks, DisplayName: "Fireworks", SupportedSizes: sizes}
}

func luma(id string, sizes ...string) Model {
	return Model{ID: id, Provider: ProviderLuma, CredentialEnv: envLuma, DisplayName: "Luma", SupportedSizes: sizes}
}

func together(id string, sizes ...string) Model {
	return Model{ID: id, Provider: ProviderTogetherAI, CredentialEnv: envTogetherAI, DisplayName: "TogetherAI", SupportedSizes: sizes}
}

func xai(id string, sizes ...string) Model {
	return Model{ID: id, Provider: ProviderXAI, CredentialEnv: envXAI, DisplayName: "xAI", SupportedSizes: sizes}
}

func fal(id string, sizes ...string) Model {
	return Model{ID: id, Provider: ProviderFAL, CredentialEnv: envFAL, DisplayName: "FAL", SupportedSizes: sizes}
}

func replicate(id string, sizes ...string) Model {
	return Model{ID: id, Provider: ProviderReplicate, CredentialEnv: envReplicate, DisplayName: "Replicate", SupportedSizes: sizes}
}

// Default returns the production model table.
func Default() *Registry {
	return New(
		openai("dall-e-3", "1024x1024", "1024x1792", "1792x1024"),
		openai("dall-e-2", "256x256", "512x512", "1024x1024"),

		google("imagen-3.0-generate-002", "1024x1024", "512x512"),

		deepinfra("stabilityai/sdxl-turbo", "512x512", "1024x1024"),
		deepinfra("black-forest-labs/FLUX-1-dev", "1024x1024"),
		deepinfra("black-forest-labs/FLUX-1-schnell", "1024x1024"),

		fireworks("accounts/fireworks/models/stable-diffusion-xl-1024-v1-0", "1024x1024"),
		fireworks("accounts/fireworks/models/playground-v2-1024px-aesthetic", "1024x1024"),
		fireworks("accounts/fireworks/models/flux-1-dev-fp8", "1024x1024"),

		luma("photon-1", "1024x1024", "512x512"),
		luma("photon-flash-1", "1024x1024", "512x512"),

		together("stabilityai/stable-diffusion-xl-base-1.0", "1024x1024", "512x512"),
		together("black-forest-labs/FLUX.1-dev", "1024x1024"),
		together("black-forest-labs/FLUX.1-schnell", "1024x1024"),

		xai("grok-2-image", "1024x1024", "512x512"),

		fal("fal-ai/flux/dev", "1024x1024"),
		fal("fal-ai/flux/schnell", "256x256"),
		fal("fal-ai/flux-pro/v1.1", "1024x1024"),

		replicate("stability-ai/stable-diffusion-3.5-medium", "512x512", "768x768", "1024x1024"),
		replicate("stability-ai/stable-diffusion-3.5-large", "512x512", "768x768", "1024x1024"),
	)
}
