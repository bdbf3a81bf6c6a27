package config

// QualityPreset describes the models to use for a given quality tier.
type QualityPreset struct {
	Model          string
	AssistantModel string
}

// qualityPresets maps each provider+quality combination to its model choices.
// The assistant answers short follow-ups, so it runs on the lighter model.
var qualityPresets = map[ProviderType]map[QualityTier]QualityPreset{
	ProviderGoogle: {
		QualityLite:   {Model: "gemini-3-flash-preview", AssistantModel: "gemini-3-flash-preview"},
		QualityNormal: {Model: "gemini-3-pro-preview", AssistantModel: "gemini-3-flash-preview"},
		QualityMax:    {Model: "gemini-3-pro-preview", AssistantModel: "gemini-3-pro-preview"},
	},
	ProviderOpenAI: {
		QualityLite:   {Model: "gpt-4o-mini", AssistantModel: "gpt-4o-mini"},
		QualityNormal: {Model: "gpt-4o", AssistantModel: "gpt-4o-mini"},
		QualityMax:    {Model: "gpt-4o", AssistantModel: "gpt-4o"},
	},
	ProviderAnthropic: {
		QualityLite:   {Model: "claude-haiku-4-5-20251001", AssistantModel: "claude-haiku-4-5-20251001"},
		QualityNormal: {Model: "claude-sonnet-4-5-20250929", AssistantModel: "claude-haiku-4-5-20251001"},
		QualityMax:    {Model: "claude-opus-4-6", AssistantModel: "claude-sonnet-4-5-20250929"},
	},
	ProviderOllama: {
		QualityLite:   {Model: "llama3", AssistantModel: "llama3"},
		QualityNormal: {Model: "llama3", AssistantModel: "llama3"},
		QualityMax:    {Model: "llama3:70b", AssistantModel: "llama3"},
	},
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:        ProviderGoogle,
		Model:           "gemini-3-pro-preview",
		AssistantModel:  "gemini-3-flash-preview",
		Quality:         QualityNormal,
		DataDir:         ".nae",
		RateLimitRPM:    30,
		MaxOutputTokens: 25000,
		ThinkingBudget:  16000,
		SearchGrounding: true,
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

// GetPreset returns the quality preset for the given provider and tier.
// Returns the Normal Google preset if the combination is not found.
func GetPreset(provider ProviderType, tier QualityTier) QualityPreset {
	if tiers, ok := qualityPresets[provider]; ok {
		if preset, ok := tiers[tier]; ok {
			return preset
		}
	}
	return qualityPresets[ProviderGoogle][QualityNormal]
}
