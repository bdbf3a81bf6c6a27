package config

// QualityTier controls the model selection and trade-off between speed/cost and quality.
type QualityTier string

const (
	QualityLite   QualityTier = "lite"
	QualityNormal QualityTier = "normal"
	QualityMax    QualityTier = "max"
)

// ProviderType identifies an inference provider.
type ProviderType string

const (
	ProviderGoogle    ProviderType = "google"
	ProviderOpenAI    ProviderType = "openai"
	ProviderAnthropic ProviderType = "anthropic"
	ProviderOllama    ProviderType = "ollama"
)

// Config is the top-level nae configuration, corresponding to .nae.yml.
type Config struct {
	Provider        ProviderType `yaml:"provider" koanf:"provider"`
	Model           string       `yaml:"model" koanf:"model"`
	AssistantModel  string       `yaml:"assistant_model" koanf:"assistant_model"`
	Quality         QualityTier  `yaml:"quality" koanf:"quality"`
	DataDir         string       `yaml:"data_dir" koanf:"data_dir"`
	RateLimitRPM    int          `yaml:"rate_limit_rpm" koanf:"rate_limit_rpm"`
	MaxOutputTokens int          `yaml:"max_output_tokens" koanf:"max_output_tokens"`
	ThinkingBudget  int          `yaml:"thinking_budget" koanf:"thinking_budget"`
	SearchGrounding bool         `yaml:"search_grounding" koanf:"search_grounding"`
	Log             LogConfig    `yaml:"log" koanf:"log"`
	Server          ServerConfig `yaml:"server" koanf:"server"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level" koanf:"level"`
	Format     string `yaml:"format" koanf:"format"`
	File       string `yaml:"file" koanf:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" koanf:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" koanf:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" koanf:"max_age_days"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}
