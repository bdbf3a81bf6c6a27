package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard, saves the result to
// path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to nae! Let's configure the analysis client.")
	fmt.Println()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select inference provider",
		Items: []string{"google", "openai", "anthropic", "ollama"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	provider := ProviderType(providerStr)
	if provider != ProviderGoogle {
		fmt.Println("Note: live ingestion uses search grounding, which only the google provider supports.")
	}

	// 2. Quality tier.
	qualityPrompt := promptui.Select{
		Label: "Select quality tier",
		Items: []string{
			"lite   - fast & cheap",
			"normal - balanced (recommended)",
			"max    - highest quality",
		},
		CursorPos: 1,
	}
	qualityIdx, _, err := qualityPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("quality selection: %w", err)
	}
	tiers := []QualityTier{QualityLite, QualityNormal, QualityMax}
	quality := tiers[qualityIdx]

	preset := GetPreset(provider, quality)

	// 3. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Directory for the local history database",
		Default: ".nae",
	}
	dataDir, err := dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	// 4. Rate limit.
	rpmPrompt := promptui.Prompt{
		Label:   "Maximum inference requests per minute (0 = unlimited)",
		Default: "30",
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return fmt.Errorf("enter a non-negative integer")
			}
			return nil
		},
	}
	rpmStr, err := rpmPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	rpm, _ := strconv.Atoi(rpmStr)

	cfg := DefaultConfig()
	cfg.Provider = provider
	cfg.Quality = quality
	cfg.Model = preset.Model
	cfg.AssistantModel = preset.AssistantModel
	cfg.DataDir = dataDir
	cfg.RateLimitRPM = rpm
	cfg.SearchGrounding = provider == ProviderGoogle

	// Check for API key.
	envVar := APIKeyEnvVar(provider)
	if envVar != "" {
		if os.Getenv(envVar) == "" {
			fmt.Printf("\nNote: Set %s in your environment before running nae analyze.\n", envVar)
		}
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}
