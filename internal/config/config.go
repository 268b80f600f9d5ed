// Package config loads drai configuration.
// Source priority (highest to lowest):
// 1. Environment variables (GROQ_API_KEY, LLM_API_KEY, DRAI_PROVIDER, etc.)
// 2. Config file path specified via --config flag
// 3. ~/.config/drai/config.yaml
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed providers_default.yaml
var defaultProvidersYAML []byte

// ProviderDefaults holds a provider's built-in base URL and models.
type ProviderDefaults struct {
	BaseURL      string `yaml:"base_url"`
	DefaultModel string `yaml:"default_model"`
	VisionModel  string `yaml:"vision_model"`
}

// LoadProviderDefaults parses the embedded defaults and merges any user
// overrides from ~/.config/drai/providers.yaml.
func LoadProviderDefaults() map[string]ProviderDefaults {
	defs := make(map[string]ProviderDefaults)
	_ = yaml.Unmarshal(defaultProvidersYAML, &defs)

	home, err := os.UserHomeDir()
	if err == nil {
		userPath := filepath.Join(home, ".config", "drai", "providers.yaml")
		if data, err := os.ReadFile(userPath); err == nil {
			userDefs := make(map[string]ProviderDefaults)
			if yaml.Unmarshal(data, &userDefs) == nil {
				for name, ud := range userDefs {
					d := defs[name]
					if ud.BaseURL != "" {
						d.BaseURL = ud.BaseURL
					}
					if ud.DefaultModel != "" {
						d.DefaultModel = ud.DefaultModel
					}
					if ud.VisionModel != "" {
						d.VisionModel = ud.VisionModel
					}
					defs[name] = d
				}
			}
		}
	}
	return defs
}

// ProviderConfig holds configuration for a single provider.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// VisionModel handles turns that carry an image. Empty falls back to
	// the provider default, then to Model.
	VisionModel string `yaml:"vision_model"`
}

// SpeechConfig holds voice output settings.
type SpeechConfig struct {
	// Enabled toggles reading replies aloud. Default true.
	Enabled *bool `yaml:"enabled"`
	// Voice overrides automatic voice selection.
	Voice string `yaml:"voice"`
}

// ListenConfig holds voice input settings.
type ListenConfig struct {
	// Model is the transcription model. Empty uses the built-in default.
	Model string `yaml:"model"`
	// SilenceSeconds is how long dictation stays quiet before the transcript
	// submits. 0 uses the built-in default.
	SilenceSeconds int `yaml:"silence_seconds"`
}

// Config is the complete configuration structure for drai.
type Config struct {
	// Provider is the active provider name (e.g. "groq", "gemini", "anthropic").
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`

	// Providers holds per-provider configuration.
	Providers map[string]*ProviderConfig `yaml:"providers"`

	// Speech holds voice output settings.
	Speech SpeechConfig `yaml:"speech"`

	// Listen holds voice input settings.
	Listen ListenConfig `yaml:"listen"`

	// CameraDevice is the video device index for camera capture.
	CameraDevice int `yaml:"camera_device"`

	// DBPath overrides the session database location.
	DBPath string `yaml:"db_path"`

	// ExportDir is where PDF reports land. Empty = current directory.
	ExportDir string `yaml:"export_dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Provider:  "groq",
		Providers: make(map[string]*ProviderConfig),
	}
}

// Load reads the config file and merges environment variable overrides.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			configPath = filepath.Join(home, ".config", "drai", "config.yaml")
		}
	}

	// Missing file is fine; defaults apply.
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]*ProviderConfig)
	}
	return cfg, nil
}

// GetProviderConfig returns the config for the named provider, or an empty
// config if not found.
func (c *Config) GetProviderConfig(name string) *ProviderConfig {
	if pc, ok := c.Providers[name]; ok {
		return pc
	}
	return &ProviderConfig{}
}

// SpeechEnabled resolves the speech toggle, defaulting to on.
func (c *Config) SpeechEnabled() bool {
	if c.Speech.Enabled == nil {
		return true
	}
	return *c.Speech.Enabled
}

var (
	// KnownProviderBaseURLs maps well-known provider names to base URLs.
	// Populated from providers_default.yaml (embedded) + user overrides.
	KnownProviderBaseURLs map[string]string

	// KnownProviderModels maps well-known provider names to default models.
	KnownProviderModels map[string]string

	// KnownProviderVisionModels maps provider names to their vision models.
	KnownProviderVisionModels map[string]string
)

func init() {
	defs := LoadProviderDefaults()
	KnownProviderBaseURLs = make(map[string]string, len(defs))
	KnownProviderModels = make(map[string]string, len(defs))
	KnownProviderVisionModels = make(map[string]string, len(defs))
	for name, d := range defs {
		if d.BaseURL != "" {
			KnownProviderBaseURLs[name] = d.BaseURL
		}
		if d.DefaultModel != "" {
			KnownProviderModels[name] = d.DefaultModel
		}
		if d.VisionModel != "" {
			KnownProviderVisionModels[name] = d.VisionModel
		}
	}
}

// SaveProviderToFile persists a single provider's config and the active
// provider name into ~/.config/drai/config.yaml, preserving all other user
// settings.
func SaveProviderToFile(providerName string, pc ProviderConfig) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("cannot determine home directory: %w", err)
	}
	cfgPath := filepath.Join(home, ".config", "drai", "config.yaml")

	// Read existing file into a generic map to preserve unknown fields.
	raw := make(map[string]any)
	if data, err := os.ReadFile(cfgPath); err == nil {
		_ = yaml.Unmarshal(data, &raw) // ignore errors; start fresh if corrupt
	}

	providers, _ := raw["providers"].(map[string]any)
	if providers == nil {
		providers = make(map[string]any)
	}

	entry := map[string]any{
		"api_key": pc.APIKey,
	}
	if pc.BaseURL != "" {
		entry["base_url"] = pc.BaseURL
	}
	if pc.Model != "" {
		entry["model"] = pc.Model
	}
	if pc.VisionModel != "" {
		entry["vision_model"] = pc.VisionModel
	}
	providers[providerName] = entry
	raw["providers"] = providers

	// Set active provider and clear stale global model override.
	raw["provider"] = providerName
	delete(raw, "model")

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(cfgPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	setKey := func(provider, key string) {
		if cfg.Providers == nil {
			cfg.Providers = make(map[string]*ProviderConfig)
		}
		if cfg.Providers[provider] == nil {
			cfg.Providers[provider] = &ProviderConfig{}
		}
		cfg.Providers[provider].APIKey = key
	}

	// Generic overrides apply to the active provider.
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		setKey(cfg.Provider, v)
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		if cfg.Providers[cfg.Provider] == nil {
			setKey(cfg.Provider, "")
		}
		cfg.Providers[cfg.Provider].BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Model = v
	}

	// Provider-specific keys.
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		setKey("groq", v)
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		setKey("gemini", v)
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		setKey("anthropic", v)
	}

	// Provider selection.
	if v := os.Getenv("DRAI_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("DRAI_MODEL"); v != "" {
		cfg.Model = v
	}
}
