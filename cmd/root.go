package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/drai-ai/drai/internal/config"
	"github.com/drai-ai/drai/internal/oracle"
)

var (
	cfgFile      string
	modelFlag    string
	providerFlag string
	muteFlag     bool

	// Package-level version info, set by Execute().
	appVersion string
	appCommit  string
	appDate    string
)

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date

	rootCmd := &cobra.Command{
		Use:   "drai",
		Short: "AI health assistant in your terminal",
		Long:  "drai is an interactive AI health assistant: describe symptoms, dictate, or attach images, and get structured advice.",
		// Running drai with no subcommand starts the consultation UI.
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("stdout is not a terminal; use `drai ask` for non-interactive queries")
			}
			return runChat()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default ~/.config/drai/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&modelFlag, "model", "m", "", "override model")
	rootCmd.PersistentFlags().StringVarP(&providerFlag, "provider", "p", "", "override provider")
	rootCmd.PersistentFlags().BoolVar(&muteFlag, "mute", false, "disable voice replies")

	// Subcommands
	rootCmd.AddCommand(newAskCmd())
	rootCmd.AddCommand(newSessionsCmd())
	rootCmd.AddCommand(newProfileCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newVersionCmd(version, commit, date))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// displayVersion returns a formatted version string for the welcome page,
// e.g. "v1.0.0 (abc1234)".
func displayVersion() string {
	v := "v" + appVersion
	if appCommit != "" && appCommit != "none" {
		v += " (" + appCommit + ")"
	}
	return v
}

// initConfig loads configuration, applying CLI flag overrides.
func initConfig() *config.Config {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if providerFlag != "" {
		cfg.Provider = providerFlag
	}
	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	if muteFlag {
		off := false
		cfg.Speech.Enabled = &off
	}
	return cfg
}

// resolveModel applies the precedence: CLI flag > per-provider config >
// provider defaults YAML.
func resolveModel(cfg *config.Config, pc *config.ProviderConfig, name string) string {
	model := cfg.Model
	if model == "" {
		model = pc.Model
	}
	if model == "" {
		model = config.KnownProviderModels[name]
	}
	return model
}

// buildOracle creates the advice client for the configured provider.
func buildOracle(cfg *config.Config) (oracle.Client, string, error) {
	name := cfg.Provider
	pc := cfg.GetProviderConfig(name)

	if pc.APIKey == "" {
		return nil, "", fmt.Errorf(
			"API key not configured for provider %q.\n"+
				"Set it via:\n"+
				"  - config file: providers.%s.api_key\n"+
				"  - environment: GROQ_API_KEY / GEMINI_API_KEY / ANTHROPIC_API_KEY / LLM_API_KEY\n"+
				"  - run: drai init",
			name, name,
		)
	}

	model := resolveModel(cfg, pc, name)

	switch name {
	case "anthropic":
		client, err := oracle.NewAnthropicClient(pc.APIKey, model)
		if err != nil {
			return nil, "", err
		}
		return client, model, nil
	default:
		// All other providers speak the OpenAI-compatible API.
		baseURL := pc.BaseURL
		if baseURL == "" {
			if u, ok := config.KnownProviderBaseURLs[name]; ok {
				baseURL = u
			} else {
				return nil, "", fmt.Errorf("unknown provider %q; set providers.%s.base_url in config", name, name)
			}
		}
		visionModel := pc.VisionModel
		if visionModel == "" {
			visionModel = config.KnownProviderVisionModels[name]
		}
		client, err := oracle.NewOpenAIClient(pc.APIKey, baseURL, model, visionModel)
		if err != nil {
			return nil, "", err
		}
		return client, model, nil
	}
}
