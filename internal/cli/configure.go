package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stepwise-ai/stepwise/internal/config"
)

var (
	configureWorkspace    string
	configureOpenAIKey    string
	configureAnthropicKey string
	configureGeminiKey    string
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Write the config file with defaults and any provided overrides",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if configureWorkspace != "" {
			cfg.Paths.Workspace = configureWorkspace
			cfg.Paths.SandboxRoots = []string{configureWorkspace}
		}
		if configureOpenAIKey != "" {
			cfg.Providers.OpenAI.APIKey = configureOpenAIKey
		}
		if configureAnthropicKey != "" {
			cfg.Providers.Anthropic.APIKey = configureAnthropicKey
		}
		if configureGeminiKey != "" {
			cfg.Providers.Gemini.APIKey = configureGeminiKey
		}
		if err := config.Save(cfg); err != nil {
			return err
		}
		path, _ := config.ConfigPath()
		fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", path)
		return nil
	},
}

func init() {
	configureCmd.Flags().StringVar(&configureWorkspace, "workspace", "", "Workspace directory (also becomes the sandbox root)")
	configureCmd.Flags().StringVar(&configureOpenAIKey, "openai-key", "", "OpenAI API key")
	configureCmd.Flags().StringVar(&configureAnthropicKey, "anthropic-key", "", "Anthropic API key")
	configureCmd.Flags().StringVar(&configureGeminiKey, "gemini-key", "", "Gemini API key")
	rootCmd.AddCommand(configureCmd)
}
