// Package cli wires the command-line surface of stepwise.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/stepwise-ai/stepwise/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"      _                       _\n" +
		"  ___| |_ ___ _ ____      __ (_)___  ___\n" +
		" / __| __/ _ \\ '_ \\ \\ /\\ / / | / __|/ _ \\\n" +
		" \\__ \\ ||  __/ |_) \\ V  V /  | \\__ \\  __/\n" +
		" |___/\\__\\___| .__/ \\_/\\_/   |_|___/\\___|\n" +
		"             |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "stepwise",
	Short: "stepwise - tool-invoking agent engine",
	Long:  color.CyanString(logo) + "\nAn agentic engine that extracts tool calls from model output,\nexecutes them in a sandbox, and loops until the task is done.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("stepwise Version")
		fmt.Printf("Version: %s\n", version)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
