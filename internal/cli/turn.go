package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var turnMessage string

var turnCmd = &cobra.Command{
	Use:   "turn",
	Short: "Run one agent turn and stream the answer",
	RunE:  runTurn,
}

func init() {
	turnCmd.Flags().StringVarP(&turnMessage, "message", "m", "", "Message to send to the agent")
	rootCmd.AddCommand(turnCmd)
}

func runTurn(cmd *cobra.Command, args []string) error {
	if turnMessage == "" {
		return fmt.Errorf("--message is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	stream, err := eng.agent.Turn(ctx, turnMessage)
	if err != nil {
		return err
	}

	for chunk := range stream {
		if chunk.Err != nil {
			fmt.Fprintln(os.Stderr)
			return chunk.Err
		}
		fmt.Print(chunk.Delta)
	}
	fmt.Println()
	return nil
}
