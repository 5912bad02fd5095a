package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stepwise-ai/stepwise/internal/config"
	"github.com/stepwise-ai/stepwise/internal/trace"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [turn-id]",
	Short: "Show recent turns from the trace store, or the spans of one turn",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Trace.DBPath == "" {
			return fmt.Errorf("trace store disabled: set trace.dbPath in the config")
		}
		svc, err := trace.NewService(expandHome(cfg.Trace.DBPath), nil)
		if err != nil {
			return err
		}
		defer svc.Close()

		if len(args) == 1 {
			return printTurnDetail(cmd, svc, args[0])
		}

		turns, err := svc.RecentTurns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		if len(turns) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No turns recorded yet.")
			return nil
		}
		for _, t := range turns {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-9s  %2d steps  %s\n",
				t.CreatedAt.Format("2006-01-02 15:04:05"), t.Status, t.Steps, firstLine(t.UserMsg, 60))
			fmt.Fprintf(cmd.OutOrStdout(), "  id: %s\n", t.TurnID)
		}
		return nil
	},
}

func printTurnDetail(cmd *cobra.Command, svc *trace.Service, turnID string) error {
	turn, err := svc.GetTurn(cmd.Context(), turnID)
	if err != nil {
		return fmt.Errorf("turn %s: %w", turnID, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Turn %s (%s, %d steps)\n", turn.TurnID, turn.Status, turn.Steps)
	fmt.Fprintf(cmd.OutOrStdout(), "User: %s\n", turn.UserMsg)
	if turn.Answer != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Answer: %s\n", firstLine(turn.Answer, 200))
	}
	if turn.ErrorText != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Error: %s\n", turn.ErrorText)
	}

	spans, err := svc.SpansForTurn(cmd.Context(), turnID)
	if err != nil {
		return err
	}
	for _, sp := range spans {
		mark := "ok"
		if !sp.Success {
			mark = "failed"
		}
		name := sp.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  step %d  %-4s  %-14s %s\n", sp.StepIndex+1, sp.Kind, name, mark)
	}
	return nil
}

func firstLine(s string, max int) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			s = s[:i]
			break
		}
	}
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of turns to list")
	rootCmd.AddCommand(historyCmd)
}
