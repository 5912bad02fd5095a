package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stepwise-ai/stepwise/internal/bus"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the turn engine as a long-lived process reading requests from stdin",
	Long: `Runs the engine behind a turn bus. Each line on stdin becomes one turn
request; answer chunks stream back to stdout as they arrive. Front ends
attach by writing requests and subscribing to chunks.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	printHeader("stepwise Daemon")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()

	b := bus.NewTurnBus()
	b.Subscribe("stdin", func(chunk *bus.TurnChunk) {
		if chunk.Err != "" {
			fmt.Fprintf(os.Stderr, "\nturn %s failed: %s\n", chunk.RequestID, chunk.Err)
			return
		}
		fmt.Print(chunk.Delta)
		if chunk.Done {
			fmt.Println()
		}
	})
	go b.DispatchChunks(ctx)

	// Turn worker: one request at a time, in arrival order.
	go func() {
		for {
			req, err := b.ConsumeRequest(ctx)
			if err != nil {
				return
			}
			runBusTurn(ctx, eng, b, req)
		}
	}()

	fmt.Println("Ready. Type a message and press enter (ctrl-d to quit).")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		b.PublishRequest(&bus.TurnRequest{
			Source:    "stdin",
			RequestID: uuid.NewString(),
			Content:   line,
		})
	}
	stop()
	return scanner.Err()
}

func runBusTurn(ctx context.Context, eng *engine, b *bus.TurnBus, req *bus.TurnRequest) {
	stream, err := eng.agent.Turn(ctx, req.Content)
	if err != nil {
		b.PublishChunk(&bus.TurnChunk{Source: req.Source, RequestID: req.RequestID, Err: err.Error(), Done: true})
		return
	}
	for chunk := range stream {
		if chunk.Err != nil {
			b.PublishChunk(&bus.TurnChunk{Source: req.Source, RequestID: req.RequestID, Err: chunk.Err.Error(), Done: true})
			return
		}
		b.PublishChunk(&bus.TurnChunk{
			Source:    req.Source,
			RequestID: req.RequestID,
			Delta:     chunk.Delta,
			Done:      chunk.Done,
		})
	}
}
