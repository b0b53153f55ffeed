package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/fieldlogger/evidencedrive/internal/progress"
)

func newEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events <owner-id>",
		Short: "Stream an owner's progress events from the worker",
		Args:  cobra.ExactArgs(1),
		RunE:  runEvents,
	}
}

func runEvents(_ *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	url := fmt.Sprintf("ws://%s/events/%s", resolvedCfg.Progress.ListenAddr, args[0])

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", url, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	statusf("Streaming events for %s; Ctrl-C to stop.\n", args[0])

	for {
		var ev progress.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}

			return fmt.Errorf("reading event: %w", err)
		}

		printEvent(ev)
	}
}

func printEvent(ev progress.Event) {
	line := fmt.Sprintf("%-10s", ev.Status)

	if ev.Status == progress.StatusProgress {
		line += fmt.Sprintf(" %3d%%", ev.Progress)
	} else {
		line += "     "
	}

	if ev.Stage != "" {
		line += " [" + ev.Stage + "]"
	}

	if ev.Message != "" {
		line += " " + ev.Message
	}

	fmt.Printf("%s (op %s)\n", line, ev.OperationID)
}
