package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/filecrate/filecrate-go/internal/watcher"
)

// newWatchCmd watches a local directory and uploads files as they appear or
// change. Runs until interrupted.
func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "Watch a directory and upload new or changed files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			dir := args[0]

			info, err := os.Stat(dir)
			if err != nil {
				return fmt.Errorf("stat %s: %w", dir, err)
			}

			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}

			// Validate the session before starting the long-running loop.
			if err := a.refresh(cmd); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			statusf("Watching %s (Ctrl-C to stop)\n", dir)

			return watcher.New(dir, a.coord, a.logger).Run(ctx)
		},
	}
}
