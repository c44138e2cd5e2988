package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStopCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running server",
		Long:  "Stop the server recorded in the PID file. It drains in-flight requests before exiting.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd, wait)
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 35*time.Second, "How long to wait for the server to exit")

	return cmd
}

func runStop(cmd *cobra.Command, wait time.Duration) error {
	cfg, err := rawConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	pid, err := readPID(cfg)
	if err != nil {
		return fmt.Errorf("no running server found (missing PID file at %s)", pidFilePath(cfg))
	}

	if !isProcessRunning(pid) {
		removePID(cfg)
		return fmt.Errorf("server (PID %d) is not running (stale PID file removed)", pid)
	}

	fmt.Fprintf(out, "Stopping cabinet server (PID %d)...\n", pid)

	if err := stopProcess(pid); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
		if !isProcessRunning(pid) {
			removePID(cfg)
			fmt.Fprintln(out, "Server stopped.")
			return nil
		}
	}

	return fmt.Errorf("server (PID %d) did not stop within %s; it may still be draining connections", pid, wait)
}
