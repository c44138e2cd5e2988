package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cabinetdiet/cabinet/internal/client"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check if the server is running",
		Long:  "Check the server process recorded in the PID file and its /api/health endpoint.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd)
		},
	}
}

func runStatus(cmd *cobra.Command) error {
	cfg, err := rawConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	pid, err := readPID(cfg)
	if err != nil {
		fmt.Fprintln(out, "Server is not running (no PID file found).")
		return nil
	}

	if !isProcessRunning(pid) {
		removePID(cfg)
		fmt.Fprintln(out, "Server is not running (stale PID file removed).")
		return nil
	}

	base := localURL(cfg)
	c, err := client.New(base, "", &http.Client{Timeout: 2 * time.Second})
	if err != nil {
		return err
	}
	health, err := c.Health(context.Background())
	if err != nil {
		fmt.Fprintf(out, "Server process is running (PID %d) but %s is not responding: %v\n", pid, base, err)
		return nil
	}

	fmt.Fprintf(out, "Server is running (PID %d)\n", pid)
	fmt.Fprintf(out, "  Health:  %s/api/health (%s at %s)\n", base, health.Status, health.Timestamp)
	fmt.Fprintf(out, "  Storage: %s (%s)\n", cfg.Storage.Driver, cfg.Storage.DataDir)
	return nil
}
