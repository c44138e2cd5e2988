package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cabinetdiet/cabinet/internal/server"
	"github.com/cabinetdiet/cabinet/internal/service"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage the admin account",
		Long: `Inspect the admin account or set its password directly in the data
directory. These commands do not need a running server.`,
	}

	cmd.AddCommand(newAdminShowCmd())
	cmd.AddCommand(newAdminPasswdCmd())

	return cmd
}

// openApp wires the storage and services of the local configuration. A nil
// logger discards logs; commands report on stdout.
func openApp(cmd *cobra.Command, logger *slog.Logger) (*server.App, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return server.NewApp(cfg, logger, printBootstrap(cmd.ErrOrStderr()))
}

// ---------- admin show ----------

func newAdminShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the admin account",
		Long:  "Print the admin account, creating it with a generated password if it does not exist yet.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminShow(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAdminShow(cmd *cobra.Command, jsonOutput bool) error {
	app, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	admin, err := app.Auth.Admin(context.Background())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(admin)
	}

	fmt.Fprintf(out, "Username: %s\n", admin.Username)
	fmt.Fprintf(out, "Role:     %s\n", admin.Role)
	fmt.Fprintf(out, "Created:  %s\n", admin.CreatedAt.Format("2006-01-02 15:04"))
	if admin.UpdatedAt != nil {
		fmt.Fprintf(out, "Updated:  %s\n", admin.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// ---------- admin passwd ----------

func newAdminPasswdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Set the admin password",
		Long: `Set a new admin password without knowing the current one. The password is
prompted twice on a terminal, or read as one line from stdin otherwise.
Tokens issued before the change stay valid until they expire.`,
		Example: `  cabinet admin passwd
  echo "$NEW_PASSWORD" | cabinet admin passwd`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminPasswd(cmd)
		},
	}

	return cmd
}

func runAdminPasswd(cmd *cobra.Command) error {
	password, err := readPassword("New password: ")
	if err != nil {
		return err
	}
	if len(password) < service.MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", service.MinPasswordLength)
	}
	if isTerminal() {
		confirm, err := readPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if confirm != password {
			return fmt.Errorf("passwords do not match")
		}
	}

	app, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Auth.SetPassword(context.Background(), password); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Admin password updated.")
	return nil
}
