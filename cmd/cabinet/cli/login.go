package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cabinetdiet/cabinet/internal/client"
)

func newLoginCmd() *cobra.Command {
	var server, username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to a running server",
		Long: `Authenticate as the admin and save the session token to
~/.cabinet/session.json for the "posts" commands. The password is prompted on
a terminal, or read as one line from stdin otherwise.`,
		Example: `  cabinet login
  cabinet login --server https://api.example.com --username admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, server, username)
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "Server URL (default: saved session, then the local config)")
	cmd.Flags().StringVar(&username, "username", "", "Admin username (default: auth.admin_username)")

	return cmd
}

func runLogin(cmd *cobra.Command, server, username string) error {
	path, err := client.DefaultSessionPath()
	if err != nil {
		return err
	}
	if server == "" || username == "" {
		cfg, err := rawConfig()
		if err != nil {
			return err
		}
		if server == "" {
			server = localURL(cfg)
			if prev, err := client.LoadSession(path); err == nil {
				server = prev.Server
			}
		}
		if username == "" {
			username = cfg.Auth.AdminUsername
		}
	}

	c, err := client.New(server, "", nil)
	if err != nil {
		return err
	}
	password, err := readPassword(fmt.Sprintf("Password for %s: ", username))
	if err != nil {
		return err
	}

	resp, err := c.Login(context.Background(), username, password)
	if err != nil {
		return err
	}

	sess := &client.Session{
		Server:    c.BaseURL(),
		Username:  resp.User.Username,
		Token:     resp.Token,
		CreatedAt: time.Now().UTC(),
	}
	if err := sess.Save(path); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s.\n", sess.Server, sess.Username)
	return nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Long:  "Delete the saved session token. The token itself stays valid on the server until it expires.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := client.DefaultSessionPath()
			if err != nil {
				return err
			}
			if err := client.RemoveSession(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

// remoteClient connects to the server of the saved session, or to server
// when given. With authRequired a missing session is an error; otherwise the
// client is anonymous.
func remoteClient(server string, authRequired bool) (*client.Client, error) {
	path, err := client.DefaultSessionPath()
	if err != nil {
		return nil, err
	}
	sess, err := client.LoadSession(path)
	switch {
	case errors.Is(err, client.ErrNoSession):
		if authRequired {
			return nil, err
		}
		sess = nil
	case err != nil:
		return nil, err
	}

	token := ""
	if sess != nil {
		if server == "" {
			server = sess.Server
		}
		// The token is only sent to the server that issued it.
		if strings.TrimRight(server, "/") == sess.Server {
			token = sess.Token
		} else if authRequired {
			return nil, fmt.Errorf("no session for %s (run \"cabinet login --server %s\")", server, server)
		}
	}
	if server == "" {
		cfg, err := rawConfig()
		if err != nil {
			return nil, err
		}
		server = localURL(cfg)
	}
	return client.New(server, token, nil)
}
