package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/cabinetdiet/cabinet/internal/config"
	"github.com/cabinetdiet/cabinet/internal/service"
)

// rawConfig reads the effective configuration without validating it, for
// commands that only need addresses and paths.
func rawConfig() (*config.Config, error) {
	if configErr != nil {
		return nil, fmt.Errorf("read config file: %w", configErr)
	}
	return config.Load(viper.GetViper())
}

// loadConfig reads and validates the configuration. Warnings about
// development fallbacks are returned for the caller to log.
func loadConfig() (*config.Config, []string, error) {
	cfg, err := rawConfig()
	if err != nil {
		return nil, nil, err
	}
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, nil, err
	}
	return cfg, warnings, nil
}

// newLogger builds the process logger from the logging section.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Logging.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// printBootstrap announces a generated admin password. It is shown once.
func printBootstrap(w io.Writer) service.BootstrapFunc {
	return func(username, password string) {
		line := strings.Repeat("=", 60)
		fmt.Fprintln(w, line)
		fmt.Fprintln(w, "Admin account created")
		fmt.Fprintf(w, "  username: %s\n", username)
		fmt.Fprintf(w, "  password: %s\n", password)
		fmt.Fprintln(w, "Store it now and change it with \"cabinet admin passwd\".")
		fmt.Fprintln(w, line)
	}
}

// localURL is the address of a server started from this configuration.
func localURL(cfg *config.Config) string {
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
}

// readPassword prompts on the terminal without echo. When stdin is not a
// terminal one line is read from it instead.
func readPassword(prompt string) (string, error) {
	if !isTerminal() {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", fmt.Errorf("read password from stdin: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// --- PID file management ---

func pidFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.Storage.DataDir, "cabinet.pid")
}

func writePID(cfg *config.Config, pid int) error {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(pidFilePath(cfg), []byte(strconv.Itoa(pid)), 0o644)
}

func readPID(cfg *config.Config) (int, error) {
	data, err := os.ReadFile(pidFilePath(cfg))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePID(cfg *config.Config) {
	os.Remove(pidFilePath(cfg))
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
