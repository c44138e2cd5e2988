package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cabinetdiet/cabinet/internal/server"
)

const banner = `
  ___ __ _| |__ (_)_ __   ___| |_
 / __/ _' | '_ \| | '_ \ / _ \ __|
| (_| (_| | |_) | | | | |  __/ |_
 \___\__,_|_.__/|_|_| |_|\___|\__|
`

func newServeCmd() *cobra.Command {
	var dev bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the HTTP server that exposes the blog and admin API under /api and,
when a static directory is configured, the built front end for every other path.`,
		Example: `  cabinet serve
  cabinet serve --port 8080 --data-dir /var/lib/cabinet
  cabinet serve --static-dir ./dist`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dev {
				viper.Set("server.env", "development")
			}
			return runServe(cmd)
		},
	}

	cmd.Flags().IntP("port", "p", 3001, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().String("data-dir", "./data", "Directory holding posts and the admin record")
	cmd.Flags().String("static-dir", "", "Built front end served for non-API paths")
	cmd.Flags().BoolVar(&dev, "dev", false, "Force development mode (debug logs, local CORS origins)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	viper.BindPFlag("storage.data_dir", cmd.Flags().Lookup("data-dir"))
	viper.BindPFlag("server.static_dir", cmd.Flags().Lookup("static-dir"))

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, warnings, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)
	for _, w := range warnings {
		logger.Warn(w)
	}

	out := cmd.OutOrStdout()
	app, err := server.NewApp(cfg, logger, printBootstrap(out))
	if err != nil {
		return err
	}

	if err := writePID(cfg, os.Getpid()); err != nil {
		logger.Warn("failed to write PID file", "path", pidFilePath(cfg), "error", err)
	}
	defer removePID(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := "development"
	if cfg.Production() {
		mode = "production"
	}
	base := localURL(cfg)
	fmt.Fprint(out, banner)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "→ Cabinet %s (%s)\n", versionString(), mode)
	fmt.Fprintf(out, "→ Listening on http://%s\n", cfg.Addr())
	fmt.Fprintf(out, "→ Storage:    %s (%s)\n", cfg.Storage.Driver, cfg.Storage.DataDir)
	fmt.Fprintf(out, "→ OpenAPI:    %s/api/openapi.json\n", base)
	fmt.Fprintf(out, "→ Health:     %s/api/health\n", base)
	if cfg.Server.StaticDir != "" {
		fmt.Fprintf(out, "→ Front end:  %s\n", cfg.Server.StaticDir)
	}
	fmt.Fprintln(out)

	return app.Run(ctx)
}
