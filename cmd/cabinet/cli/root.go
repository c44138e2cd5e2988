package cli

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cabinetdiet/cabinet/internal/config"
)

var (
	cfgFile    string
	appVersion string // set in Execute, reported by the MCP server
	// configErr is a config file that exists but could not be read. A
	// missing file is not an error.
	configErr error
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cabinet",
		Short: "Backend of the cabinet website: blog API and admin tools",
		Long: `Cabinet serves the JSON API behind a dietitian's website: the public blog,
a single admin account with session tokens, CSRF protection and rate limiting.

Run "cabinet serve" to start the server, then "cabinet login" and
"cabinet posts" to manage articles from the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./cabinet.yaml or ~/.cabinet/cabinet.yaml)")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newPostsCmd())
	cmd.AddCommand(newCategoriesCmd())
	cmd.AddCommand(newOpenAPICmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	return cmd
}

func initConfig() {
	v := viper.GetViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("cabinet")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.cabinet")
	}

	config.SetDefaults(v)
	config.BindEnv(v)

	var notFound viper.ConfigFileNotFoundError
	if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		configErr = err
	}
}
