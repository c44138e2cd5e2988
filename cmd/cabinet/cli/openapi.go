package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cabinetdiet/cabinet/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		baseURL    string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Generate the OpenAPI document",
		Long: `Print the OpenAPI 3 document describing the HTTP API. The same document is
served at /api/openapi.json by a running server.`,
		Example: `  cabinet openapi
  cabinet openapi --base-url https://api.example.com -o openapi.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" {
				cfg, err := rawConfig()
				if err != nil {
					return err
				}
				baseURL = cfg.Server.FrontendURL
				if baseURL == "" {
					baseURL = localURL(cfg)
				}
			}

			data, err := json.MarshalIndent(openapi.Generate(baseURL), "", "  ")
			if err != nil {
				return fmt.Errorf("render OpenAPI document: %w", err)
			}
			data = append(data, '\n')

			if outputFile == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(outputFile, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", outputFile)
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "Server URL listed in the document (default: server.frontend_url)")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write to file instead of stdout")

	return cmd
}
