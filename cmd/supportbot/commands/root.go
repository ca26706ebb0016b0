// Package commands defines all Cobra CLI commands for the supportbot binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/54b3r/supportbot-go/internal/audit"
	"github.com/54b3r/supportbot-go/internal/config"
	"github.com/54b3r/supportbot-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "supportbot",
		Short: "supportbot — question answering over your uploaded documents",
		Long: `supportbot is a document QA service: upload a .txt or .pdf document,
then ask questions about it. Answers are grounded in the document via
vector retrieval — questions the document cannot answer get a friendly
explanation instead of a made-up reply.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.supportbot/config.yaml).
See 'supportbot --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// A local .env is a convenience for development; absence is fine.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.supportbot/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewVersionCmd(),
	)

	return root
}
