package cmd

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/teemow/calview/internal/logging"
)

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by the CLI
func SetVersion(v string) {
	version = v
}

// rootOptions holds the persistent flags shared by every command
type rootOptions struct {
	configFile string
	debug      bool
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "calview",
		Short: "Calendar views with overlap-aware event layout",
		Long: `calview signs a user in with their identity provider, loads their calendar
events and lays them out for day, week and month views.

It can run as:
  - An HTTP service with browser sign-in and a JSON view API (serve)
  - An MCP (Model Context Protocol) server for AI assistants (serve --transport stdio)
  - A CLI that lays out events from a file (layout)`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if !cmd.Flags().Changed("log-format") {
				if v := os.Getenv("CALVIEW_LOG_FORMAT"); v != "" {
					opts.logFormat = v
				}
			}
			if !cmd.Flags().Changed("config") {
				if v := os.Getenv("CALVIEW_CONFIG"); v != "" {
					opts.configFile = v
				}
			}
			slog.SetDefault(logging.NewLogger(cmd.ErrOrStderr(), opts.logFormat, opts.debug))
			return nil
		},
	}
	cmd.SetVersionTemplate(`{{printf "calview version %s\n" .Version}}`)

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to a YAML config file. Can also use CALVIEW_CONFIG env var.")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", logging.FormatText, "Log format: text or json. Can also use CALVIEW_LOG_FORMAT env var.")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newLoginCmd(opts))
	cmd.AddCommand(newLogoutCmd(opts))
	cmd.AddCommand(newAccountsCmd(opts))
	cmd.AddCommand(newLayoutCmd(opts))
	cmd.AddCommand(newGenerateDocsCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute is the main entry point for the CLI application
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
