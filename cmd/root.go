package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/connecmaq/marketplace-api/config"
)

var conf *config.Config

var rootCmd = &cobra.Command{
	Use:   "marketplace-api",
	Short: "ConnecMaq marketplace API",
	Long: `marketplace-api serves the ConnecMaq REST API and the live chat sockets.

Available commands:
  serve     Run the HTTP server and the background scheduler (default)
  digest    Send the unread message digest once and exit`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		conf = config.New()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
	SilenceUsage: true,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
