package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/structlog-decoder/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the decoder HTTP API.",
	Long:  `Runs the decoder HTTP API together with the metrics, health and pprof servers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig()
		if err != nil {
			return err
		}

		srv, err := server.NewServer(cmd.Context(), log, namespace, conf)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		if err := srv.Start(cmd.Context()); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}

		log.Info("Structlog decoder server exited - cya!")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
