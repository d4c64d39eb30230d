package command

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/peerview/peerview/internal/server"
)

var flagServePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling server",
	Long: `Run the signaling server the peers meet on. It serves the websocket
endpoint, a health check, and the HTTP telemetry ingest.

Examples:
  peerview serve
  peerview serve --port 9090`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if flagServePort != 0 {
			cfg.Port = flagServePort
		}
		return server.Run(ctx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&flagServePort, "port", "p", 0, "Listen port")
}
