package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/dataqa/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP intake API",
	Long: `Serves the quality pipeline over HTTP: POST /v1/check runs a full
audit over multipart file payloads, POST /v1/drift compares a current
multipart set against a previous one, GET /healthz reports liveness.
Responses are JSON run reports. The server shuts down gracefully on
SIGINT/SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		port := servePort
		if port == 0 {
			if err := cfg.Validate("serve"); err != nil {
				return err
			}
			port = cfg.Server.Port
		}

		srv := server.New(server.Options{
			Strategy: identifierStrategy("", nil),
		})
		return srv.Start(ctx, port)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
