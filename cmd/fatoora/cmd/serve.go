package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rezonia/fatoora/internal/logger"
	"github.com/rezonia/fatoora/internal/server"
	"github.com/rezonia/fatoora/internal/submission"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server over the invoicing core.

The API provides endpoints for:
  - POST /api/v1/invoices   - Build a document from a JSON request
  - POST /api/v1/validate   - Validate a document
  - POST /api/v1/qr/encode  - Encode a Phase-1 QR payload
  - POST /api/v1/qr/decode  - Decode a QR payload
  - POST /api/v1/csr        - Generate a device key and CSR
  - POST /api/v1/sign       - Sign a document
  - POST /api/v1/verify     - Verify a signed document
  - POST /api/v1/submit     - Report or clear a signed document
  - GET  /metrics           - Prometheus metrics
  - GET  /health            - Health check

Without signing support the signing endpoints answer 503 while the rest
keep working.`,
	Example: `  fatoora serve
  fatoora serve --address :9090 --debug`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("address", "", "Server listen address (env: FATOORA_ADDRESS)")
	serveCmd.Flags().Bool("debug", false, "Enable debug mode (env: FATOORA_DEBUG)")
	serveCmd.Flags().Duration("read-timeout", 0, "HTTP read timeout (env: FATOORA_READ_TIMEOUT)")
	serveCmd.Flags().Duration("write-timeout", 0, "HTTP write timeout (env: FATOORA_WRITE_TIMEOUT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if flags.Changed("address") {
		cfg.ServerAddress, _ = flags.GetString("address")
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	if flags.Changed("read-timeout") {
		cfg.ReadTimeout, _ = flags.GetDuration("read-timeout")
	}
	if flags.Changed("write-timeout") {
		cfg.WriteTimeout, _ = flags.GetDuration("write-timeout")
	}

	log := logger.WithComponent("server")

	var creds submission.Credentials
	if cfg.Secret != "" {
		resolved, err := gatewayCredentials("", "")
		if err != nil {
			log.Warn().Err(err).Msg("gateway credentials unavailable; /api/v1/submit needs per-request credentials")
		} else {
			creds = resolved
		}
	}

	srv := server.NewServer(&server.Config{
		Address:        cfg.ServerAddress,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		Debug:          cfg.Debug,
		Environment:    cfg.Environment,
		GatewayURL:     cfg.GatewayURL,
		GatewayTimeout: cfg.GatewayTimeout,
		Credentials:    creds,
		Logger:         log,
	})

	log.Info().
		Str("address", cfg.ServerAddress).
		Str("gateway", cfg.GatewayBaseURL()).
		Bool("credentials", !creds.Empty()).
		Msg("starting server")
	return srv.Run(cmd.Context())
}
