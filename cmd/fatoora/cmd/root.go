package cmd

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rezonia/fatoora/internal/config"
	"github.com/rezonia/fatoora/internal/logger"
	"github.com/rezonia/fatoora/internal/signature"
	"github.com/rezonia/fatoora/internal/submission"
)

var (
	version = "0.1.0"

	// Global flags
	verbose      bool
	outputFormat string
	envFile      string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "fatoora",
	Short: "Build, validate, sign and submit ZATCA e-invoices",
	Long: `Fatoora is a toolkit for Saudi ZATCA e-invoicing (Phase 1 and Phase 2).

It builds UBL 2.1 invoices, credit and debit notes with their QR code,
checks them against the business rules, signs them with a secp256k1
device key and reports or clears them through the Fatoora gateway.

Configuration comes from FATOORA_* environment variables and an optional
.env file; flags override both.

Examples:
  # Build a document from a JSON request
  fatoora generate request.json -o invoice.xml

  # Validate documents
  fatoora validate invoices/

  # Create a device key and certificate request
  fatoora csr --common-name EGS1-886431145 --organization "Acme" --unit "Riyadh Branch"

  # Sign and report
  fatoora sign invoice.xml --cert cert.pem --key key.pem
  fatoora submit invoice.signed.xml --mode reporting`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "table", "Output format (json, table)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Environment file to load (default: .env)")
}

func initConfig(cmd *cobra.Command, args []string) error {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	if err := config.LoadDotEnv(files...); err != nil {
		return err
	}

	loaded, err := config.Load()
	if err != nil {
		return err
	}

	logConfig := loaded.GetLoggerConfig()
	if verbose {
		logConfig.Level = "debug"
	}
	if err := logger.Setup(logConfig); err != nil {
		return err
	}

	switch outputFormat {
	case "json", "table":
	default:
		return fmt.Errorf("unknown output format %q (want json or table)", outputFormat)
	}

	cfg = loaded
	log.Debug().Str("command", cmd.Name()).Str("environment", string(cfg.Environment)).Msg("configuration loaded")
	return nil
}

// readInput reads a file, or stdin when path is "-"
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func writeJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// gatewayCredentials resolves the CSID pair. The certificate is the
// binarySecurityToken as issued; without a flag it is derived from the
// configured PEM certificate.
func gatewayCredentials(certificate, secret string) (submission.Credentials, error) {
	if secret == "" {
		secret = cfg.Secret
	}
	if certificate == "" && cfg.CertificateFile != "" {
		data, err := os.ReadFile(cfg.CertificateFile)
		if err != nil {
			return submission.Credentials{}, fmt.Errorf("read certificate: %w", err)
		}
		cert, err := signature.ParseCertificatePEM(data)
		if err != nil {
			return submission.Credentials{}, err
		}
		certificate = base64.StdEncoding.EncodeToString([]byte(cert.Base64()))
	}
	creds := submission.Credentials{Certificate: strings.TrimSpace(certificate), Secret: secret}
	if creds.Empty() {
		return creds, submission.ErrMissingCredentials
	}
	return creds, nil
}

// gatewayClient builds a submission client from the configuration
func gatewayClient(creds submission.Credentials) *submission.Client {
	return submission.NewClient(creds,
		submission.WithBaseURL(cfg.GatewayBaseURL()),
		submission.WithTimeout(cfg.GatewayTimeout),
		submission.WithLogger(logger.WithComponent("submission")),
	)
}
