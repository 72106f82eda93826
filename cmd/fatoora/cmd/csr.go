package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rezonia/fatoora/internal/signature"
)

var (
	csrSubject    signature.CSRSubject
	csrOutDir     string
	csrSelfSigned bool
	csrDays       int
)

var csrCmd = &cobra.Command{
	Use:   "csr",
	Short: "Generate a device key and certificate signing request",
	Long: `Generate a secp256k1 device key and a PKCS #10 certificate signing
request carrying the ZATCA subject fields.

Writes private-key.pem and csr.pem to the output directory and prints the
base64 request expected by the compliance CSID endpoint. With --self-signed
a certificate.pem for local signing is written as well.`,
	Example: `  fatoora csr --common-name EGS1-886431145 --organization "Acme Trading Co" \
    --unit "Riyadh Branch" --out-dir ./device --self-signed`,
	Args: cobra.NoArgs,
	RunE: runCSR,
}

func init() {
	rootCmd.AddCommand(csrCmd)

	flags := csrCmd.Flags()
	flags.StringVar(&csrSubject.CommonName, "common-name", "", "Device common name (CN)")
	flags.StringVar(&csrSubject.Organization, "organization", "", "Taxpayer name (O)")
	flags.StringVar(&csrSubject.OrganizationUnit, "unit", "", "Branch name (OU)")
	flags.StringVar(&csrSubject.Country, "country", signature.DefaultCSRCountry, "Country code (C)")
	flags.StringVar(&csrSubject.SerialNumber, "serial-number", signature.DefaultCSRSerialNumber, "Device serial number (SN)")
	flags.StringVar(&csrSubject.InvoiceType, "invoice-type", signature.DefaultCSRInvoiceType, "Document kinds issued, four 0/1 flags")
	flags.StringVar(&csrSubject.Location, "location", signature.DefaultCSRLocation, "Branch location")
	flags.StringVar(&csrSubject.Industry, "industry", signature.DefaultCSRIndustry, "Business category")
	flags.StringVar(&csrOutDir, "out-dir", ".", "Output directory")
	flags.BoolVar(&csrSelfSigned, "self-signed", false, "Also write a self-signed certificate")
	flags.IntVar(&csrDays, "days", 365, "Validity of the self-signed certificate in days")
	for _, name := range []string{"common-name", "organization", "unit"} {
		_ = csrCmd.MarkFlagRequired(name)
	}
}

func runCSR(cmd *cobra.Command, args []string) error {
	if err := signature.Available(); err != nil {
		return err
	}

	key, err := signature.GenerateKeyPair()
	if err != nil {
		return err
	}
	csr, err := signature.GenerateCertificateRequest(csrSubject, key)
	if err != nil {
		return err
	}
	keyPEM, err := key.MarshalPEM()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(csrOutDir, 0o755); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(csrOutDir, "private-key.pem"), keyPEM, 0o600); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(csrOutDir, "csr.pem"), csr, 0o644); err != nil {
		return err
	}

	if csrSelfSigned {
		now := time.Now()
		cert, err := signature.CreateSelfSignedCertificate(csrSubject, key, now, now.AddDate(0, 0, csrDays))
		if err != nil {
			return err
		}
		if err := writeFile(filepath.Join(csrOutDir, "certificate.pem"), cert, 0o644); err != nil {
			return err
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), base64.StdEncoding.EncodeToString(csr))
	return nil
}

func writeFile(path string, data []byte, perm os.FileMode) error {
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Info().Str("file", path).Msg("written")
	return nil
}
