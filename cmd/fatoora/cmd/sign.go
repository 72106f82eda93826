package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rezonia/fatoora/internal/logger"
	"github.com/rezonia/fatoora/internal/signature"
)

var (
	signCertFile string
	signKeyFile  string
	signOutDir   string
	signOutput   string
)

var signCmd = &cobra.Command{
	Use:   "sign [files...]",
	Short: "Sign documents",
	Long: `Sign one or more documents with a device key and certificate.

Each document gets an enveloped XAdES signature and a regenerated QR code
carrying the invoice hash, signature and public key (tags 6-8). Any
existing signature is replaced. Signed documents are written next to the
input as <name>.signed.xml unless --out-dir or --output is given.`,
	Example: `  fatoora sign invoice.xml --cert device/certificate.pem --key device/private-key.pem
  fatoora sign invoices/ --out-dir signed/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSign,
}

func init() {
	rootCmd.AddCommand(signCmd)

	signCmd.Flags().StringVar(&signCertFile, "cert", "", "Certificate PEM file (env: FATOORA_CERTIFICATE)")
	signCmd.Flags().StringVar(&signKeyFile, "key", "", "Private key PEM file (env: FATOORA_PRIVATE_KEY)")
	signCmd.Flags().StringVar(&signOutDir, "out-dir", "", "Directory for signed documents")
	signCmd.Flags().StringVarP(&signOutput, "output", "o", "", "Output file, single input only (\"-\" for stdout)")
}

// SignOutcome holds the result of signing a single file
type SignOutcome struct {
	File           string `json:"file"`
	Output         string `json:"output,omitempty"`
	Hash           string `json:"hash,omitempty"`
	QR             string `json:"qr,omitempty"`
	FullyCompliant bool   `json:"fully_compliant"`
	Error          string `json:"error,omitempty"`
}

func runSign(cmd *cobra.Command, args []string) error {
	if signCertFile == "" {
		signCertFile = cfg.CertificateFile
	}
	if signKeyFile == "" {
		signKeyFile = cfg.PrivateKeyFile
	}
	if signCertFile == "" || signKeyFile == "" {
		return signature.NewMissingSigningMaterialError("certificate and private key files are required", nil)
	}

	certPEM, err := os.ReadFile(signCertFile)
	if err != nil {
		return fmt.Errorf("read certificate: %w", err)
	}
	keyPEM, err := os.ReadFile(signKeyFile)
	if err != nil {
		return fmt.Errorf("read private key: %w", err)
	}
	key, err := signature.ParsePrivateKeyPEM(keyPEM)
	if err != nil {
		return err
	}
	signer, err := signature.NewSigner(signature.WithLogger(logger.WithComponent("signature")))
	if err != nil {
		return err
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to sign")
	}
	if signOutput != "" && len(files) > 1 {
		return fmt.Errorf("--output requires a single input file")
	}
	if signOutDir != "" {
		if err := os.MkdirAll(signOutDir, 0o755); err != nil {
			return err
		}
	}

	outcomes := make([]*SignOutcome, len(files))
	err = forEachFile(cmd.Context(), files, func(_ context.Context, i int, file string) {
		outcomes[i] = signFile(cmd.OutOrStdout(), signer, file, certPEM, key)
	})
	if err != nil {
		return err
	}

	if signOutput == "-" {
		if outcomes[0].Error != "" {
			return fmt.Errorf("%s: %s", outcomes[0].File, outcomes[0].Error)
		}
		return nil
	}
	return printSignOutcomes(cmd.OutOrStdout(), outcomes)
}

func signFile(stdout io.Writer, signer *signature.Signer, file string, certPEM []byte, key *signature.PrivateKey) *SignOutcome {
	outcome := &SignOutcome{File: file}

	data, err := os.ReadFile(file)
	if err != nil {
		outcome.Error = fmt.Sprintf("failed to read file: %v", err)
		return outcome
	}
	result, err := signer.SignWithKey(data, certPEM, key)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Hash = result.Hash
	outcome.QR = result.QR
	outcome.FullyCompliant = result.FullyCompliant

	if signOutput == "-" {
		if _, err := stdout.Write(result.Document); err != nil {
			outcome.Error = err.Error()
		}
		return outcome
	}

	outcome.Output = signedPath(file)
	if err := os.WriteFile(outcome.Output, result.Document, 0o644); err != nil {
		outcome.Error = fmt.Sprintf("failed to write file: %v", err)
	}
	return outcome
}

func signedPath(file string) string {
	switch {
	case signOutput != "":
		return signOutput
	case signOutDir != "":
		return filepath.Join(signOutDir, filepath.Base(file))
	default:
		return strings.TrimSuffix(file, filepath.Ext(file)) + ".signed.xml"
	}
}

func printSignOutcomes(w io.Writer, outcomes []*SignOutcome) error {
	failed := 0
	for _, o := range outcomes {
		if o.Error != "" {
			failed++
		}
	}

	if outputFormat == "json" {
		if err := writeJSON(w, outcomes); err != nil {
			return err
		}
	} else {
		for _, o := range outcomes {
			if o.Error != "" {
				fmt.Fprintf(w, "✗ %s: %s\n", o.File, o.Error)
				continue
			}
			fmt.Fprintf(w, "✓ %s -> %s\n", o.File, o.Output)
			fmt.Fprintf(w, "  hash: %s\n", o.Hash)
		}
	}

	if failed > 0 {
		return fmt.Errorf("signing failed for %d of %d files", failed, len(outcomes))
	}
	return nil
}
