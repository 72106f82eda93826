package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rezonia/fatoora/internal/logger"
	"github.com/rezonia/fatoora/internal/signature"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [files...]",
	Short: "Verify document signatures",
	Long: `Verify the enveloped signature of one or more signed documents.

Checks performed:
  - Document digest against the canonical document
  - Signed properties and certificate digests
  - ECDSA signature value against the embedded certificate
  - QR tags 6-8 against the hash, signature and public key`,
	Example: `  fatoora verify invoice.signed.xml
  fatoora verify signed/ -f json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

// VerifyOutcome holds the result of verifying a single file
type VerifyOutcome struct {
	File   string                        `json:"file"`
	Result *signature.VerificationResult `json:"result,omitempty"`
	Error  string                        `json:"error,omitempty"`
}

func (o *VerifyOutcome) valid() bool {
	return o.Error == "" && o.Result != nil && o.Result.Valid
}

func runVerify(cmd *cobra.Command, args []string) error {
	verifier, err := signature.NewVerifier(signature.WithLogger(logger.WithComponent("signature")))
	if err != nil {
		return err
	}

	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to verify")
	}

	outcomes := make([]*VerifyOutcome, len(files))
	err = forEachFile(cmd.Context(), files, func(_ context.Context, i int, file string) {
		outcome := &VerifyOutcome{File: file}
		outcomes[i] = outcome

		data, err := os.ReadFile(file)
		if err != nil {
			outcome.Error = fmt.Sprintf("failed to read file: %v", err)
			return
		}
		result, err := verifier.Verify(data)
		if err != nil {
			outcome.Error = err.Error()
			return
		}
		outcome.Result = result
	})
	if err != nil {
		return err
	}

	if err := printVerification(cmd.OutOrStdout(), outcomes); err != nil {
		return err
	}

	invalid := 0
	for _, o := range outcomes {
		if !o.valid() {
			invalid++
		}
	}
	if invalid > 0 {
		return fmt.Errorf("verification failed for %d of %d files", invalid, len(outcomes))
	}
	return nil
}

func printVerification(w io.Writer, outcomes []*VerifyOutcome) error {
	if outputFormat == "json" {
		return writeJSON(w, outcomes)
	}

	for _, o := range outcomes {
		if o.Error != "" {
			fmt.Fprintf(w, "✗ %s: %s\n", o.File, o.Error)
			continue
		}
		r := o.Result
		if r.Valid {
			fmt.Fprintf(w, "✓ %s: VALID\n", o.File)
		} else {
			fmt.Fprintf(w, "✗ %s: INVALID\n", o.File)
		}
		if r.Signer != nil {
			fmt.Fprintf(w, "  Signer: %s", r.Signer.Name)
			if r.Signer.Organization != "" {
				fmt.Fprintf(w, " (%s)", r.Signer.Organization)
			}
			fmt.Fprintln(w)
		}
		if r.SignedAt != nil {
			fmt.Fprintf(w, "  Signed: %s\n", r.SignedAt.Format("2006-01-02 15:04:05 MST"))
		}
		fmt.Fprintf(w, "  Digest: %s  Properties: %s  Certificate: %s  Signature: %s  QR: %s\n",
			check(r.DocumentDigestValid), check(r.PropertiesDigestValid), check(r.CertificateDigestValid),
			check(r.SignatureValid), check(r.QRConsistent))
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
		for _, warning := range r.Warnings {
			fmt.Fprintf(w, "  ⚠ %s\n", warning)
		}
	}
	return nil
}

func check(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
