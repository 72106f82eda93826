package cmd

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rezonia/fatoora/internal/submission"
)

var (
	csidOTP         string
	csidCertificate string
	csidSecret      string
)

var csidCmd = &cobra.Command{
	Use:   "csid",
	Short: "Request cryptographic stamp identifiers",
	Long: `Onboard a device with the Fatoora gateway.

"compliance" exchanges a CSR and a portal OTP for a compliance CSID;
"production" exchanges the compliance request ID for a production CSID,
authenticated with the compliance CSID.`,
}

var csidComplianceCmd = &cobra.Command{
	Use:     "compliance <csr.pem>",
	Short:   "Request a compliance CSID",
	Example: `  fatoora csid compliance device/csr.pem --otp 123345`,
	Args:    cobra.ExactArgs(1),
	RunE:    runCSIDCompliance,
}

var csidProductionCmd = &cobra.Command{
	Use:     "production <request-id>",
	Short:   "Request a production CSID",
	Example: `  fatoora csid production 1234567890123 --certificate <token> --secret <secret>`,
	Args:    cobra.ExactArgs(1),
	RunE:    runCSIDProduction,
}

func init() {
	rootCmd.AddCommand(csidCmd)
	csidCmd.AddCommand(csidComplianceCmd, csidProductionCmd)

	csidComplianceCmd.Flags().StringVar(&csidOTP, "otp", "", "One-time password from the Fatoora portal")
	_ = csidComplianceCmd.MarkFlagRequired("otp")

	csidProductionCmd.Flags().StringVar(&csidCertificate, "certificate", "", "Compliance binarySecurityToken (default: derived from FATOORA_CERTIFICATE)")
	csidProductionCmd.Flags().StringVar(&csidSecret, "secret", "", "Compliance secret (env: FATOORA_SECRET)")
}

func runCSIDCompliance(cmd *cobra.Command, args []string) error {
	csr, err := readInput(cmd, args[0])
	if err != nil {
		return fmt.Errorf("read csr: %w", err)
	}
	encoded := strings.TrimSpace(string(csr))
	if strings.HasPrefix(encoded, "-----BEGIN") {
		encoded = base64.StdEncoding.EncodeToString(csr)
	}

	resp, err := gatewayClient(submission.Credentials{}).RequestComplianceCSID(cmd.Context(), encoded, csidOTP)
	if err != nil {
		return err
	}
	return printCSID(cmd, resp)
}

func runCSIDProduction(cmd *cobra.Command, args []string) error {
	creds, err := gatewayCredentials(csidCertificate, csidSecret)
	if err != nil {
		return err
	}
	resp, err := gatewayClient(creds).RequestProductionCSID(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printCSID(cmd, resp)
}

func printCSID(cmd *cobra.Command, resp *submission.Response) error {
	if !resp.OK() || outputFormat == "json" {
		if err := printResponse(cmd.OutOrStdout(), resp); err != nil {
			return err
		}
		if !resp.OK() {
			return fmt.Errorf("gateway returned status %d", resp.StatusCode)
		}
		return nil
	}

	var csid submission.CSIDResponse
	if err := resp.Decode(&csid); err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "request_id:  %s\n", csid.RequestID)
	fmt.Fprintf(w, "disposition: %s\n", csid.DispositionMessage)
	fmt.Fprintf(w, "certificate: %s\n", csid.BinarySecurityToken)
	fmt.Fprintf(w, "secret:      %s\n", csid.Secret)
	return nil
}
