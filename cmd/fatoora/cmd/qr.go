package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rezonia/fatoora/internal/model"
	"github.com/rezonia/fatoora/internal/tlv"
)

var qrFields struct {
	seller    string
	vatNumber string
	timestamp string
	total     string
	vatAmount string
}

var qrCmd = &cobra.Command{
	Use:   "qr",
	Short: "Encode and decode QR payloads",
	Long: `Encode and decode the base64 TLV payload carried in the invoice QR code.

Tags 1-5 (seller name, VAT number, timestamp, total, VAT total) are present
on every document; tags 6-8 (hash, signature, public key) only after signing.`,
}

var qrEncodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Encode a Phase-1 QR payload",
	Example: `  fatoora qr encode --seller "Acme Trading Co" --vat-number 300000000000003 \
    --timestamp 2024-01-15T10:30:00Z --total 5750.00 --vat-amount 750.00`,
	Args: cobra.NoArgs,
	RunE: runQREncode,
}

var qrDecodeCmd = &cobra.Command{
	Use:     "decode <qr>",
	Short:   "Decode a base64 QR payload",
	Example: `  fatoora qr decode ARBBY21lIFRyYWRpbmcgQ28CDzMwMDAwMDAwMDAwMDAwMw==`,
	Args:    cobra.ExactArgs(1),
	RunE:    runQRDecode,
}

func init() {
	rootCmd.AddCommand(qrCmd)
	qrCmd.AddCommand(qrEncodeCmd, qrDecodeCmd)

	flags := qrEncodeCmd.Flags()
	flags.StringVar(&qrFields.seller, "seller", "", "Seller name")
	flags.StringVar(&qrFields.vatNumber, "vat-number", "", "Seller VAT number (15 digits)")
	flags.StringVar(&qrFields.timestamp, "timestamp", "", "Issue timestamp (YYYY-MM-DDTHH:MM:SSZ)")
	flags.StringVar(&qrFields.total, "total", "", "Total with VAT")
	flags.StringVar(&qrFields.vatAmount, "vat-amount", "", "VAT total")
	for _, name := range []string{"seller", "vat-number", "timestamp", "total", "vat-amount"} {
		_ = qrEncodeCmd.MarkFlagRequired(name)
	}
}

func runQREncode(cmd *cobra.Command, args []string) error {
	if problems := model.ValidateVATNumber(qrFields.vatNumber); len(problems) > 0 {
		return fmt.Errorf("invalid VAT number: %s", strings.Join(problems, "; "))
	}

	payload := tlv.Phase1(qrFields.seller, qrFields.vatNumber, qrFields.timestamp, qrFields.total, qrFields.vatAmount)
	qr, err := tlv.EncodeBase64(payload)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
			"qr":     qr,
			"fields": payload.Named(),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), qr)
	return nil
}

func runQRDecode(cmd *cobra.Command, args []string) error {
	payload, err := tlv.DecodeBase64(strings.TrimSpace(args[0]))
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
			"fields": payload.Named(),
			"signed": payload.Signed(),
		})
	}
	printPayload(cmd.OutOrStdout(), payload)
	return nil
}

func printPayload(w io.Writer, payload tlv.Payload) {
	named := payload.Named()
	for _, f := range payload {
		name := f.Tag.String()
		fmt.Fprintf(w, "%d %-17s %s\n", byte(f.Tag), name, named[name])
	}
}
