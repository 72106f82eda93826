package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rezonia/fatoora/internal/model"
	"github.com/rezonia/fatoora/internal/ubl"
)

var (
	generateOutput string
	generateQR     bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <request.json>",
	Short: "Build an invoice, credit note or debit note",
	Long: `Build a UBL 2.1 document from a JSON construction request.

The request carries the invoice number, type, issue date, seller, buyer
and line items. Missing UUID and issue time are generated. The Phase-1 QR
code is embedded in the document.

Document types: standard, simplified, standard-credit-note,
simplified-credit-note, standard-debit-note, simplified-debit-note.`,
	Example: `  fatoora generate request.json -o invoice.xml
  cat request.json | fatoora generate - --qr`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "Output file (default: stdout)")
	generateCmd.Flags().BoolVar(&generateQR, "qr", false, "Also print the base64 QR payload")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd, args[0])
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}

	var req model.InvoiceRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parse request: %w", err)
	}

	inv, err := model.NewInvoice(req)
	if err != nil {
		return err
	}
	doc, err := ubl.BuildDocument(inv)
	if err != nil {
		return err
	}
	xmlData, err := doc.Bytes()
	if err != nil {
		return err
	}
	log.Debug().Str("id", inv.ID).Str("uuid", inv.UUID).Str("type", string(inv.Type)).Msg("document built")

	qrOut := cmd.OutOrStdout()
	if generateOutput == "" {
		if _, err := cmd.OutOrStdout().Write(xmlData); err != nil {
			return err
		}
		qrOut = cmd.ErrOrStderr()
	} else {
		if err := os.WriteFile(generateOutput, xmlData, 0o644); err != nil {
			return fmt.Errorf("write document: %w", err)
		}
		log.Info().Str("file", generateOutput).Str("uuid", inv.UUID).Msg("document written")
	}

	if generateQR {
		fmt.Fprintln(qrOut, doc.EmbeddedQR())
	}
	return nil
}
