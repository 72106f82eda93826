package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rezonia/fatoora/internal/submission"
	"github.com/rezonia/fatoora/internal/ubl"
)

var (
	submitHash        string
	submitUUID        string
	submitMode        string
	submitEnv         string
	submitCertificate string
	submitSecret      string
	submitCompliance  bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <signed.xml>",
	Short: "Report or clear a signed document",
	Long: `Submit a signed document to the Fatoora gateway.

Simplified documents are reported (--mode reporting), standard documents
are cleared (--mode clearance). With --compliance the document is sent to
the compliance check endpoint instead. The hash and UUID are read from the
document unless given. The gateway response is printed verbatim and the
command exits non-zero on a non-2xx status.`,
	Example: `  fatoora submit invoice.signed.xml --mode clearance --env sandbox
  fatoora submit invoice.signed.xml --compliance --certificate <token> --secret <secret>`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	flags := submitCmd.Flags()
	flags.StringVar(&submitHash, "hash", "", "Invoice hash (default: computed from the document)")
	flags.StringVar(&submitUUID, "uuid", "", "Invoice UUID (default: read from the document)")
	flags.StringVar(&submitMode, "mode", string(submission.ModeReporting), "Submission mode (reporting, clearance)")
	flags.StringVar(&submitEnv, "env", "", "Gateway environment (sandbox, production; env: FATOORA_ENVIRONMENT)")
	flags.StringVar(&submitCertificate, "certificate", "", "CSID binarySecurityToken (default: derived from FATOORA_CERTIFICATE)")
	flags.StringVar(&submitSecret, "secret", "", "CSID secret (env: FATOORA_SECRET)")
	flags.BoolVar(&submitCompliance, "compliance", false, "Send to the compliance check endpoint")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	mode, err := submission.ParseMode(submitMode)
	if err != nil {
		return err
	}
	if submitEnv != "" {
		env, err := submission.ParseEnvironment(submitEnv)
		if err != nil {
			return err
		}
		cfg.Environment = env
	}

	data, err := readInput(cmd, args[0])
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	req := submission.InvoiceRequest{Document: data, Hash: submitHash, UUID: submitUUID}
	if req.Hash == "" || req.UUID == "" {
		doc, err := ubl.ParseDocument(data)
		if err != nil {
			return err
		}
		if req.UUID == "" {
			req.UUID = doc.Text("cbc:UUID")
		}
		if req.Hash == "" {
			if req.Hash, err = doc.Hash(); err != nil {
				return err
			}
		}
	}
	if err := req.Validate(); err != nil {
		return err
	}

	creds, err := gatewayCredentials(submitCertificate, submitSecret)
	if err != nil {
		return err
	}
	client := gatewayClient(creds)

	var resp *submission.Response
	if submitCompliance {
		resp, err = client.CheckCompliance(cmd.Context(), req)
	} else {
		resp, err = client.Submit(cmd.Context(), mode, req)
	}
	if err != nil {
		return err
	}
	log.Info().Str("uuid", req.UUID).Int("status", resp.StatusCode).Str("gateway", client.BaseURL()).Msg("submitted")

	if err := printResponse(cmd.OutOrStdout(), resp); err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// printResponse writes the gateway body, indented when it is JSON
func printResponse(w io.Writer, resp *submission.Response) error {
	if len(resp.Body) == 0 {
		fmt.Fprintf(w, "status %d (empty body)\n", resp.StatusCode)
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, resp.Body, "", "  "); err != nil {
		_, err = w.Write(resp.Body)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
