package submission

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Gateway base URLs
const (
	SandboxBaseURL    = "https://gw-fatoora.zatca.gov.sa/e-invoicing/developer-portal"
	ProductionBaseURL = "https://gw-fatoora.zatca.gov.sa/e-invoicing/core"
)

// Environment selects the gateway
type Environment string

const (
	Sandbox    Environment = "sandbox"
	Production Environment = "production"
)

// ParseEnvironment parses "sandbox" or "production", case-insensitively
func ParseEnvironment(s string) (Environment, error) {
	switch env := Environment(strings.ToLower(strings.TrimSpace(s))); env {
	case Sandbox, Production:
		return env, nil
	default:
		return "", fmt.Errorf("unknown environment %q (want sandbox or production)", s)
	}
}

// BaseURL returns the gateway URL of the environment
func (e Environment) BaseURL() string {
	if e == Production {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

// Mode selects how a signed document is submitted
type Mode string

const (
	// ModeReporting reports a simplified document after the fact
	ModeReporting Mode = "reporting"
	// ModeClearance clears a standard document before it is shared
	ModeClearance Mode = "clearance"
)

// ParseMode parses "reporting" or "clearance", case-insensitively
func ParseMode(s string) (Mode, error) {
	switch mode := Mode(strings.ToLower(strings.TrimSpace(s))); mode {
	case ModeReporting, ModeClearance:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown submission mode %q (want reporting or clearance)", s)
	}
}

// Credentials are the CSID certificate and secret returned by onboarding
type Credentials struct {
	Certificate string
	Secret      string
}

// Empty reports whether either half is missing
func (c Credentials) Empty() bool {
	return c.Certificate == "" || c.Secret == ""
}

// authorization returns the Basic header value: base64(certificate:secret)
func (c Credentials) authorization() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.Certificate+":"+c.Secret))
}

// InvoiceRequest is a signed document ready for submission
type InvoiceRequest struct {
	// Document is the signed XML; it is base64-encoded on the wire
	Document []byte
	Hash     string
	UUID     string
}

// Validate checks that every part is present
func (r InvoiceRequest) Validate() error {
	switch {
	case len(r.Document) == 0:
		return fmt.Errorf("signed document is required")
	case r.Hash == "":
		return fmt.Errorf("invoice hash is required")
	case r.UUID == "":
		return fmt.Errorf("invoice UUID is required")
	}
	return nil
}

func (r InvoiceRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		InvoiceHash string `json:"invoiceHash"`
		UUID        string `json:"uuid"`
		Invoice     string `json:"invoice"`
	}{
		InvoiceHash: r.Hash,
		UUID:        r.UUID,
		Invoice:     base64.StdEncoding.EncodeToString(r.Document),
	})
}

// Response is the gateway answer, passed through verbatim
type Response struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into v
func (r *Response) Decode(v interface{}) error {
	if len(r.Body) == 0 {
		return fmt.Errorf("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

// ValidationMessage is a single rule outcome reported by the gateway
type ValidationMessage struct {
	Type     string `json:"type,omitempty"`
	Code     string `json:"code,omitempty"`
	Category string `json:"category,omitempty"`
	Message  string `json:"message,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ValidationResults groups the gateway's findings
type ValidationResults struct {
	InfoMessages    []ValidationMessage `json:"infoMessages,omitempty"`
	WarningMessages []ValidationMessage `json:"warningMessages,omitempty"`
	ErrorMessages   []ValidationMessage `json:"errorMessages,omitempty"`
	Status          string              `json:"status,omitempty"`
}

// SubmissionResponse is the body of compliance, reporting and clearance calls
type SubmissionResponse struct {
	ValidationResults *ValidationResults  `json:"validationResults,omitempty"`
	ReportingStatus   string              `json:"reportingStatus,omitempty"`
	ClearanceStatus   string              `json:"clearanceStatus,omitempty"`
	ClearedInvoice    string              `json:"clearedInvoice,omitempty"`
	Errors            []ValidationMessage `json:"errors,omitempty"`
	Warnings          []ValidationMessage `json:"warnings,omitempty"`
}

// RequestID is the compliance request identifier. The gateway sends it as
// a JSON number; a string is accepted too.
type RequestID string

func (id *RequestID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = RequestID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("requestID: %w", err)
	}
	*id = RequestID(n.String())
	return nil
}

// CSIDResponse is the body of the compliance and production CSID calls
type CSIDResponse struct {
	RequestID           RequestID           `json:"requestID,omitempty"`
	DispositionMessage  string              `json:"dispositionMessage,omitempty"`
	BinarySecurityToken string              `json:"binarySecurityToken,omitempty"`
	Secret              string              `json:"secret,omitempty"`
	Errors              []ValidationMessage `json:"errors,omitempty"`
}

// Credentials returns the certificate and secret carried by the response
func (r CSIDResponse) Credentials() Credentials {
	return Credentials{Certificate: r.BinarySecurityToken, Secret: r.Secret}
}
