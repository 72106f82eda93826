package einvoice

import (
	"github.com/rezonia/fatoora/internal/submission"
)

type (
	Mode               = submission.Mode
	Environment        = submission.Environment
	SubmissionOption   = submission.Option
	SubmissionResponse = submission.Response
	GatewayResult      = submission.SubmissionResponse
	ComplianceIdentity = submission.CSIDResponse
)

const (
	ModeReporting = submission.ModeReporting
	ModeClearance = submission.ModeClearance

	Sandbox    = submission.Sandbox
	Production = submission.Production
)

// NewSubmissionClient returns a gateway client. Credentials may be empty
// for compliance CSID requests, which authenticate with an OTP instead.
func NewSubmissionClient(creds Credentials, opts ...SubmissionOption) *SubmissionClient {
	return submission.NewClient(creds, opts...)
}

// Submission options
var (
	WithEnvironment = submission.WithEnvironment
	WithBaseURL     = submission.WithBaseURL
	WithHTTPClient  = submission.WithHTTPClient
	WithTimeout     = submission.WithTimeout
	WithLogger      = submission.WithLogger
)
