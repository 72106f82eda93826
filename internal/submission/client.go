// Package submission is a thin client for the e-invoicing gateway: CSID
// onboarding, compliance checks, reporting and clearance. Responses are
// passed back verbatim; retries and backoff are left to the caller.
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rezonia/fatoora/internal/metrics"
)

// DefaultTimeout bounds a single gateway call
const DefaultTimeout = 30 * time.Second

// Gateway endpoints, relative to the environment base URL
const (
	PathComplianceCSID = "/compliance"
	PathCompliance     = "/compliance/invoices"
	PathReporting      = "/invoices/reporting/single"
	PathClearance      = "/invoices/clearance/single"
	PathProductionCSID = "/production/csids"
)

// maxResponseBytes caps how much of a response body is read
const maxResponseBytes = 10 << 20

// Option configures the client
type Option func(*Client)

// WithEnvironment selects the sandbox or production gateway
func WithEnvironment(env Environment) Option {
	return func(c *Client) {
		c.baseURL = env.BaseURL()
	}
}

// WithBaseURL overrides the gateway URL
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient sets the HTTP client used for every call
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-call timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics records call latency
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// Client talks to the gateway. It is safe for concurrent use.
type Client struct {
	baseURL     string
	credentials Credentials
	httpClient  *http.Client
	timeout     time.Duration
	logger      zerolog.Logger
	metrics     *metrics.Metrics
}

// NewClient creates a client authenticating with creds. Credentials may be
// empty when only RequestComplianceCSID is used.
func NewClient(creds Credentials, opts ...Option) *Client {
	c := &Client{
		baseURL:     SandboxBaseURL,
		credentials: creds,
		timeout:     DefaultTimeout,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

// BaseURL returns the gateway URL in use
func (c *Client) BaseURL() string {
	return c.baseURL
}

// RequestComplianceCSID exchanges a base64 CSR and portal OTP for a
// compliance certificate and secret. No Basic auth is sent.
func (c *Client) RequestComplianceCSID(ctx context.Context, csrBase64, otp string) (*Response, error) {
	if csrBase64 == "" {
		return nil, NewRequestError("compliance_csid", fmt.Errorf("CSR is required"))
	}
	if otp == "" {
		return nil, NewRequestError("compliance_csid", fmt.Errorf("OTP is required"))
	}
	headers := map[string]string{"OTP": otp}
	return c.post(ctx, "compliance_csid", PathComplianceCSID, headers, false, map[string]string{"csr": csrBase64})
}

// RequestProductionCSID exchanges a compliance request ID for the production certificate
func (c *Client) RequestProductionCSID(ctx context.Context, complianceRequestID string) (*Response, error) {
	if complianceRequestID == "" {
		return nil, NewRequestError("production_csid", fmt.Errorf("compliance request ID is required"))
	}
	body := map[string]string{"compliance_request_id": complianceRequestID}
	return c.post(ctx, "production_csid", PathProductionCSID, nil, true, body)
}

// CheckCompliance runs the gateway's checks on a signed document without reporting it
func (c *Client) CheckCompliance(ctx context.Context, req InvoiceRequest) (*Response, error) {
	return c.submitInvoice(ctx, "compliance", PathCompliance, nil, req)
}

// Report submits a simplified document (Clearance-Status: 0)
func (c *Client) Report(ctx context.Context, req InvoiceRequest) (*Response, error) {
	return c.submitInvoice(ctx, string(ModeReporting), PathReporting, map[string]string{"Clearance-Status": "0"}, req)
}

// Clear submits a standard document for clearance (Clearance-Status: 1)
func (c *Client) Clear(ctx context.Context, req InvoiceRequest) (*Response, error) {
	return c.submitInvoice(ctx, string(ModeClearance), PathClearance, map[string]string{"Clearance-Status": "1"}, req)
}

// Submit dispatches to Report or Clear
func (c *Client) Submit(ctx context.Context, mode Mode, req InvoiceRequest) (*Response, error) {
	switch mode {
	case ModeReporting:
		return c.Report(ctx, req)
	case ModeClearance:
		return c.Clear(ctx, req)
	default:
		return nil, NewRequestError("submit", fmt.Errorf("unknown submission mode %q", mode))
	}
}

func (c *Client) submitInvoice(ctx context.Context, op, path string, headers map[string]string, req InvoiceRequest) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, NewRequestError(op, err)
	}
	return c.post(ctx, op, path, headers, true, req)
}

func (c *Client) post(ctx context.Context, op, path string, headers map[string]string, auth bool, payload interface{}) (*Response, error) {
	if auth && c.credentials.Empty() {
		return nil, NewRequestError(op, ErrMissingCredentials)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewRequestError(op, fmt.Errorf("encode request: %w", err))
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, NewRequestError(op, fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Accept-Version", "V2")
	httpReq.Header.Set("Accept-Language", "en")
	if auth {
		httpReq.Header.Set("Authorization", c.credentials.authorization())
	}
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.ObserveSubmission(op, 0, time.Since(start))
		c.logger.Error().Err(err).Str("op", op).Str("url", httpReq.URL.String()).Msg("gateway call failed")
		return nil, NewRequestError(op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start)
	c.metrics.ObserveSubmission(op, resp.StatusCode, elapsed)
	if err != nil {
		return nil, NewRequestError(op, fmt.Errorf("read response: %w", err))
	}

	c.logger.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("gateway call completed")

	return &Response{StatusCode: resp.StatusCode, Body: asJSON(raw)}, nil
}

// asJSON keeps a JSON body as is and wraps anything else as a JSON string
func asJSON(raw []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, _ := json.Marshal(string(trimmed))
	return quoted
}
