package submission_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/fatoora/internal/metrics"
	"github.com/rezonia/fatoora/internal/submission"
)

type recorded struct {
	Method  string
	Path    string
	Header  http.Header
	Payload map[string]string
}

// gateway is a fake that records every request and replies with status/body
type gateway struct {
	mu       sync.Mutex
	requests []recorded
	status   int
	body     string
}

func (g *gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	var payload map[string]string
	_ = json.Unmarshal(data, &payload)

	g.mu.Lock()
	g.requests = append(g.requests, recorded{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Payload: payload})
	g.mu.Unlock()

	w.WriteHeader(g.status)
	_, _ = io.WriteString(w, g.body)
}

func (g *gateway) last(t *testing.T) recorded {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.requests)
	return g.requests[len(g.requests)-1]
}

func newGateway(t *testing.T, status int, body string) (*gateway, *httptest.Server) {
	t.Helper()
	g := &gateway{status: status, body: body}
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)
	return g, srv
}

var creds = submission.Credentials{Certificate: "TUlJQ2VydA==", Secret: "s3cret"}

func invoiceRequest() submission.InvoiceRequest {
	return submission.InvoiceRequest{
		Document: []byte("<Invoice/>"),
		Hash:     "aGFzaA==",
		UUID:     "3cf5ee18-ee25-44ea-a444-2c37ba7f28be",
	}
}

func TestClient_InvoiceEndpoints(t *testing.T) {
	tests := []struct {
		name      string
		call      func(c *submission.Client) (*submission.Response, error)
		path      string
		clearance string
	}{
		{"report", func(c *submission.Client) (*submission.Response, error) {
			return c.Report(context.Background(), invoiceRequest())
		}, "/invoices/reporting/single", "0"},
		{"clear", func(c *submission.Client) (*submission.Response, error) {
			return c.Clear(context.Background(), invoiceRequest())
		}, "/invoices/clearance/single", "1"},
		{"submit reporting", func(c *submission.Client) (*submission.Response, error) {
			return c.Submit(context.Background(), submission.ModeReporting, invoiceRequest())
		}, "/invoices/reporting/single", "0"},
		{"submit clearance", func(c *submission.Client) (*submission.Response, error) {
			return c.Submit(context.Background(), submission.ModeClearance, invoiceRequest())
		}, "/invoices/clearance/single", "1"},
		{"compliance", func(c *submission.Client) (*submission.Response, error) {
			return c.CheckCompliance(context.Background(), invoiceRequest())
		}, "/compliance/invoices", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, srv := newGateway(t, http.StatusOK, `{"reportingStatus":"REPORTED"}`)
			client := submission.NewClient(creds, submission.WithBaseURL(srv.URL+"/"))

			resp, err := tt.call(client)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.True(t, resp.OK())
			assert.JSONEq(t, `{"reportingStatus":"REPORTED"}`, string(resp.Body))

			req := g.last(t)
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, tt.path, req.Path)
			assert.Equal(t, tt.clearance, req.Header.Get("Clearance-Status"))
			assert.Equal(t, "V2", req.Header.Get("Accept-Version"))
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

			wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("TUlJQ2VydA==:s3cret"))
			assert.Equal(t, wantAuth, req.Header.Get("Authorization"))

			assert.Equal(t, "aGFzaA==", req.Payload["invoiceHash"])
			assert.Equal(t, "3cf5ee18-ee25-44ea-a444-2c37ba7f28be", req.Payload["uuid"])
			assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("<Invoice/>")), req.Payload["invoice"])
		})
	}
}

func TestClient_ComplianceCSID(t *testing.T) {
	g, srv := newGateway(t, http.StatusOK,
		`{"requestID":1234567890123,"dispositionMessage":"ISSUED","binarySecurityToken":"TUlJ","secret":"abc"}`)
	client := submission.NewClient(submission.Credentials{}, submission.WithBaseURL(srv.URL))

	resp, err := client.RequestComplianceCSID(context.Background(), "Q1NS", "123456")
	require.NoError(t, err)

	req := g.last(t)
	assert.Equal(t, "/compliance", req.Path)
	assert.Equal(t, "123456", req.Header.Get("OTP"))
	assert.Empty(t, req.Header.Get("Authorization"))
	assert.Equal(t, "Q1NS", req.Payload["csr"])

	var csid submission.CSIDResponse
	require.NoError(t, resp.Decode(&csid))
	assert.Equal(t, submission.RequestID("1234567890123"), csid.RequestID)
	assert.Equal(t, submission.Credentials{Certificate: "TUlJ", Secret: "abc"}, csid.Credentials())
}

func TestClient_ProductionCSID(t *testing.T) {
	g, srv := newGateway(t, http.StatusOK, `{"requestID":"42","binarySecurityToken":"UFJPRA==","secret":"p"}`)
	client := submission.NewClient(creds, submission.WithBaseURL(srv.URL))

	resp, err := client.RequestProductionCSID(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "/production/csids", g.last(t).Path)
	assert.Equal(t, "42", g.last(t).Payload["compliance_request_id"])

	var csid submission.CSIDResponse
	require.NoError(t, resp.Decode(&csid))
	assert.Equal(t, submission.RequestID("42"), csid.RequestID)
}

func TestClient_NonSuccessPassesThrough(t *testing.T) {
	body := `{"validationResults":{"status":"ERROR","errorMessages":[{"type":"ERROR","code":"invoiceHash_QRCODE_INVALID","message":"bad hash","status":"ERROR"}]}}`
	_, srv := newGateway(t, http.StatusBadRequest, body)
	client := submission.NewClient(creds, submission.WithBaseURL(srv.URL))

	resp, err := client.Report(context.Background(), invoiceRequest())
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, resp.OK())

	var decoded submission.SubmissionResponse
	require.NoError(t, resp.Decode(&decoded))
	require.NotNil(t, decoded.ValidationResults)
	require.Len(t, decoded.ValidationResults.ErrorMessages, 1)
	assert.Equal(t, "invoiceHash_QRCODE_INVALID", decoded.ValidationResults.ErrorMessages[0].Code)
}

func TestClient_NonJSONBody(t *testing.T) {
	_, srv := newGateway(t, http.StatusInternalServerError, "upstream exploded")
	client := submission.NewClient(creds, submission.WithBaseURL(srv.URL))

	resp, err := client.Clear(context.Background(), invoiceRequest())
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, `"upstream exploded"`, string(resp.Body))

	_, srv = newGateway(t, http.StatusAccepted, "")
	resp, err = submission.NewClient(creds, submission.WithBaseURL(srv.URL)).Report(context.Background(), invoiceRequest())
	require.NoError(t, err)
	assert.Empty(t, resp.Body)
	assert.Error(t, resp.Decode(&submission.SubmissionResponse{}))
}

func TestClient_InputErrors(t *testing.T) {
	g, srv := newGateway(t, http.StatusOK, `{}`)
	client := submission.NewClient(creds, submission.WithBaseURL(srv.URL))
	anonymous := submission.NewClient(submission.Credentials{}, submission.WithBaseURL(srv.URL))
	ctx := context.Background()

	missingHash := invoiceRequest()
	missingHash.Hash = ""
	missingDoc := invoiceRequest()
	missingDoc.Document = nil
	missingUUID := invoiceRequest()
	missingUUID.UUID = ""

	tests := []struct {
		name string
		call func() (*submission.Response, error)
	}{
		{"missing hash", func() (*submission.Response, error) { return client.Report(ctx, missingHash) }},
		{"missing document", func() (*submission.Response, error) { return client.Clear(ctx, missingDoc) }},
		{"missing uuid", func() (*submission.Response, error) { return client.CheckCompliance(ctx, missingUUID) }},
		{"unknown mode", func() (*submission.Response, error) { return client.Submit(ctx, "batch", invoiceRequest()) }},
		{"no credentials", func() (*submission.Response, error) { return anonymous.Report(ctx, invoiceRequest()) }},
		{"missing otp", func() (*submission.Response, error) { return anonymous.RequestComplianceCSID(ctx, "Q1NS", "") }},
		{"missing csr", func() (*submission.Response, error) { return anonymous.RequestComplianceCSID(ctx, "", "123456") }},
		{"missing request id", func() (*submission.Response, error) { return client.RequestProductionCSID(ctx, "") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := tt.call()
			assert.Nil(t, resp)
			var reqErr *submission.RequestError
			require.True(t, errors.As(err, &reqErr), "got %T: %v", err, err)
		})
	}

	_, err := anonymous.Report(ctx, invoiceRequest())
	assert.ErrorIs(t, err, submission.ErrMissingCredentials)
	assert.Empty(t, g.requests, "no request reaches the gateway")
}

func TestClient_ContextCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	client := submission.NewClient(creds, submission.WithBaseURL(srv.URL), submission.WithTimeout(50*time.Millisecond))
	_, err := client.Report(context.Background(), invoiceRequest())
	var reqErr *submission.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_Metrics(t *testing.T) {
	_, srv := newGateway(t, http.StatusOK, `{}`)
	reg := prometheus.NewRegistry()
	client := submission.NewClient(creds, submission.WithBaseURL(srv.URL), submission.WithMetrics(metrics.New(reg)))

	_, err := client.Report(context.Background(), invoiceRequest())
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "fatoora_submission_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEnvironmentAndMode(t *testing.T) {
	env, err := submission.ParseEnvironment(" Production ")
	require.NoError(t, err)
	assert.Equal(t, submission.ProductionBaseURL, env.BaseURL())
	assert.Equal(t, submission.ProductionBaseURL, submission.NewClient(creds, submission.WithEnvironment(env)).BaseURL())
	assert.Equal(t, submission.SandboxBaseURL, submission.NewClient(creds).BaseURL())

	_, err = submission.ParseEnvironment("staging")
	assert.Error(t, err)

	mode, err := submission.ParseMode("CLEARANCE")
	require.NoError(t, err)
	assert.Equal(t, submission.ModeClearance, mode)
	_, err = submission.ParseMode("batch")
	assert.Error(t, err)
}
