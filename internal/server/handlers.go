package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/rezonia/fatoora/internal/metrics"
	"github.com/rezonia/fatoora/internal/model"
	"github.com/rezonia/fatoora/internal/signature"
	"github.com/rezonia/fatoora/internal/submission"
	"github.com/rezonia/fatoora/internal/tlv"
	"github.com/rezonia/fatoora/internal/ubl"
	"github.com/rezonia/fatoora/internal/validation"
)

// DefaultCertificateDays is the validity of a self-signed certificate
// when the request gives none
const DefaultCertificateDays = 365

func (s *Server) handleBuild(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	var req model.InvoiceRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}

	inv, err := model.NewInvoice(req, model.WithClock(s.config.Clock))
	if err != nil {
		s.fail(c, "build", err)
		return
	}
	doc, err := ubl.BuildDocument(inv)
	if err != nil {
		s.fail(c, "build", err)
		return
	}
	data, err := doc.Bytes()
	if err != nil {
		s.fail(c, "build", err)
		return
	}
	hash, err := doc.Hash()
	if err != nil {
		s.fail(c, "build", err)
		return
	}
	s.metrics.IncrementOperation("build", metrics.OutcomeOK)

	if c.Query("format") == "xml" {
		c.Header("X-Invoice-UUID", inv.UUID)
		c.Header("X-Invoice-Hash", hash)
		c.Data(http.StatusOK, "application/xml; charset=utf-8", data)
		return
	}
	c.JSON(http.StatusOK, InvoiceResponse{
		UUID:     inv.UUID,
		Hash:     hash,
		QR:       doc.EmbeddedQR(),
		Document: string(data),
	})
}

func (s *Server) handleValidate(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	result := validation.Validate(body)
	for _, f := range result.Errors {
		s.metrics.IncrementFinding(f.Rule, string(validation.SeverityError))
	}
	for _, f := range result.Warnings {
		s.metrics.IncrementFinding(f.Rule, string(validation.SeverityWarning))
	}
	s.metrics.IncrementOperation("validate", outcome(result.Valid))

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleQREncode(c *gin.Context) {
	var req QREncodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	if problems := model.ValidateVATNumber(req.VATNumber); len(problems) > 0 {
		s.metrics.IncrementOperation("qr_encode", metrics.OutcomeInvalid)
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "invalid VAT number",
			Details: strings.Join(problems, "; "),
			Field:   "vat_number",
		})
		return
	}

	payload := tlv.Phase1(req.SellerName, req.VATNumber, req.Timestamp, req.TotalAmount, req.VATAmount)
	qr, err := tlv.EncodeBase64(payload)
	if err != nil {
		s.fail(c, "qr_encode", err)
		return
	}
	s.metrics.IncrementOperation("qr_encode", metrics.OutcomeOK)
	c.JSON(http.StatusOK, QRResponse{QR: qr, Fields: payload.Named()})
}

func (s *Server) handleQRDecode(c *gin.Context) {
	var req QRDecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}

	payload, err := tlv.DecodeBase64(req.QR)
	if err != nil {
		s.fail(c, "qr_decode", err)
		return
	}
	s.metrics.IncrementOperation("qr_decode", metrics.OutcomeOK)
	c.JSON(http.StatusOK, QRResponse{QR: req.QR, Fields: payload.Named(), Signed: payload.Signed()})
}

func (s *Server) handleCSR(c *gin.Context) {
	if s.signingErr != nil {
		s.fail(c, "csr", s.signingErr)
		return
	}
	var req CSRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}

	key, err := signature.GenerateKeyPair()
	if err != nil {
		s.fail(c, "csr", err)
		return
	}
	csr, err := signature.GenerateCertificateRequest(req.CSRSubject, key)
	if err != nil {
		s.fail(c, "csr", err)
		return
	}
	keyPEM, err := key.MarshalPEM()
	if err != nil {
		s.fail(c, "csr", err)
		return
	}

	resp := CSRResponse{
		PrivateKey: string(keyPEM),
		CSR:        string(csr),
		CSRBase64:  base64.StdEncoding.EncodeToString(csr),
	}
	if req.SelfSigned {
		days := req.ValidDays
		if days <= 0 {
			days = DefaultCertificateDays
		}
		now := s.config.Clock()
		cert, err := signature.CreateSelfSignedCertificate(req.CSRSubject, key, now, now.AddDate(0, 0, days))
		if err != nil {
			s.fail(c, "csr", err)
			return
		}
		resp.Certificate = string(cert)
	}
	s.metrics.IncrementOperation("csr", metrics.OutcomeOK)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSign(c *gin.Context) {
	if s.signingErr != nil {
		s.fail(c, "sign", s.signingErr)
		return
	}
	var req SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}

	result, err := s.signer.Sign([]byte(req.Document), []byte(req.Certificate), []byte(req.PrivateKey))
	if err != nil {
		s.fail(c, "sign", err)
		return
	}
	s.metrics.IncrementOperation("sign", metrics.OutcomeOK)
	c.JSON(http.StatusOK, SignResponse{
		Document:       string(result.Document),
		Hash:           result.Hash,
		QR:             result.QR,
		Signature:      result.Signature,
		PublicKey:      result.PublicKey,
		SigningTime:    result.SigningTime,
		FullyCompliant: result.FullyCompliant,
	})
}

func (s *Server) handleVerify(c *gin.Context) {
	if s.signingErr != nil {
		s.fail(c, "verify", s.signingErr)
		return
	}
	body, ok := readBody(c)
	if !ok {
		return
	}

	result, err := s.verifier.Verify(body)
	if err != nil {
		s.fail(c, "verify", err)
		return
	}
	s.metrics.IncrementOperation("verify", outcome(result.Valid))

	status := http.StatusOK
	if !result.Valid {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}

func (s *Server) handleSubmit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}

	mode := submission.ModeReporting
	if req.Mode != "" {
		parsed, err := submission.ParseMode(req.Mode)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid mode", Details: err.Error(), Field: "mode"})
			return
		}
		mode = parsed
	}

	invoice := submission.InvoiceRequest{
		Document: []byte(req.Document),
		Hash:     req.Hash,
		UUID:     req.UUID,
	}
	if invoice.Hash == "" || invoice.UUID == "" {
		doc, err := ubl.ParseDocument(invoice.Document)
		if err != nil {
			s.fail(c, "submit", signature.ErrMalformedDocument(err))
			return
		}
		if invoice.UUID == "" {
			invoice.UUID = doc.Text("cbc:UUID")
		}
		if invoice.Hash == "" {
			if invoice.Hash, err = doc.Hash(); err != nil {
				s.fail(c, "submit", signature.ErrMalformedDocument(err))
				return
			}
		}
	}
	if err := invoice.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid submission", Details: err.Error()})
		return
	}

	client := s.gateway
	if req.Certificate != "" || req.Secret != "" {
		client = submission.NewClient(submission.Credentials{
			Certificate: req.Certificate,
			Secret:      req.Secret,
		}, s.gatewayOpts...)
	}

	resp, err := client.Submit(c.Request.Context(), mode, invoice)
	if err != nil {
		s.fail(c, "submit", err)
		return
	}
	s.metrics.IncrementOperation("submit", outcome(resp.OK()))
	c.JSON(http.StatusOK, resp)
}

// fail maps err to a status code and error response
func (s *Server) fail(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	resp := ErrorResponse{Error: op + " failed", Details: err.Error()}

	var (
		missing   *signature.MissingSigningMaterialError
		signing   *signature.SigningError
		invalid   *model.InvalidInvoiceError
		parse     *model.ParseError
		malformed *tlv.MalformedPayloadError
		tooLarge  *tlv.PayloadTooLargeError
		request   *submission.RequestError
	)
	switch {
	case errors.As(err, &missing):
		status = http.StatusServiceUnavailable
		resp.Code = "SIGNING_UNAVAILABLE"
	case errors.As(err, &invalid):
		status = http.StatusUnprocessableEntity
		resp.Field = invalid.Field
		resp.Rule = invalid.Rule
	case errors.As(err, &signing):
		status = http.StatusBadRequest
		if signing.Code == signature.ErrCodeSignFailed {
			status = http.StatusInternalServerError
		}
		resp.Code = signing.Code
		resp.Field = signing.Field
	case errors.As(err, &parse), errors.As(err, &malformed), errors.As(err, &tooLarge):
		status = http.StatusBadRequest
	case errors.Is(err, submission.ErrMissingCredentials):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.As(err, &request):
		status = http.StatusBadGateway
	}

	result := metrics.OutcomeError
	if status < http.StatusInternalServerError {
		result = metrics.OutcomeInvalid
	}
	s.metrics.IncrementOperation(op, result)

	_ = c.Error(err)
	c.JSON(status, resp)
}

func readBody(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read request body"})
		return nil, false
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty request body"})
		return nil, false
	}
	return body, true
}

func outcome(ok bool) string {
	if ok {
		return metrics.OutcomeOK
	}
	return metrics.OutcomeInvalid
}
