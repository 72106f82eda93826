package server

import (
	"time"

	"github.com/rezonia/fatoora/internal/signature"
)

// InvoiceResponse is the response for the build endpoint
type InvoiceResponse struct {
	UUID     string `json:"uuid"`
	Hash     string `json:"hash"`
	QR       string `json:"qr"`
	Document string `json:"document"`
}

// QREncodeRequest carries the five Phase-1 QR fields
type QREncodeRequest struct {
	SellerName  string `json:"seller_name" binding:"required"`
	VATNumber   string `json:"vat_number" binding:"required"`
	Timestamp   string `json:"timestamp" binding:"required"`
	TotalAmount string `json:"total_amount" binding:"required"`
	VATAmount   string `json:"vat_amount" binding:"required"`
}

// QRDecodeRequest carries a base64 QR payload
type QRDecodeRequest struct {
	QR string `json:"qr" binding:"required"`
}

// QRResponse is the response for both QR endpoints
type QRResponse struct {
	QR     string            `json:"qr"`
	Fields map[string]string `json:"fields"`
	Signed bool              `json:"signed"`
}

// CSRRequest is the subject of the request, optionally with a
// self-signed certificate for sandbox use
type CSRRequest struct {
	signature.CSRSubject
	SelfSigned bool `json:"self_signed,omitempty"`
	ValidDays  int  `json:"valid_days,omitempty"`
}

// CSRResponse holds the generated key and request, all PEM encoded.
// CSRBase64 is the form the compliance endpoint expects.
type CSRResponse struct {
	PrivateKey  string `json:"private_key"`
	CSR         string `json:"csr"`
	CSRBase64   string `json:"csr_base64"`
	Certificate string `json:"certificate,omitempty"`
}

// SignRequest carries a document and its PEM signing material
type SignRequest struct {
	Document    string `json:"document" binding:"required"`
	Certificate string `json:"certificate" binding:"required"`
	PrivateKey  string `json:"private_key" binding:"required"`
}

// SignResponse is the response for the sign endpoint
type SignResponse struct {
	Document       string    `json:"document"`
	Hash           string    `json:"hash"`
	QR             string    `json:"qr"`
	Signature      string    `json:"signature"`
	PublicKey      []byte    `json:"public_key"`
	SigningTime    time.Time `json:"signing_time"`
	FullyCompliant bool      `json:"fully_compliant"`
}

// SubmitRequest carries a signed document for the gateway. Hash and UUID
// are read from the document when omitted; credentials default to the
// server's.
type SubmitRequest struct {
	Document    string `json:"document" binding:"required"`
	Hash        string `json:"hash,omitempty"`
	UUID        string `json:"uuid,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Certificate string `json:"certificate,omitempty"`
	Secret      string `json:"secret,omitempty"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
	Rule    string `json:"rule,omitempty"`
}
