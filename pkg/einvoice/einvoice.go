// Package einvoice provides a public API for building, validating, signing
// and submitting Saudi ZATCA e-invoices.
//
// Example usage:
//
//	doc, err := einvoice.BuildDocument(einvoice.InvoiceRequest{...})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report := einvoice.Validate(doc)
//	fmt.Println(report.Valid)
package einvoice

import (
	"github.com/rezonia/fatoora/internal/model"
	"github.com/rezonia/fatoora/internal/signature"
	"github.com/rezonia/fatoora/internal/submission"
	"github.com/rezonia/fatoora/internal/tlv"
	"github.com/rezonia/fatoora/internal/validation"
)

// Re-export core types for public API
type (
	Invoice                 = model.Invoice
	InvoiceRequest          = model.InvoiceRequest
	PartyRequest            = model.PartyRequest
	LineItemRequest         = model.LineItemRequest
	BillingReferenceRequest = model.BillingReferenceRequest
	DocumentType            = model.DocumentType

	Payload = tlv.Payload
	Tag     = tlv.Tag

	ValidationResult = validation.Result
	Finding          = validation.Finding

	PrivateKey         = signature.PrivateKey
	CSRSubject         = signature.CSRSubject
	SignResult         = signature.SignResult
	VerificationResult = signature.VerificationResult

	SubmissionClient  = submission.Client
	SubmissionRequest = submission.InvoiceRequest
	Credentials       = submission.Credentials
)

// Re-export document types
const (
	StandardInvoice      = model.StandardInvoice
	SimplifiedInvoice    = model.SimplifiedInvoice
	StandardCreditNote   = model.StandardCreditNote
	SimplifiedCreditNote = model.SimplifiedCreditNote
	StandardDebitNote    = model.StandardDebitNote
	SimplifiedDebitNote  = model.SimplifiedDebitNote
)

// Re-export QR tags
const (
	TagSellerName  = tlv.SellerName
	TagVATNumber   = tlv.VATNumber
	TagTimestamp   = tlv.Timestamp
	TagTotalAmount = tlv.TotalAmount
	TagVATAmount   = tlv.VATAmount
	TagInvoiceHash = tlv.InvoiceHash
	TagSignature   = tlv.Signature
	TagPublicKey   = tlv.PublicKey
)

// Re-export error types
type (
	InvalidInvoiceError         = model.InvalidInvoiceError
	ParseError                  = model.ParseError
	PayloadTooLargeError        = tlv.PayloadTooLargeError
	MalformedPayloadError       = tlv.MalformedPayloadError
	SigningError                = signature.SigningError
	MissingSigningMaterialError = signature.MissingSigningMaterialError
	SubmissionError             = submission.RequestError
)

// ErrMissingCredentials is returned by submission calls without a CSID pair
var ErrMissingCredentials = submission.ErrMissingCredentials
