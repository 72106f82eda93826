package signature

import "fmt"

// Error codes for signing and verification
const (
	ErrCodeMalformedKey         = "MALFORMED_KEY"
	ErrCodeMalformedCertificate = "MALFORMED_CERTIFICATE"
	ErrCodeMalformedDocument    = "MALFORMED_DOCUMENT"
	ErrCodeMalformedCSRSubject  = "MALFORMED_CSR_SUBJECT"
	ErrCodeSignFailed           = "SIGN_FAILED"
	ErrCodeNoSignature          = "NO_SIGNATURE"
	ErrCodeDigestMismatch       = "DIGEST_MISMATCH"
	ErrCodeInvalidSignature     = "INVALID_SIGNATURE"
	ErrCodeQRMismatch           = "QR_MISMATCH"
)

// SigningError is a cryptographic failure: malformed key, certificate or
// document, or a signature that could not be produced or verified.
type SigningError struct {
	Code    string
	Field   string
	Message string
	Cause   error
}

func (e *SigningError) Error() string {
	if e.Field != "" && e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Code, e.Field, e.Message, e.Cause)
	}
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *SigningError) Unwrap() error {
	return e.Cause
}

// NewSigningError creates a new signing error
func NewSigningError(code, field, message string, cause error) *SigningError {
	return &SigningError{
		Code:    code,
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

// MissingSigningMaterialError reports that this build or runtime cannot sign.
// Callers can still build, validate and encode QR payloads.
type MissingSigningMaterialError struct {
	Reason string
	Cause  error
}

func (e *MissingSigningMaterialError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("signing unavailable: %s (%v)", e.Reason, e.Cause)
	}
	return "signing unavailable: " + e.Reason
}

func (e *MissingSigningMaterialError) Unwrap() error {
	return e.Cause
}

// NewMissingSigningMaterialError creates a capability error
func NewMissingSigningMaterialError(reason string, cause error) *MissingSigningMaterialError {
	return &MissingSigningMaterialError{Reason: reason, Cause: cause}
}

// ErrMalformedKey returns error when the private key cannot be decoded
func ErrMalformedKey(message string, cause error) *SigningError {
	return NewSigningError(ErrCodeMalformedKey, "private_key", message, cause)
}

// ErrMalformedCertificate returns error when the certificate cannot be decoded
func ErrMalformedCertificate(message string, cause error) *SigningError {
	return NewSigningError(ErrCodeMalformedCertificate, "certificate", message, cause)
}

// ErrMalformedDocument returns error when the document is not well-formed XML
func ErrMalformedDocument(cause error) *SigningError {
	return NewSigningError(ErrCodeMalformedDocument, "document", "document is not a parseable invoice", cause)
}

// ErrNoSignature returns error when no signature found in document
func ErrNoSignature() *SigningError {
	return NewSigningError(ErrCodeNoSignature, "", "no signature found in document", nil)
}

// ErrDigestMismatch returns error when a signed digest differs from the recomputed one
func ErrDigestMismatch(field, message string) *SigningError {
	return NewSigningError(ErrCodeDigestMismatch, field, message, nil)
}

// ErrInvalidSignature returns error when signature validation fails
func ErrInvalidSignature(cause error) *SigningError {
	return NewSigningError(ErrCodeInvalidSignature, "signature", "signature validation failed", cause)
}
