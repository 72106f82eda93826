package signature

import (
	"time"
)

// SignResult is the outcome of signing one document
type SignResult struct {
	// Document is the signed document
	Document []byte

	// Hash is the base64 SHA-256 of the canonical document (QR tag 6)
	Hash string

	// QR is the regenerated base64 TLV payload with tags 1-8
	QR string

	// Signature is the base64 DER ECDSA SignatureValue (QR tag 7)
	Signature string

	// PublicKey is the uncompressed signing key (QR tag 8)
	PublicKey []byte

	SigningTime time.Time

	// FullyCompliant is true when the QR carries all eight tags
	FullyCompliant bool
}

// VerificationResult contains the complete signature verification outcome
type VerificationResult struct {
	// Overall validity - true only if all checks pass
	Valid bool `json:"valid"`

	// Individual check results
	SignatureFound         bool `json:"signature_found"`
	DocumentDigestValid    bool `json:"document_digest_valid"`
	PropertiesDigestValid  bool `json:"properties_digest_valid"`
	CertificateDigestValid bool `json:"certificate_digest_valid"`
	SignatureValid         bool `json:"signature_valid"`
	QRConsistent           bool `json:"qr_consistent"`

	// Hash recomputed from the document
	Hash string `json:"hash,omitempty"`

	// Signer information, when the certificate parses
	Signer *SignerInfo `json:"signer,omitempty"`

	// Signing timestamp
	SignedAt *time.Time `json:"signed_at,omitempty"`

	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`
}

// SignerInfo contains certificate subject information
type SignerInfo struct {
	// Common name (CN)
	Name string `json:"name"`

	// Organization (O)
	Organization string `json:"organization,omitempty"`

	SerialNumber string `json:"serial_number"`

	// Issuer common name
	Issuer string `json:"issuer"`

	ValidFrom time.Time `json:"valid_from"`
	ValidTo   time.Time `json:"valid_to"`
}

// NewVerificationResult creates a new empty result
func NewVerificationResult() *VerificationResult {
	return &VerificationResult{
		Warnings: make([]string, 0),
		Errors:   make([]string, 0),
	}
}

// AddWarning adds a warning message to the result
func (r *VerificationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// AddError adds an error message and sets Valid to false
func (r *VerificationResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Valid = false
}

// SetSigner populates SignerInfo from a parsed certificate
func (r *VerificationResult) SetSigner(cert *Certificate) {
	if cert == nil {
		return
	}

	signer := &SignerInfo{
		Name:         cert.Subject.CommonName,
		SerialNumber: cert.SerialNumber.String(),
		ValidFrom:    cert.NotBefore,
		ValidTo:      cert.NotAfter,
	}
	if len(cert.Subject.Organization) > 0 {
		signer.Organization = cert.Subject.Organization[0]
	}

	if cert.Issuer.CommonName != "" {
		signer.Issuer = cert.Issuer.CommonName
	} else if len(cert.Issuer.Organization) > 0 {
		signer.Issuer = cert.Issuer.Organization[0]
	}

	r.Signer = signer
}

// ComputeValidity sets the Valid field based on individual check results
func (r *VerificationResult) ComputeValidity() {
	r.Valid = r.SignatureFound &&
		r.DocumentDigestValid &&
		r.PropertiesDigestValid &&
		r.CertificateDigestValid &&
		r.SignatureValid &&
		r.QRConsistent &&
		len(r.Errors) == 0
}
