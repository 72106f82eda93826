package signature

import (
	"crypto/sha256"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// CSR subject defaults for onboarding a sandbox device
const (
	DefaultCSRCountry      = "SA"
	DefaultCSRSerialNumber = "1-TST|2-TST|3-ed22f1d8-e6a2-1118-9b58-d9a8195e2f28"
	DefaultCSRInvoiceType  = "1100"
	DefaultCSRLocation     = "Riyadh"
	DefaultCSRIndustry     = "IT"
)

var (
	oidCountry          = asn1.ObjectIdentifier{2, 5, 4, 6}
	oidOrganization     = asn1.ObjectIdentifier{2, 5, 4, 10}
	oidOrganizationUnit = asn1.ObjectIdentifier{2, 5, 4, 11}
	oidCommonName       = asn1.ObjectIdentifier{2, 5, 4, 3}
	oidSerialNumber     = asn1.ObjectIdentifier{2, 5, 4, 5}
	oidUserID           = asn1.ObjectIdentifier{0, 9, 2342, 19200300, 100, 1, 1}
	oidTitle            = asn1.ObjectIdentifier{2, 5, 4, 12}
	oidProvince         = asn1.ObjectIdentifier{2, 5, 4, 8}
	oidBusinessCategory = asn1.ObjectIdentifier{2, 5, 4, 15}
)

var (
	countryPattern     = regexp.MustCompile(`^[A-Z]{2}$`)
	invoiceTypePattern = regexp.MustCompile(`^[01]{4}$`)
)

// CSRSubject holds the subject fields of a device certificate request.
// InvoiceType is the four-flag code of document kinds the device issues
// (standard, simplified, future use, future use), e.g. "1100".
type CSRSubject struct {
	CommonName       string `json:"common_name"`
	Organization     string `json:"organization"`
	OrganizationUnit string `json:"organizational_unit"`
	Country          string `json:"country,omitempty"`
	SerialNumber     string `json:"serial_number,omitempty"`
	InvoiceType      string `json:"invoice_type,omitempty"`
	Location         string `json:"location,omitempty"`
	Industry         string `json:"industry,omitempty"`
}

// WithDefaults fills every empty optional field with its default
func (s CSRSubject) WithDefaults() CSRSubject {
	if s.Country == "" {
		s.Country = DefaultCSRCountry
	}
	if s.SerialNumber == "" {
		s.SerialNumber = DefaultCSRSerialNumber
	}
	if s.InvoiceType == "" {
		s.InvoiceType = DefaultCSRInvoiceType
	}
	if s.Location == "" {
		s.Location = DefaultCSRLocation
	}
	if s.Industry == "" {
		s.Industry = DefaultCSRIndustry
	}
	return s
}

// Validate checks the mandatory fields and the shape of the coded ones
func (s CSRSubject) Validate() error {
	required := []struct{ field, value string }{
		{"common_name", s.CommonName},
		{"organization", s.Organization},
		{"organizational_unit", s.OrganizationUnit},
	}
	for _, r := range required {
		if r.value == "" {
			return NewSigningError(ErrCodeMalformedCSRSubject, r.field, "is required", nil)
		}
	}
	if !countryPattern.MatchString(s.Country) {
		return NewSigningError(ErrCodeMalformedCSRSubject, "country", fmt.Sprintf("must be a two-letter code, got %q", s.Country), nil)
	}
	if !invoiceTypePattern.MatchString(s.InvoiceType) {
		return NewSigningError(ErrCodeMalformedCSRSubject, "invoice_type", fmt.Sprintf("must be four 0/1 flags, got %q", s.InvoiceType), nil)
	}
	return nil
}

// marshalName adds the subject as a Name with one attribute per RDN.
// The country is a PrintableString, everything else UTF8String.
func (s CSRSubject) marshalName(b *cryptobyte.Builder) {
	attrs := []struct {
		oid   asn1.ObjectIdentifier
		tag   cbasn1.Tag
		value string
	}{
		{oidCountry, cbasn1.PrintableString, s.Country},
		{oidOrganization, cbasn1.UTF8String, s.Organization},
		{oidOrganizationUnit, cbasn1.UTF8String, s.OrganizationUnit},
		{oidCommonName, cbasn1.UTF8String, s.CommonName},
		{oidSerialNumber, cbasn1.UTF8String, s.SerialNumber},
		{oidUserID, cbasn1.UTF8String, s.InvoiceType},
		{oidTitle, cbasn1.UTF8String, s.Location},
		{oidProvince, cbasn1.UTF8String, s.Industry},
		{oidBusinessCategory, cbasn1.UTF8String, s.Industry},
	}

	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		for _, attr := range attrs {
			b.AddASN1(cbasn1.SET, func(b *cryptobyte.Builder) {
				b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
					b.AddASN1ObjectIdentifier(attr.oid)
					b.AddASN1(attr.tag, func(b *cryptobyte.Builder) {
						b.AddBytes([]byte(attr.value))
					})
				})
			})
		}
	})
}

// GenerateCertificateRequest builds a PEM PKCS #10 request for key,
// signed ecdsa-with-SHA256. Empty optional subject fields take their defaults.
func GenerateCertificateRequest(subject CSRSubject, key *PrivateKey) ([]byte, error) {
	c, err := activeCurve()
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, ErrMalformedKey("private key is required", nil)
	}
	subject = subject.WithDefaults()
	if err := subject.Validate(); err != nil {
		return nil, err
	}

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(0)
		subject.marshalName(b)
		marshalSubjectPublicKeyInfo(b, key.public)
		b.AddASN1(tagContext0, func(b *cryptobyte.Builder) {})
	})
	info, err := b.Bytes()
	if err != nil {
		return nil, NewSigningError(ErrCodeSignFailed, "csr", "encoding request failed", err)
	}

	der, err := signStructure(c, key, info)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: PEMTypeCertRequest, Bytes: der}), nil
}

// CertificateRequest is a parsed PKCS #10 request
type CertificateRequest struct {
	Raw       []byte
	Subject   pkix.Name
	PublicKey []byte
}

// ParseCertificateRequest decodes a PEM request and checks its self-signature
func ParseCertificateRequest(data []byte) (*CertificateRequest, error) {
	c, err := activeCurve()
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != PEMTypeCertRequest {
		return nil, NewSigningError(ErrCodeMalformedCertificate, "csr", "no CERTIFICATE REQUEST block found", nil)
	}
	malformed := func(what string) error {
		return NewSigningError(ErrCodeMalformedCertificate, "csr", "malformed "+what, nil)
	}

	input := cryptobyte.String(block.Bytes)
	var request, infoElement, info, name, spki, algorithm cryptobyte.String
	var sig asn1.BitString
	if !input.ReadASN1(&request, cbasn1.SEQUENCE) ||
		!request.ReadASN1Element(&infoElement, cbasn1.SEQUENCE) ||
		!request.SkipASN1(cbasn1.SEQUENCE) ||
		!request.ReadASN1BitString(&sig) {
		return nil, malformed("request structure")
	}

	body := infoElement
	var version int64
	if !body.ReadASN1(&info, cbasn1.SEQUENCE) ||
		!info.ReadASN1Integer(&version) || version != 0 ||
		!info.ReadASN1Element(&name, cbasn1.SEQUENCE) ||
		!info.ReadASN1(&spki, cbasn1.SEQUENCE) {
		return nil, malformed("request info")
	}

	var public asn1.BitString
	if !spki.ReadASN1(&algorithm, cbasn1.SEQUENCE) || !spki.ReadASN1BitString(&public) {
		return nil, malformed("subject public key info")
	}

	subject, err := parseName(name)
	if err != nil {
		return nil, NewSigningError(ErrCodeMalformedCertificate, "csr", "malformed subject", err)
	}

	digest := sha256.Sum256(infoElement)
	if !c.Verify(public.RightAlign(), digest[:], sig.RightAlign()) {
		return nil, ErrInvalidSignature(errors.New("request self-signature does not verify"))
	}

	return &CertificateRequest{
		Raw:       block.Bytes,
		Subject:   subject,
		PublicKey: public.RightAlign(),
	}, nil
}
