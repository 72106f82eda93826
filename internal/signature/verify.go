package signature

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"

	"github.com/rezonia/fatoora/internal/tlv"
	"github.com/rezonia/fatoora/internal/ubl"
)

// Paths inside ds:Signature
const (
	pathSignedInfo       = "ds:SignedInfo"
	pathSignatureValue   = "ds:SignatureValue"
	pathCertificate      = "ds:KeyInfo/ds:X509Data/ds:X509Certificate"
	pathSignedProperties = "ds:Object/xades:QualifyingProperties/xades:SignedProperties"
	pathSigningTime      = "xades:SignedSignatureProperties/xades:SigningTime"
	pathCertDigest       = "xades:SignedSignatureProperties/xades:SigningCertificate/xades:Cert/xades:CertDigest/ds:DigestValue"
)

// Verifier checks signed documents
type Verifier struct {
	curve  Curve
	logger zerolog.Logger
}

// NewVerifier returns a Verifier, or *MissingSigningMaterialError when
// this process has no curve provider. Only WithLogger applies.
func NewVerifier(opts ...Option) (*Verifier, error) {
	c, err := activeCurve()
	if err != nil {
		return nil, err
	}
	s := &Signer{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return &Verifier{curve: c, logger: s.logger}, nil
}

// Verify checks the signature embedded in document: the document digest,
// the signed properties digest, the certificate digest, the ECDSA
// SignatureValue and the agreement of QR tags 6-8 with the signature.
// Findings are reported in the result; the error is non-nil only when the
// document cannot be read or carries no signature.
func Verify(document []byte) (*VerificationResult, error) {
	v, err := NewVerifier()
	if err != nil {
		return nil, err
	}
	return v.Verify(document)
}

// Verify checks the signature embedded in document
func (v *Verifier) Verify(document []byte) (*VerificationResult, error) {
	result := NewVerificationResult()

	doc, err := ubl.ParseDocument(document)
	if err != nil {
		result.AddError(err.Error())
		return result, ErrMalformedDocument(err)
	}

	sig := findSignatureElement(doc.Root())
	if sig == nil {
		result.AddError("no ds:Signature element found in document")
		return result, ErrNoSignature()
	}
	result.SignatureFound = true

	hash, err := doc.Hash()
	if err != nil {
		result.AddError(fmt.Sprintf("hash: %v", err))
		return result, nil
	}
	result.Hash = hash

	info := ubl.FindIn(sig, pathSignedInfo)
	if info == nil {
		result.AddError("ds:SignedInfo is missing")
		return result, nil
	}
	docDigest, propsDigest := referenceDigests(info)

	result.DocumentDigestValid = docDigest == hash
	if !result.DocumentDigestValid {
		result.AddError(ErrDigestMismatch("document", fmt.Sprintf("signed %q, computed %q", docDigest, hash)).Error())
	}

	props := ubl.FindIn(sig, pathSignedProperties)
	v.checkSignedProperties(result, props, propsDigest)

	certDER, cert := v.readCertificate(result, sig)
	if props != nil && certDER != nil {
		result.CertificateDigestValid = ubl.TextIn(props, pathCertDigest) == certificateDigest(certDER)
		if !result.CertificateDigestValid {
			result.AddError(ErrDigestMismatch("certificate", "certificate digest does not match the embedded certificate").Error())
		}
	}

	signatureValue := ubl.TextIn(sig, pathSignatureValue)
	payload := v.readQR(result, doc)
	v.checkSignatureValue(result, info, signatureValue, cert, payload)
	v.checkQR(result, payload, hash, signatureValue)

	result.ComputeValidity()
	v.logger.Debug().Bool("valid", result.Valid).Strs("errors", result.Errors).Msg("signature verified")
	return result, nil
}

func (v *Verifier) checkSignedProperties(result *VerificationResult, props *etree.Element, signedDigest string) {
	if props == nil {
		result.AddError("xades:SignedProperties is missing")
		return
	}
	canonical, err := ubl.Canonicalize(props)
	if err != nil {
		result.AddError(fmt.Sprintf("signed properties: %v", err))
		return
	}
	result.PropertiesDigestValid = ubl.Digest(canonical) == signedDigest
	if !result.PropertiesDigestValid {
		result.AddError(ErrDigestMismatch("signed_properties", "signed properties digest mismatch").Error())
	}

	if signingTime := extractSigningTime(props); signingTime != nil {
		result.SignedAt = signingTime
	} else {
		result.AddWarning("signing time missing or unparseable")
	}
}

func (v *Verifier) readCertificate(result *VerificationResult, sig *etree.Element) ([]byte, *Certificate) {
	text := ubl.TextIn(sig, pathCertificate)
	if text == "" {
		result.AddError("ds:X509Certificate is missing")
		return nil, nil
	}
	der, err := decodeBareBase64(text)
	if err != nil {
		result.AddError(fmt.Sprintf("failed to decode certificate: %v", err))
		return nil, nil
	}
	cert, err := ParseCertificate(der)
	if err != nil {
		result.AddWarning(fmt.Sprintf("certificate structure unreadable: %v", err))
		return der, nil
	}
	result.SetSigner(cert)
	return der, cert
}

func (v *Verifier) readQR(result *VerificationResult, doc *ubl.Document) tlv.Payload {
	embedded := doc.EmbeddedQR()
	if embedded == "" {
		result.AddError("QR payload is missing")
		return nil
	}
	payload, err := tlv.DecodeBase64(embedded)
	if err != nil {
		result.AddError(fmt.Sprintf("QR payload: %v", err))
		return nil
	}
	return payload
}

// checkSignatureValue verifies SignatureValue over the canonical SignedInfo
// with the certificate key, or with QR tag 8 when the certificate key is
// not a secp256k1 point
func (v *Verifier) checkSignatureValue(result *VerificationResult, info *etree.Element, signatureValue string, cert *Certificate, payload tlv.Payload) {
	sigDER, err := base64.StdEncoding.DecodeString(signatureValue)
	if signatureValue == "" || err != nil {
		result.AddError("ds:SignatureValue is missing or not base64")
		return
	}

	var publicKey []byte
	switch {
	case cert != nil && cert.IsSecp256k1():
		publicKey = cert.PublicKey
	case payload.Has(tlv.PublicKey):
		publicKey, _ = payload.Get(tlv.PublicKey)
		result.AddWarning("certificate key is not secp256k1, verified against QR public key")
	default:
		result.AddError("no secp256k1 public key available to verify the signature")
		return
	}

	canonical, err := ubl.Canonicalize(info)
	if err != nil {
		result.AddError(fmt.Sprintf("signed info: %v", err))
		return
	}
	digest := sha256.Sum256(canonical)
	result.SignatureValid = v.curve.Verify(publicKey, digest[:], sigDER)
	if !result.SignatureValid {
		result.AddError(ErrInvalidSignature(nil).Error())
	}
	if payload.Has(tlv.PublicKey) {
		if qrKey, _ := payload.Get(tlv.PublicKey); !bytes.Equal(qrKey, publicKey) {
			result.AddError("QR public key differs from the signing key")
		}
	}
}

func (v *Verifier) checkQR(result *VerificationResult, payload tlv.Payload, hash, signatureValue string) {
	if payload == nil {
		return
	}
	if !payload.Signed() {
		result.AddError("QR payload lacks signature tags 6-8")
		return
	}
	result.QRConsistent = payload.String(tlv.InvoiceHash) == hash &&
		payload.String(tlv.Signature) == signatureValue
	if !result.QRConsistent {
		result.AddError(NewSigningError(ErrCodeQRMismatch, "qr", "QR hash or signature differs from the signature block", nil).Error())
	}
}

// referenceDigests returns the digests of the document reference (URI "")
// and of the signed properties reference
func referenceDigests(info *etree.Element) (document, properties string) {
	for _, ref := range ubl.FindAllIn(info, "ds:Reference") {
		digest := ubl.TextIn(ref, "ds:DigestValue")
		switch ref.SelectAttrValue("URI", "-") {
		case "":
			document = digest
		case signedPropertiesRef:
			properties = digest
		}
	}
	return document, properties
}

// findSignatureElement returns ds:Signature from the UBL extension, or
// anywhere in the document as a fallback
func findSignatureElement(root *etree.Element) *etree.Element {
	if sig := ubl.FindIn(root, "ext:UBLExtensions/ext:UBLExtension/ext:ExtensionContent/ds:Signature"); sig != nil {
		return sig
	}
	return findElementRecursive(root, "ds:Signature")
}

// findElementRecursive searches depth-first for an element by qualified name
func findElementRecursive(elem *etree.Element, name string) *etree.Element {
	if elem == nil {
		return nil
	}
	if ubl.IsElement(elem, name) {
		return elem
	}
	for _, child := range elem.ChildElements() {
		if found := findElementRecursive(child, name); found != nil {
			return found
		}
	}
	return nil
}

// extractSigningTime attempts to extract signing time from the signed properties
func extractSigningTime(props *etree.Element) *time.Time {
	text := strings.TrimSpace(ubl.TextIn(props, pathSigningTime))
	for _, layout := range []string{SigningTimeLayout, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, text); err == nil {
			return &t
		}
	}
	return nil
}
