// Package signature signs invoice documents with an enveloped XAdES
// signature over secp256k1 and regenerates their QR payload.
package signature

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"time"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"

	"github.com/rezonia/fatoora/internal/tlv"
	"github.com/rezonia/fatoora/internal/ubl"
)

// Option configures a Signer
type Option func(*Signer)

// WithLogger sets the logger; the default discards everything
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Signer) {
		s.logger = logger
	}
}

// WithClock overrides the signing time source
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

// Signer signs documents. It holds no per-document state and is safe
// for concurrent use.
type Signer struct {
	curve  Curve
	logger zerolog.Logger
	now    func() time.Time
}

// NewSigner returns a Signer, or *MissingSigningMaterialError when this
// process cannot sign
func NewSigner(opts ...Option) (*Signer, error) {
	c, err := activeCurve()
	if err != nil {
		return nil, err
	}
	s := &Signer{
		curve:  c,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sign signs document with the PEM private key and certificate
func (s *Signer) Sign(document, certificatePEM, privateKeyPEM []byte) (*SignResult, error) {
	key, err := ParsePrivateKeyPEM(privateKeyPEM)
	if err != nil {
		return nil, err
	}
	return s.SignWithKey(document, certificatePEM, key)
}

// SignWithKey signs document with an already parsed key. Any previous
// signature is replaced; the input bytes are never modified.
func (s *Signer) SignWithKey(document, certificatePEM []byte, key *PrivateKey) (*SignResult, error) {
	if key == nil {
		return nil, ErrMalformedKey("private key is required", nil)
	}

	certDER, err := decodeCertificateDER(certificatePEM)
	if err != nil {
		return nil, err
	}
	cert, err := ParseCertificate(certDER)
	if err != nil {
		s.logger.Warn().Err(err).Msg("certificate structure unreadable, signing without issuer serial")
		cert = nil
	} else if cert.IsSecp256k1() && !bytes.Equal(cert.PublicKey, key.public) {
		s.logger.Warn().Str("subject", cert.Subject.String()).Msg("certificate key does not match the signing key")
	}

	doc, err := ubl.ParseDocument(document)
	if err != nil {
		return nil, ErrMalformedDocument(err)
	}
	root := doc.Root()
	ubl.RemoveChildren(root, "ext:UBLExtensions")
	ubl.RemoveChildren(root, "cac:Signature")

	hash, err := doc.Hash()
	if err != nil {
		return nil, ErrMalformedDocument(err)
	}

	signingTime := s.now().UTC().Truncate(time.Second)
	props := newSignedProperties(signedPropertiesInput{
		SigningTime:       signingTime,
		CertificateDigest: certificateDigest(certDER),
		Certificate:       cert,
	})
	propsCanonical, err := ubl.Canonicalize(props)
	if err != nil {
		return nil, NewSigningError(ErrCodeSignFailed, "signed_properties", "canonicalization failed", err)
	}

	info := newSignedInfo(hash, ubl.Digest(propsCanonical))
	infoCanonical, err := ubl.Canonicalize(info)
	if err != nil {
		return nil, NewSigningError(ErrCodeSignFailed, "signed_info", "canonicalization failed", err)
	}
	digest := sha256.Sum256(infoCanonical)
	sigDER, err := key.sign(s.curve, digest[:])
	if err != nil {
		return nil, err
	}
	signatureValue := base64.StdEncoding.EncodeToString(sigDER)

	extPrefix := ubl.EnsureNamespace(root, "ext", ubl.NamespaceEXT)
	cacPrefix := ubl.EnsureNamespace(root, "cac", ubl.NamespaceCAC)
	cbcPrefix := ubl.EnsureNamespace(root, "cbc", ubl.NamespaceCBC)
	ubl.EnsureNamespace(root, "ds", ubl.NamespaceDS)
	ubl.EnsureNamespace(root, "xades", ubl.NamespaceXAdES)

	block := newSignatureBlock(info, signatureValue, base64.StdEncoding.EncodeToString(certDER), props)
	root.InsertChildAt(0, newExtensions(extPrefix, block))
	insertBefore(root, newUBLSignature(cacPrefix, cbcPrefix), "cac:AccountingSupplierParty")

	payload := s.phase1Payload(doc).
		With(tlv.InvoiceHash, []byte(hash)).
		With(tlv.Signature, []byte(signatureValue)).
		With(tlv.PublicKey, key.PublicKeyBytes())
	qr, err := tlv.EncodeBase64(payload)
	if err != nil {
		return nil, NewSigningError(ErrCodeSignFailed, "qr", "QR payload could not be encoded", err)
	}
	ubl.RemoveChildrenFunc(root, ubl.IsQRReference)
	insertBefore(root, ubl.NewQRReference(qr), "cac:Signature")

	out, err := doc.Bytes()
	if err != nil {
		return nil, NewSigningError(ErrCodeSignFailed, "document", "serialization failed", err)
	}

	fully := fullyCompliant(payload)
	s.logger.Debug().
		Str("hash", hash).
		Time("signing_time", signingTime).
		Bool("fully_compliant", fully).
		Msg("document signed")

	return &SignResult{
		Document:       out,
		Hash:           hash,
		QR:             qr,
		Signature:      signatureValue,
		PublicKey:      key.PublicKeyBytes(),
		SigningTime:    signingTime,
		FullyCompliant: fully,
	}, nil
}

// phase1Payload returns tags 1-5 from the embedded QR, or rebuilt from
// the document fields when the embedded payload is missing or unusable
func (s *Signer) phase1Payload(doc *ubl.Document) tlv.Payload {
	if embedded := doc.EmbeddedQR(); embedded != "" {
		decoded, err := tlv.DecodeBase64(embedded)
		if err == nil && decoded.Has(tlv.RequiredTags...) {
			out := make(tlv.Payload, 0, len(tlv.RequiredTags))
			for _, tag := range tlv.RequiredTags {
				value, _ := decoded.Get(tag)
				out = append(out, tlv.Field{Tag: tag, Value: value})
			}
			return out
		}
		s.logger.Debug().Err(err).Msg("embedded QR unusable, rebuilding tags 1-5 from the document")
	}

	return tlv.Phase1(
		doc.Text("cac:AccountingSupplierParty/cac:Party/cac:PartyLegalEntity/cbc:RegistrationName"),
		doc.Text("cac:AccountingSupplierParty/cac:Party/cac:PartyTaxScheme/cbc:CompanyID"),
		doc.Text("cbc:IssueDate")+"T"+doc.Text("cbc:IssueTime")+"Z",
		doc.Text("cac:LegalMonetaryTotal/cbc:TaxInclusiveAmount"),
		doc.Text("cac:TaxTotal/cbc:TaxAmount"),
	)
}

// fullyCompliant reports whether all eight tags carry a value
func fullyCompliant(p tlv.Payload) bool {
	for tag := tlv.SellerName; tag <= tlv.PublicKey; tag++ {
		if v, ok := p.Get(tag); !ok || len(v) == 0 {
			return false
		}
	}
	return true
}

// insertBefore places el before the first child of parent named name,
// or last when there is none
func insertBefore(parent, el *etree.Element, name string) {
	if anchor := ubl.FindIn(parent, name); anchor != nil {
		parent.InsertChildAt(anchor.Index(), el)
		return
	}
	parent.AddChild(el)
}

// ComputeHash returns the base64 SHA-256 of the document's canonical form,
// the value signed into the document and carried in QR tag 6
func ComputeHash(document []byte) (string, error) {
	doc, err := ubl.ParseDocument(document)
	if err != nil {
		return "", ErrMalformedDocument(err)
	}
	hash, err := doc.Hash()
	if err != nil {
		return "", ErrMalformedDocument(err)
	}
	return hash, nil
}
