package signature

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Certificate holds the parts of an X.509 certificate the signature block
// refers to. Parsing is done field by field so secp256k1 certificates,
// which crypto/x509 rejects, are readable.
type Certificate struct {
	Raw          []byte
	SerialNumber *big.Int
	Issuer       pkix.Name
	Subject      pkix.Name
	NotBefore    time.Time
	NotAfter     time.Time

	// PublicKey is the subjectPublicKey bit string, an uncompressed point for EC keys
	PublicKey []byte
	// Curve is the named curve of an EC key, nil for other key types
	Curve asn1.ObjectIdentifier
}

// Base64 returns the DER certificate as single-line base64, the form
// embedded in ds:X509Certificate
func (c *Certificate) Base64() string {
	return base64.StdEncoding.EncodeToString(c.Raw)
}

// Digest returns the base64 SHA-256 digest of the DER certificate
func (c *Certificate) Digest() string {
	return certificateDigest(c.Raw)
}

// IsSecp256k1 reports whether the certified key is on secp256k1
func (c *Certificate) IsSecp256k1() bool {
	return c.Curve.Equal(oidNamedCurveSecp256k1)
}

func certificateDigest(der []byte) string {
	sum := sha256.Sum256(der)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// ParseCertificatePEM decodes and parses a certificate given as PEM,
// bare base64 DER, or the base64-of-base64 form returned by the
// compliance API
func ParseCertificatePEM(data []byte) (*Certificate, error) {
	der, err := decodeCertificateDER(data)
	if err != nil {
		return nil, err
	}
	return ParseCertificate(der)
}

func decodeCertificateDER(data []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrMalformedCertificate("certificate is empty", nil)
	}

	if block, _ := pem.Decode(trimmed); block != nil {
		if block.Type != PEMTypeCertificate {
			return nil, ErrMalformedCertificate(fmt.Sprintf("unexpected PEM block %q", block.Type), nil)
		}
		return block.Bytes, nil
	}

	der, err := decodeBareBase64(string(trimmed))
	if err != nil {
		return nil, ErrMalformedCertificate("neither PEM nor base64", err)
	}
	// binarySecurityToken values are the base64 text of the base64 certificate
	if bytes.HasPrefix(der, []byte("MII")) {
		if inner, err := decodeBareBase64(string(der)); err == nil {
			der = inner
		}
	}
	return der, nil
}

// ParseCertificate parses a DER certificate
func ParseCertificate(der []byte) (*Certificate, error) {
	malformed := func(what string) error {
		return ErrMalformedCertificate("malformed "+what, nil)
	}

	input := cryptobyte.String(der)
	var cert, tbs cryptobyte.String
	if !input.ReadASN1(&cert, cbasn1.SEQUENCE) || !input.Empty() || !cert.ReadASN1(&tbs, cbasn1.SEQUENCE) {
		return nil, malformed("certificate structure")
	}
	if !tbs.SkipOptionalASN1(tagContext0) {
		return nil, malformed("version")
	}

	out := &Certificate{Raw: append([]byte(nil), der...), SerialNumber: new(big.Int)}
	if !tbs.ReadASN1Integer(out.SerialNumber) {
		return nil, malformed("serial number")
	}
	if !tbs.SkipASN1(cbasn1.SEQUENCE) {
		return nil, malformed("signature algorithm")
	}

	var issuer, subject, validity cryptobyte.String
	if !tbs.ReadASN1Element(&issuer, cbasn1.SEQUENCE) {
		return nil, malformed("issuer")
	}
	if !tbs.ReadASN1(&validity, cbasn1.SEQUENCE) {
		return nil, malformed("validity")
	}
	var err error
	if out.NotBefore, err = readTime(&validity); err != nil {
		return nil, ErrMalformedCertificate("malformed notBefore", err)
	}
	if out.NotAfter, err = readTime(&validity); err != nil {
		return nil, ErrMalformedCertificate("malformed notAfter", err)
	}
	if !tbs.ReadASN1Element(&subject, cbasn1.SEQUENCE) {
		return nil, malformed("subject")
	}

	var spki, algorithm cryptobyte.String
	var keyAlgorithm asn1.ObjectIdentifier
	var publicKey asn1.BitString
	if !tbs.ReadASN1(&spki, cbasn1.SEQUENCE) ||
		!spki.ReadASN1(&algorithm, cbasn1.SEQUENCE) ||
		!algorithm.ReadASN1ObjectIdentifier(&keyAlgorithm) ||
		!spki.ReadASN1BitString(&publicKey) {
		return nil, malformed("subject public key info")
	}
	out.PublicKey = publicKey.RightAlign()
	if keyAlgorithm.Equal(oidPublicKeyECDSA) && algorithm.PeekASN1Tag(cbasn1.OBJECT_IDENTIFIER) {
		var curve asn1.ObjectIdentifier
		if !algorithm.ReadASN1ObjectIdentifier(&curve) {
			return nil, malformed("named curve")
		}
		out.Curve = curve
	}

	if out.Issuer, err = parseName(issuer); err != nil {
		return nil, ErrMalformedCertificate("malformed issuer", err)
	}
	if out.Subject, err = parseName(subject); err != nil {
		return nil, ErrMalformedCertificate("malformed subject", err)
	}
	return out, nil
}

func readTime(s *cryptobyte.String) (time.Time, error) {
	var t time.Time
	switch {
	case s.PeekASN1Tag(cbasn1.UTCTime):
		if !s.ReadASN1UTCTime(&t) {
			return t, errors.New("invalid UTCTime")
		}
	case s.PeekASN1Tag(cbasn1.GeneralizedTime):
		if !s.ReadASN1GeneralizedTime(&t) {
			return t, errors.New("invalid GeneralizedTime")
		}
	default:
		return t, errors.New("unsupported time type")
	}
	return t, nil
}

func parseName(raw []byte) (pkix.Name, error) {
	var rdns pkix.RDNSequence
	rest, err := asn1.Unmarshal(raw, &rdns)
	if err != nil {
		return pkix.Name{}, err
	}
	if len(rest) > 0 {
		return pkix.Name{}, errors.New("trailing data after name")
	}
	var name pkix.Name
	name.FillFromRDNSequence(&rdns)
	return name, nil
}

// CreateSelfSignedCertificate issues a certificate for key signed by key
// itself. Useful against the sandbox and in tests; production
// certificates come from the compliance API.
func CreateSelfSignedCertificate(subject CSRSubject, key *PrivateKey, notBefore, notAfter time.Time) ([]byte, error) {
	c, err := activeCurve()
	if err != nil {
		return nil, err
	}
	subject = subject.WithDefaults()
	if err := subject.Validate(); err != nil {
		return nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
	if err != nil {
		return nil, NewSigningError(ErrCodeSignFailed, "certificate", "serial number generation failed", err)
	}
	serial.Add(serial, big.NewInt(1))

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(tagContext0, func(b *cryptobyte.Builder) {
			b.AddASN1Int64(2)
		})
		b.AddASN1BigInt(serial)
		addSignatureAlgorithm(b)
		subject.marshalName(b)
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1UTCTime(notBefore.UTC())
			b.AddASN1UTCTime(notAfter.UTC())
		})
		subject.marshalName(b)
		marshalSubjectPublicKeyInfo(b, key.public)
	})
	tbs, err := b.Bytes()
	if err != nil {
		return nil, NewSigningError(ErrCodeSignFailed, "certificate", "encoding certificate failed", err)
	}

	der, err := signStructure(c, key, tbs)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: PEMTypeCertificate, Bytes: der}), nil
}

// signStructure wraps a to-be-signed DER body as
// SEQUENCE { body, ecdsa-with-SHA256, BIT STRING signature }
func signStructure(c Curve, key *PrivateKey, body []byte) ([]byte, error) {
	digest := sha256.Sum256(body)
	sig, err := key.sign(c, digest[:])
	if err != nil {
		return nil, err
	}

	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddBytes(body)
		addSignatureAlgorithm(b)
		b.AddASN1BitString(sig)
	})
	der, err := b.Bytes()
	if err != nil {
		return nil, NewSigningError(ErrCodeSignFailed, "signature", "encoding signed structure failed", err)
	}
	return der, nil
}
