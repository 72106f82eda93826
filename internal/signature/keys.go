package signature

import (
	"bytes"
	"encoding/asn1"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"strings"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

const (
	scalarLength    = 32
	publicKeyLength = 65
)

// PEM block types
const (
	PEMTypeECPrivateKey = "EC PRIVATE KEY"
	PEMTypePrivateKey   = "PRIVATE KEY"
	PEMTypeECParameters = "EC PARAMETERS"
	PEMTypeCertificate  = "CERTIFICATE"
	PEMTypeCertRequest  = "CERTIFICATE REQUEST"
)

var (
	oidPublicKeyECDSA      = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidNamedCurveSecp256k1 = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
	oidECDSAWithSHA256     = asn1.ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
)

var (
	tagContext0 = cbasn1.Tag(0).Constructed().ContextSpecific()
	tagContext1 = cbasn1.Tag(1).Constructed().ContextSpecific()
)

// PrivateKey is a secp256k1 signing key
type PrivateKey struct {
	scalar []byte
	public []byte
}

// GenerateKeyPair creates a new key from crypto/rand
func GenerateKeyPair() (*PrivateKey, error) {
	c, err := activeCurve()
	if err != nil {
		return nil, err
	}
	scalar, err := c.GenerateKey()
	if err != nil {
		return nil, NewSigningError(ErrCodeSignFailed, "private_key", "key generation failed", err)
	}
	return newPrivateKey(c, scalar)
}

func newPrivateKey(c Curve, scalar []byte) (*PrivateKey, error) {
	if len(scalar) > scalarLength {
		return nil, ErrMalformedKey("private scalar longer than 32 bytes", nil)
	}
	padded := make([]byte, scalarLength)
	copy(padded[scalarLength-len(scalar):], scalar)

	pub, err := c.PublicKey(padded)
	if err != nil {
		return nil, ErrMalformedKey("invalid private scalar", err)
	}
	return &PrivateKey{scalar: padded, public: pub}, nil
}

// PublicKeyBytes returns the uncompressed public point (0x04 || X || Y)
func (k *PrivateKey) PublicKeyBytes() []byte {
	out := make([]byte, len(k.public))
	copy(out, k.public)
	return out
}

// MarshalDER encodes the key as a SEC 1 ECPrivateKey structure
func (k *PrivateKey) MarshalDER() ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1Int64(1)
		b.AddASN1OctetString(k.scalar)
		b.AddASN1(tagContext0, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oidNamedCurveSecp256k1)
		})
		b.AddASN1(tagContext1, func(b *cryptobyte.Builder) {
			b.AddASN1BitString(k.public)
		})
	})
	return b.Bytes()
}

// MarshalPEM encodes the key as an "EC PRIVATE KEY" PEM block
func (k *PrivateKey) MarshalPEM() ([]byte, error) {
	der, err := k.MarshalDER()
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: PEMTypeECPrivateKey, Bytes: der}), nil
}

func (k *PrivateKey) sign(c Curve, digest []byte) ([]byte, error) {
	sig, err := c.Sign(k.scalar, digest)
	if err != nil {
		return nil, NewSigningError(ErrCodeSignFailed, "signature", "ECDSA signing failed", err)
	}
	return sig, nil
}

// ParsePrivateKeyPEM decodes a secp256k1 private key. SEC 1 and PKCS #8
// encodings are accepted, PEM-armored or as bare base64 DER; a leading
// "EC PARAMETERS" block is skipped.
func ParsePrivateKeyPEM(data []byte) (*PrivateKey, error) {
	der, err := decodeKeyDER(data)
	if err != nil {
		return nil, err
	}

	scalar, err := parseSEC1(der)
	if err != nil {
		var pkcs8Err error
		scalar, pkcs8Err = parsePKCS8(der)
		if pkcs8Err != nil {
			return nil, ErrMalformedKey("not a SEC 1 or PKCS #8 EC private key", errors.Join(err, pkcs8Err))
		}
	}

	c, err := activeCurve()
	if err != nil {
		return nil, err
	}
	return newPrivateKey(c, scalar)
}

func decodeKeyDER(data []byte) ([]byte, error) {
	rest := bytes.TrimSpace(data)
	if len(rest) == 0 {
		return nil, ErrMalformedKey("private key is empty", nil)
	}
	sawPEM := false
	for {
		block, remaining := pem.Decode(rest)
		if block == nil {
			break
		}
		sawPEM = true
		switch block.Type {
		case PEMTypeECPrivateKey, PEMTypePrivateKey:
			return block.Bytes, nil
		}
		rest = remaining
	}
	if sawPEM {
		return nil, ErrMalformedKey("no EC PRIVATE KEY or PRIVATE KEY block found", nil)
	}

	der, err := decodeBareBase64(string(data))
	if err != nil {
		return nil, ErrMalformedKey("neither PEM nor base64", err)
	}
	return der, nil
}

// decodeBareBase64 decodes base64 text with any line breaks removed
func decodeBareBase64(s string) ([]byte, error) {
	clean := strings.Join(strings.Fields(s), "")
	return base64.StdEncoding.DecodeString(clean)
}

func parseSEC1(der []byte) ([]byte, error) {
	input := cryptobyte.String(der)
	var key cryptobyte.String
	if !input.ReadASN1(&key, cbasn1.SEQUENCE) || !input.Empty() {
		return nil, errors.New("sec1: not a DER sequence")
	}

	var version int64
	var scalar []byte
	if !key.ReadASN1Integer(&version) || version != 1 {
		return nil, errors.New("sec1: unsupported version")
	}
	if !key.ReadASN1Bytes(&scalar, cbasn1.OCTET_STRING) {
		return nil, errors.New("sec1: missing private key octets")
	}

	var params cryptobyte.String
	var hasParams bool
	if !key.ReadOptionalASN1(&params, &hasParams, tagContext0) {
		return nil, errors.New("sec1: malformed parameters")
	}
	if hasParams {
		var curve asn1.ObjectIdentifier
		if !params.ReadASN1ObjectIdentifier(&curve) {
			return nil, errors.New("sec1: parameters are not a named curve")
		}
		if !curve.Equal(oidNamedCurveSecp256k1) {
			return nil, errors.New("sec1: unsupported curve " + curve.String())
		}
	}
	return scalar, nil
}

func parsePKCS8(der []byte) ([]byte, error) {
	input := cryptobyte.String(der)
	var info, algorithm cryptobyte.String
	var version int64
	var inner []byte
	if !input.ReadASN1(&info, cbasn1.SEQUENCE) || !input.Empty() ||
		!info.ReadASN1Integer(&version) || version != 0 ||
		!info.ReadASN1(&algorithm, cbasn1.SEQUENCE) ||
		!info.ReadASN1Bytes(&inner, cbasn1.OCTET_STRING) {
		return nil, errors.New("pkcs8: malformed PrivateKeyInfo")
	}

	var algo, curve asn1.ObjectIdentifier
	if !algorithm.ReadASN1ObjectIdentifier(&algo) || !algo.Equal(oidPublicKeyECDSA) {
		return nil, errors.New("pkcs8: not an EC key")
	}
	if !algorithm.ReadASN1ObjectIdentifier(&curve) || !curve.Equal(oidNamedCurveSecp256k1) {
		return nil, errors.New("pkcs8: curve is not secp256k1")
	}
	return parseSEC1(inner)
}

// marshalSubjectPublicKeyInfo adds the SPKI of an uncompressed secp256k1 point
func marshalSubjectPublicKeyInfo(b *cryptobyte.Builder, public []byte) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
			b.AddASN1ObjectIdentifier(oidPublicKeyECDSA)
			b.AddASN1ObjectIdentifier(oidNamedCurveSecp256k1)
		})
		b.AddASN1BitString(public)
	})
}

// addSignatureAlgorithm adds the ecdsa-with-SHA256 AlgorithmIdentifier
func addSignatureAlgorithm(b *cryptobyte.Builder) {
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1ObjectIdentifier(oidECDSAWithSHA256)
	})
}
