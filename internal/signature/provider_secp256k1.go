//go:build !nosecp256k1

package signature

import (
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

func init() {
	registerCurve(secp256k1Curve{})
}

type secp256k1Curve struct{}

func (secp256k1Curve) Name() string { return "secp256k1" }

func (secp256k1Curve) GenerateKey() ([]byte, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return key.Serialize(), nil
}

func (secp256k1Curve) PublicKey(scalar []byte) ([]byte, error) {
	key, err := privateKeyFromScalar(scalar)
	if err != nil {
		return nil, err
	}
	return key.PubKey().SerializeUncompressed(), nil
}

// Sign produces a deterministic (RFC 6979) low-S signature
func (secp256k1Curve) Sign(scalar, digest []byte) ([]byte, error) {
	key, err := privateKeyFromScalar(scalar)
	if err != nil {
		return nil, err
	}
	return ecdsa.Sign(key, digest).Serialize(), nil
}

func (secp256k1Curve) Verify(publicKey, digest, sig []byte) bool {
	pub, err := secp256k1.ParsePubKey(publicKey)
	if err != nil {
		return false
	}
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	return parsed.Verify(digest, pub)
}

func privateKeyFromScalar(scalar []byte) (*secp256k1.PrivateKey, error) {
	if len(scalar) == 0 || len(scalar) > scalarLength {
		return nil, errors.New("private scalar must be 1 to 32 bytes")
	}
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(scalar); overflow {
		return nil, errors.New("private scalar is not below the curve order")
	}
	if s.IsZero() {
		return nil, errors.New("private scalar is zero")
	}
	return secp256k1.NewPrivateKey(&s), nil
}
