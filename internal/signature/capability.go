package signature

import (
	"bytes"
	"crypto/sha256"
	"sync"
)

// Curve is the elliptic-curve backend behind key generation and signing.
// Keys travel as a 32-byte scalar, public keys as an uncompressed point
// and signatures as DER.
type Curve interface {
	Name() string
	GenerateKey() ([]byte, error)
	PublicKey(scalar []byte) ([]byte, error)
	Sign(scalar, digest []byte) ([]byte, error)
	Verify(publicKey, digest, sig []byte) bool
}

var (
	provider Curve

	capabilityOnce sync.Once
	capabilityErr  error
)

// registerCurve installs the curve backend; called from init only
func registerCurve(c Curve) {
	provider = c
}

// Available reports whether signing works in this process. The check runs
// once: a provider must be compiled in and pass a sign/verify round trip.
func Available() error {
	capabilityOnce.Do(func() {
		capabilityErr = selfTest(provider)
	})
	return capabilityErr
}

func selfTest(c Curve) error {
	if c == nil {
		return NewMissingSigningMaterialError("no secp256k1 provider compiled in (built with nosecp256k1)", nil)
	}

	scalar, err := c.GenerateKey()
	if err != nil {
		return NewMissingSigningMaterialError("key generation failed", err)
	}
	pub, err := c.PublicKey(scalar)
	if err != nil {
		return NewMissingSigningMaterialError("public key derivation failed", err)
	}
	if len(pub) != publicKeyLength || pub[0] != 0x04 {
		return NewMissingSigningMaterialError(c.Name()+" provider returned a malformed public key", nil)
	}

	digest := sha256.Sum256([]byte("fatoora capability check"))
	sig, err := c.Sign(scalar, digest[:])
	if err != nil {
		return NewMissingSigningMaterialError("signing failed", err)
	}
	if !c.Verify(pub, digest[:], sig) {
		return NewMissingSigningMaterialError(c.Name()+" signature did not verify", nil)
	}

	tampered := sha256.Sum256([]byte("fatoora capability check!"))
	if bytes.Equal(tampered[:], digest[:]) || c.Verify(pub, tampered[:], sig) {
		return NewMissingSigningMaterialError(c.Name()+" accepted a signature over the wrong digest", nil)
	}
	return nil
}

// activeCurve returns the provider when the capability check passed
func activeCurve() (Curve, error) {
	if err := Available(); err != nil {
		return nil, err
	}
	return provider, nil
}
