package signature

import (
	"crypto/x509/pkix"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"
)

func TestVerificationResult_JSONSerialization(t *testing.T) {
	signedAt := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

	result := &VerificationResult{
		Valid:                  true,
		SignatureFound:         true,
		DocumentDigestValid:    true,
		PropertiesDigestValid:  true,
		CertificateDigestValid: true,
		SignatureValid:         true,
		QRConsistent:           true,
		Hash:                   "ZnVsbCBoYXNo",
		SignedAt:               &signedAt,
		Signer: &SignerInfo{
			Name:         "شركة أكمي",
			Organization: "Acme Trading Co",
			SerialNumber: "1234567890",
			Issuer:       "TSZEINVOICE-SubCA-1",
			ValidFrom:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			ValidTo:      time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC),
		},
		Warnings: []string{"signing time missing or unparseable"},
		Errors:   []string{},
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("failed to marshal result: %v", err)
	}

	var decoded VerificationResult
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if decoded.Valid != result.Valid {
		t.Errorf("Valid: got %v, want %v", decoded.Valid, result.Valid)
	}
	if decoded.QRConsistent != result.QRConsistent {
		t.Errorf("QRConsistent: got %v, want %v", decoded.QRConsistent, result.QRConsistent)
	}
	if decoded.Hash != result.Hash {
		t.Errorf("Hash: got %v, want %v", decoded.Hash, result.Hash)
	}
	if decoded.Signer == nil {
		t.Fatal("Signer is nil after unmarshal")
	}
	if decoded.Signer.Name != result.Signer.Name {
		t.Errorf("Signer.Name: got %v, want %v", decoded.Signer.Name, result.Signer.Name)
	}
	if len(decoded.Warnings) != len(result.Warnings) {
		t.Errorf("Warnings length: got %d, want %d", len(decoded.Warnings), len(result.Warnings))
	}
}

func TestVerificationResult_OmitEmpty(t *testing.T) {
	data, err := json.Marshal(NewVerificationResult())
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("failed to unmarshal to map: %v", err)
	}

	if _, exists := raw["signer"]; exists {
		t.Error("signer should be omitted when nil")
	}
	if _, exists := raw["signed_at"]; exists {
		t.Error("signed_at should be omitted when nil")
	}
	if _, exists := raw["errors"]; !exists {
		t.Error("errors should always be present")
	}
}

func TestVerificationResult_SetSigner(t *testing.T) {
	cert := &Certificate{
		SerialNumber: big.NewInt(12345),
		Subject: pkix.Name{
			CommonName:   "EGS1-886431145",
			Organization: []string{"Maximum Speed Tech Supply"},
		},
		Issuer: pkix.Name{
			Organization: []string{"Test CA Org"},
		},
		NotBefore: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:  time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
	}

	result := NewVerificationResult()
	result.SetSigner(nil)
	if result.Signer != nil {
		t.Fatal("SetSigner(nil) should leave Signer unset")
	}

	result.SetSigner(cert)
	if result.Signer == nil {
		t.Fatal("Signer is nil after SetSigner")
	}
	if result.Signer.Name != "EGS1-886431145" {
		t.Errorf("Name: got %v, want EGS1-886431145", result.Signer.Name)
	}
	if result.Signer.Organization != "Maximum Speed Tech Supply" {
		t.Errorf("Organization: got %v, want Maximum Speed Tech Supply", result.Signer.Organization)
	}
	if result.Signer.SerialNumber != "12345" {
		t.Errorf("SerialNumber: got %v, want 12345", result.Signer.SerialNumber)
	}
	if result.Signer.Issuer != "Test CA Org" {
		t.Errorf("Issuer: got %v, want issuer organization as fallback", result.Signer.Issuer)
	}
}

func TestVerificationResult_ComputeValidity(t *testing.T) {
	allPass := func(r *VerificationResult) {
		r.SignatureFound = true
		r.DocumentDigestValid = true
		r.PropertiesDigestValid = true
		r.CertificateDigestValid = true
		r.SignatureValid = true
		r.QRConsistent = true
	}

	tests := []struct {
		name     string
		setup    func(*VerificationResult)
		expected bool
	}{
		{"all checks pass", func(r *VerificationResult) {}, true},
		{"signature not found", func(r *VerificationResult) { r.SignatureFound = false }, false},
		{"document digest mismatch", func(r *VerificationResult) { r.DocumentDigestValid = false }, false},
		{"properties digest mismatch", func(r *VerificationResult) { r.PropertiesDigestValid = false }, false},
		{"certificate digest mismatch", func(r *VerificationResult) { r.CertificateDigestValid = false }, false},
		{"signature invalid", func(r *VerificationResult) { r.SignatureValid = false }, false},
		{"qr inconsistent", func(r *VerificationResult) { r.QRConsistent = false }, false},
		{"has errors", func(r *VerificationResult) { r.Errors = []string{"some error"} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewVerificationResult()
			allPass(result)
			tt.setup(result)
			result.ComputeValidity()

			if result.Valid != tt.expected {
				t.Errorf("Valid: got %v, want %v", result.Valid, tt.expected)
			}
		})
	}
}

func TestVerificationResult_AddWarningAndError(t *testing.T) {
	result := NewVerificationResult()
	result.Valid = true

	result.AddWarning("certificate key is not secp256k1")
	if len(result.Warnings) != 1 {
		t.Errorf("Warnings count: got %d, want 1", len(result.Warnings))
	}
	if result.Valid != true {
		t.Error("AddWarning should not change Valid")
	}

	result.AddError("document digest mismatch")
	if len(result.Errors) != 1 {
		t.Errorf("Errors count: got %d, want 1", len(result.Errors))
	}
	if result.Valid != false {
		t.Error("AddError should set Valid to false")
	}
}

func TestSigningError_Format(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		err  *SigningError
		want string
	}{
		{NewSigningError(ErrCodeMalformedKey, "private_key", "bad", cause), "[MALFORMED_KEY] private_key: bad (boom)"},
		{NewSigningError(ErrCodeMalformedKey, "private_key", "bad", nil), "[MALFORMED_KEY] private_key: bad"},
		{NewSigningError(ErrCodeSignFailed, "", "failed", cause), "[SIGN_FAILED] failed (boom)"},
		{ErrNoSignature(), "[NO_SIGNATURE] no signature found in document"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
	if !errors.Is(NewSigningError(ErrCodeSignFailed, "", "x", cause), cause) {
		t.Error("SigningError should unwrap to its cause")
	}
}
