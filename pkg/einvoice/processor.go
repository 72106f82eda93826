package einvoice

import (
	"context"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rezonia/fatoora/internal/model"
	"github.com/rezonia/fatoora/internal/signature"
	"github.com/rezonia/fatoora/internal/tlv"
	"github.com/rezonia/fatoora/internal/ubl"
	"github.com/rezonia/fatoora/internal/validation"
)

// Options configures a Processor
type Options struct {
	// Clock supplies missing issue times and signing times (default: time.Now)
	Clock func() time.Time

	// Logger receives signing diagnostics (default: discard)
	Logger zerolog.Logger

	// Concurrency bounds batch operations (default: runtime.NumCPU())
	Concurrency int
}

// DefaultOptions returns default processor options
func DefaultOptions() Options {
	return Options{
		Clock:       time.Now,
		Logger:      zerolog.Nop(),
		Concurrency: runtime.NumCPU(),
	}
}

// Processor builds, validates, signs and verifies documents.
// It holds no per-document state and is safe for concurrent use.
type Processor struct {
	options  Options
	signer   *signature.Signer
	verifier *signature.Verifier
	// signingErr is non-nil when signing is unavailable in this process
	signingErr error
}

// NewProcessor creates a processor. Signing unavailability is not an
// error here; it surfaces from Sign, Verify and SigningAvailable.
func NewProcessor(opts Options) *Processor {
	defaults := DefaultOptions()
	if opts.Clock == nil {
		opts.Clock = defaults.Clock
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaults.Concurrency
	}

	p := &Processor{options: opts}
	p.signer, p.signingErr = signature.NewSigner(
		signature.WithLogger(opts.Logger),
		signature.WithClock(opts.Clock),
	)
	if p.signingErr == nil {
		p.verifier, p.signingErr = signature.NewVerifier(signature.WithLogger(opts.Logger))
	}
	return p
}

// NewDefaultProcessor creates a processor with default options
func NewDefaultProcessor() *Processor {
	return NewProcessor(DefaultOptions())
}

// SigningAvailable returns nil when this process can sign, or a
// *MissingSigningMaterialError
func (p *Processor) SigningAvailable() error {
	return p.signingErr
}

// NewInvoice validates req and returns an immutable Invoice
func (p *Processor) NewInvoice(req InvoiceRequest) (*Invoice, error) {
	return model.NewInvoice(req, model.WithClock(p.options.Clock))
}

// BuildDocument validates req and renders the UBL document with its
// Phase-1 QR embedded
func (p *Processor) BuildDocument(req InvoiceRequest) ([]byte, error) {
	inv, err := p.NewInvoice(req)
	if err != nil {
		return nil, err
	}
	return ubl.Build(inv)
}

// Validate runs the sixteen business rules. Findings are data, never errors.
func (p *Processor) Validate(document []byte) *ValidationResult {
	return validation.Validate(document)
}

// Sign signs document with PEM signing material
func (p *Processor) Sign(document, certificatePEM, privateKeyPEM []byte) (*SignResult, error) {
	if p.signingErr != nil {
		return nil, p.signingErr
	}
	return p.signer.Sign(document, certificatePEM, privateKeyPEM)
}

// Verify checks the signature embedded in document
func (p *Processor) Verify(document []byte) (*VerificationResult, error) {
	if p.signingErr != nil {
		return nil, p.signingErr
	}
	return p.verifier.Verify(document)
}

// SignBatch signs documents concurrently with one key. Results are in
// input order; the first failure cancels the remaining work and is returned.
func (p *Processor) SignBatch(ctx context.Context, documents [][]byte, certificatePEM, privateKeyPEM []byte) ([]*SignResult, error) {
	if p.signingErr != nil {
		return nil, p.signingErr
	}
	key, err := signature.ParsePrivateKeyPEM(privateKeyPEM)
	if err != nil {
		return nil, err
	}

	results := make([]*SignResult, len(documents))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.options.Concurrency)
	for i, doc := range documents {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			result, err := p.signer.SignWithKey(doc, certificatePEM, key)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ValidateBatch validates documents concurrently; results are in input order
func (p *Processor) ValidateBatch(ctx context.Context, documents [][]byte) ([]*ValidationResult, error) {
	results := make([]*ValidationResult, len(documents))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.options.Concurrency)
	for i, doc := range documents {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = validation.Validate(doc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

var defaultProcessor = NewDefaultProcessor()

// BuildDocument validates req and renders the UBL document
func BuildDocument(req InvoiceRequest) ([]byte, error) {
	return defaultProcessor.BuildDocument(req)
}

// EncodePayload returns the base64 TLV encoding of p
func EncodePayload(p Payload) (string, error) {
	return tlv.EncodeBase64(p)
}

// Phase1Payload builds the five-tag payload carried by unsigned documents
func Phase1Payload(sellerName, vatNumber, timestamp, totalAmount, vatAmount string) Payload {
	return tlv.Phase1(sellerName, vatNumber, timestamp, totalAmount, vatAmount)
}

// DecodePayload parses a base64 TLV payload. Tags 6-8 are simply absent
// from the result for unsigned documents.
func DecodePayload(s string) (Payload, error) {
	return tlv.DecodeBase64(s)
}

// Validate runs the sixteen business rules against document
func Validate(document []byte) *ValidationResult {
	return validation.Validate(document)
}

// GenerateKeyPair creates a secp256k1 device key
func GenerateKeyPair() (*PrivateKey, error) {
	return signature.GenerateKeyPair()
}

// GenerateCertificateRequest returns a PEM PKCS #10 request for key
func GenerateCertificateRequest(subject CSRSubject, key *PrivateKey) ([]byte, error) {
	return signature.GenerateCertificateRequest(subject, key)
}

// Sign signs document with PEM signing material
func Sign(document, certificatePEM, privateKeyPEM []byte) (*SignResult, error) {
	return defaultProcessor.Sign(document, certificatePEM, privateKeyPEM)
}

// Verify checks the signature embedded in document
func Verify(document []byte) (*VerificationResult, error) {
	return defaultProcessor.Verify(document)
}

// SigningAvailable reports whether this process can sign
func SigningAvailable() error {
	return signature.Available()
}
