package ubl

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
)

// canonicalizer is exclusive XML canonicalization 1.0 without comments
var canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")

// Canonicalize returns the exclusive canonical form of el.
// Whitespace-only text nodes are dropped first. el is not modified.
// el must declare every namespace prefix it uses.
func Canonicalize(el *etree.Element) ([]byte, error) {
	if el == nil {
		return nil, fmt.Errorf("canonicalize: nil element")
	}
	c := el.Copy()
	StripWhitespace(c)
	out, err := canonicalizer.Canonicalize(c)
	if err != nil {
		return nil, fmt.Errorf("canonicalize %s: %w", el.FullTag(), err)
	}
	return out, nil
}

// StripWhitespace removes whitespace-only character data from el and its descendants
func StripWhitespace(el *etree.Element) {
	for i := len(el.Child) - 1; i >= 0; i-- {
		switch tok := el.Child[i].(type) {
		case *etree.CharData:
			if strings.TrimSpace(tok.Data) == "" {
				el.RemoveChildAt(i)
			}
		case *etree.Element:
			StripWhitespace(tok)
		}
	}
}

// CanonicalForm returns the bytes hashed for the document: the canonical
// root without ext:UBLExtensions, cac:Signature and the QR reference.
// Adding or replacing a signature therefore never changes the hash.
func (d *Document) CanonicalForm() ([]byte, error) {
	root := d.Root()
	if root == nil {
		return nil, fmt.Errorf("canonical form: empty document")
	}
	c := root.Copy()
	RemoveChildren(c, "ext:UBLExtensions")
	RemoveChildren(c, "cac:Signature")
	RemoveChildrenFunc(c, IsQRReference)
	return Canonicalize(c)
}

// Hash returns the base64 SHA-256 digest of the document's canonical form
func (d *Document) Hash() (string, error) {
	canonical, err := d.CanonicalForm()
	if err != nil {
		return "", err
	}
	return Digest(canonical), nil
}

// Digest returns the base64 SHA-256 digest of data
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}
