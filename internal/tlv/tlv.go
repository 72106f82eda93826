// Package tlv encodes and decodes the tag-length-value QR payload embedded in invoices.
//
// Each field is a 1-byte tag, a 1-byte length and the value bytes. The whole
// buffer is transported base64-encoded.
package tlv

import (
	"encoding/base64"
	"fmt"
	"sort"
)

// MaxValueLength is the largest value a single field can carry
const MaxValueLength = 255

// Tag identifies a QR payload field
type Tag byte

const (
	SellerName Tag = iota + 1
	VATNumber
	Timestamp
	TotalAmount
	VATAmount
	InvoiceHash
	Signature
	PublicKey
)

var tagNames = map[Tag]string{
	SellerName:  "seller_name",
	VATNumber:   "vat_number",
	Timestamp:   "timestamp",
	TotalAmount: "total_amount",
	VATAmount:   "vat_amount",
	InvoiceHash: "invoice_hash",
	Signature:   "ecdsa_signature",
	PublicKey:   "ecdsa_public_key",
}

// RequiredTags are present in every payload, signed or not
var RequiredTags = []Tag{SellerName, VATNumber, Timestamp, TotalAmount, VATAmount}

// SignatureTags are present only after signing
var SignatureTags = []Tag{InvoiceHash, Signature, PublicKey}

// Valid reports whether t is one of the eight known tags
func (t Tag) Valid() bool {
	return t >= SellerName && t <= PublicKey
}

func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tag_%d", byte(t))
}

// Field is a single tag/value pair
type Field struct {
	Tag   Tag
	Value []byte
}

// Payload is an ordered sequence of fields in ascending tag order
type Payload []Field

// Get returns the value of tag and whether it is present
func (p Payload) Get(tag Tag) ([]byte, bool) {
	for _, f := range p {
		if f.Tag == tag {
			return f.Value, true
		}
	}
	return nil, false
}

// String returns the value of tag as text, empty when absent
func (p Payload) String(tag Tag) string {
	v, _ := p.Get(tag)
	return string(v)
}

// Has reports whether every given tag is present
func (p Payload) Has(tags ...Tag) bool {
	for _, tag := range tags {
		if _, ok := p.Get(tag); !ok {
			return false
		}
	}
	return true
}

// Signed reports whether tags 6-8 are all present and non-empty
func (p Payload) Signed() bool {
	for _, tag := range SignatureTags {
		if v, ok := p.Get(tag); !ok || len(v) == 0 {
			return false
		}
	}
	return true
}

// Named returns the payload keyed by field name.
// Binary fields (the public key) are rendered base64-encoded.
func (p Payload) Named() map[string]string {
	out := make(map[string]string, len(p))
	for _, f := range p {
		if f.Tag == PublicKey {
			out[f.Tag.String()] = base64.StdEncoding.EncodeToString(f.Value)
			continue
		}
		out[f.Tag.String()] = string(f.Value)
	}
	return out
}

// With returns a copy of p with tag set to value, keeping ascending tag order
func (p Payload) With(tag Tag, value []byte) Payload {
	out := make(Payload, 0, len(p)+1)
	for _, f := range p {
		if f.Tag != tag {
			out = append(out, f)
		}
	}
	out = append(out, Field{Tag: tag, Value: value})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

// Phase1 builds the tag 1-5 payload
func Phase1(sellerName, vatNumber, timestamp, totalAmount, vatAmount string) Payload {
	return Payload{
		{Tag: SellerName, Value: []byte(sellerName)},
		{Tag: VATNumber, Value: []byte(vatNumber)},
		{Tag: Timestamp, Value: []byte(timestamp)},
		{Tag: TotalAmount, Value: []byte(totalAmount)},
		{Tag: VATAmount, Value: []byte(vatAmount)},
	}
}

// Encode serializes fields in ascending tag order
func Encode(p Payload) ([]byte, error) {
	fields := make(Payload, len(p))
	copy(fields, p)
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Tag < fields[j].Tag })

	size := 0
	for i, f := range fields {
		if !f.Tag.Valid() {
			return nil, fmt.Errorf("tlv: unknown tag %d", byte(f.Tag))
		}
		if i > 0 && fields[i-1].Tag == f.Tag {
			return nil, fmt.Errorf("tlv: duplicate tag %d (%s)", byte(f.Tag), f.Tag)
		}
		if len(f.Value) > MaxValueLength {
			return nil, NewPayloadTooLargeError(f.Tag, len(f.Value))
		}
		size += 2 + len(f.Value)
	}

	buf := make([]byte, 0, size)
	for _, f := range fields {
		buf = append(buf, byte(f.Tag), byte(len(f.Value)))
		buf = append(buf, f.Value...)
	}
	return buf, nil
}

// EncodeBase64 serializes fields and base64-encodes the result
func EncodeBase64(p Payload) (string, error) {
	raw, err := Encode(p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode parses a raw TLV buffer. Tags must appear in strictly ascending
// order; a repeated or out-of-order tag is malformed.
// It never returns a partial payload.
func Decode(data []byte) (Payload, error) {
	var out Payload
	var last Tag

	for i := 0; i < len(data); {
		if i+2 > len(data) {
			return nil, NewMalformedPayloadError(i, "truncated field header", nil)
		}
		tag := Tag(data[i])
		length := int(data[i+1])
		if !tag.Valid() {
			return nil, NewMalformedPayloadError(i, fmt.Sprintf("unknown tag %d", byte(tag)), nil)
		}
		switch {
		case tag == last:
			return nil, NewMalformedPayloadError(i, fmt.Sprintf("duplicate tag %d (%s)", byte(tag), tag), nil)
		case tag < last:
			return nil, NewMalformedPayloadError(i, fmt.Sprintf("tag %d (%s) after tag %d", byte(tag), tag, byte(last)), nil)
		}
		start := i + 2
		if start+length > len(data) {
			return nil, NewMalformedPayloadError(i,
				fmt.Sprintf("tag %d declares %d bytes but only %d remain", byte(tag), length, len(data)-start), nil)
		}

		value := make([]byte, length)
		copy(value, data[start:start+length])
		out = append(out, Field{Tag: tag, Value: value})
		last = tag
		i = start + length
	}
	return out, nil
}

// DecodeBase64 decodes a base64 string and parses the TLV buffer
func DecodeBase64(s string) (Payload, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, NewMalformedPayloadError(0, "invalid base64", err)
	}
	return Decode(raw)
}
