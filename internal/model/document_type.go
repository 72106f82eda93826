package model

import (
	"fmt"
	"strings"
)

// DocumentType identifies invoice/credit/debit document and its standard or simplified variant
type DocumentType string

const (
	StandardInvoice      DocumentType = "standard-invoice"
	SimplifiedInvoice    DocumentType = "simplified-invoice"
	StandardCreditNote   DocumentType = "standard-credit-note"
	SimplifiedCreditNote DocumentType = "simplified-credit-note"
	StandardDebitNote    DocumentType = "standard-debit-note"
	SimplifiedDebitNote  DocumentType = "simplified-debit-note"
)

// UN/CEFACT 1001 document codes used in cbc:InvoiceTypeCode
const (
	TypeCodeInvoice    = "388"
	TypeCodeCreditNote = "381"
	TypeCodeDebitNote  = "383"
)

// Subtype codes carried in the InvoiceTypeCode name attribute
const (
	SubtypeStandard   = "0100000"
	SubtypeSimplified = "0200000"
)

// DocumentTypes lists every supported document type
var DocumentTypes = []DocumentType{
	StandardInvoice,
	SimplifiedInvoice,
	StandardCreditNote,
	SimplifiedCreditNote,
	StandardDebitNote,
	SimplifiedDebitNote,
}

// ParseDocumentType accepts the canonical names plus the short aliases
// "standard", "simplified", "credit_note" and "debit_note".
func ParseDocumentType(s string) (DocumentType, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	switch normalized {
	case "standard":
		return StandardInvoice, nil
	case "simplified":
		return SimplifiedInvoice, nil
	case "credit_note", "credit-note":
		return StandardCreditNote, nil
	case "debit_note", "debit-note":
		return StandardDebitNote, nil
	}

	t := DocumentType(strings.ReplaceAll(normalized, "_", "-"))
	if !t.Valid() {
		return "", fmt.Errorf("unknown document type: %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the supported document types
func (t DocumentType) Valid() bool {
	for _, known := range DocumentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsStandard reports whether t is a standard (B2B) variant
func (t DocumentType) IsStandard() bool {
	return strings.HasPrefix(string(t), "standard-")
}

// IsCreditNote reports whether t is a credit note
func (t DocumentType) IsCreditNote() bool {
	return strings.HasSuffix(string(t), "-credit-note")
}

// IsDebitNote reports whether t is a debit note
func (t DocumentType) IsDebitNote() bool {
	return strings.HasSuffix(string(t), "-debit-note")
}

// IsNote reports whether t is a credit or debit note
func (t DocumentType) IsNote() bool {
	return t.IsCreditNote() || t.IsDebitNote()
}

// TypeCode returns the cbc:InvoiceTypeCode value
func (t DocumentType) TypeCode() string {
	switch {
	case t.IsCreditNote():
		return TypeCodeCreditNote
	case t.IsDebitNote():
		return TypeCodeDebitNote
	default:
		return TypeCodeInvoice
	}
}

// SubtypeCode returns the 7-digit name attribute of cbc:InvoiceTypeCode
func (t DocumentType) SubtypeCode() string {
	if t.IsStandard() {
		return SubtypeStandard
	}
	return SubtypeSimplified
}

func (t DocumentType) String() string {
	return string(t)
}
