package model

import "fmt"

// InvalidInvoiceError is returned when invoice input is rejected at construction
type InvalidInvoiceError struct {
	Field   string
	Value   interface{}
	Rule    string
	Message string
	Cause   error
}

func (e *InvalidInvoiceError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("invalid invoice: %s: %s (value=%v, rule=%s)", e.Field, e.Message, e.Value, e.Rule)
	}
	return fmt.Sprintf("invalid invoice: %s: %s (rule=%s)", e.Field, e.Message, e.Rule)
}

func (e *InvalidInvoiceError) Unwrap() error {
	return e.Cause
}

// NewInvalidInvoiceError creates a new invalid invoice error
func NewInvalidInvoiceError(field string, value interface{}, rule, message string) *InvalidInvoiceError {
	return &InvalidInvoiceError{
		Field:   field,
		Value:   value,
		Rule:    rule,
		Message: message,
	}
}

// ParseError represents a failure to read an invoice document
type ParseError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse %s: %s (%v)", e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("parse %s: %s", e.Field, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// NewParseError creates a new parse error
func NewParseError(field, message string, cause error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}
