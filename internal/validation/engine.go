// Package validation checks invoice documents against the BR-01..BR-16 business rules.
package validation

import (
	"github.com/rezonia/fatoora/internal/ubl"
)

// Validate parses data and runs every rule in table order.
// It never fails: malformed XML is reported as a BR-01 error.
func Validate(data []byte) *Result {
	doc, err := ubl.ParseDocument(data)
	if err != nil {
		result := NewResult()
		result.ChecksRun = len(table)
		result.AddError(table[0].ID(), "Invalid XML: "+err.Error())
		return result
	}
	return ValidateDocument(doc)
}

// ValidateDocument runs every rule against an already parsed document
func ValidateDocument(doc *ubl.Document) *Result {
	if doc == nil {
		doc = ubl.EmptyDocument()
	}

	result := NewResult()
	for _, r := range table {
		outcome := r.Evaluate(doc)
		if outcome.Passed() {
			continue
		}
		for _, msg := range outcome.Errors {
			result.AddError(r.ID(), msg)
		}
		for _, msg := range outcome.Warnings {
			result.AddWarning(r.ID(), msg)
		}
	}
	result.ChecksRun = len(table)
	result.ComputeValidity()
	return result
}
