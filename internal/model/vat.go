package model

import "fmt"

// VATNumberLength is the length of a Saudi VAT registration number
const VATNumberLength = 15

// ValidateVATNumber checks a Saudi VAT registration number:
// 15 digits, first and last digit 3. Returns every problem found.
func ValidateVATNumber(vat string) []string {
	if vat == "" {
		return []string{"VAT number is required"}
	}

	var problems []string
	if len(vat) != VATNumberLength {
		problems = append(problems, fmt.Sprintf("VAT number must be %d digits, got %d", VATNumberLength, len(vat)))
	}
	for _, c := range vat {
		if c < '0' || c > '9' {
			problems = append(problems, "VAT number must contain only digits")
			break
		}
	}
	if vat[0] != '3' {
		problems = append(problems, "VAT number must start with 3")
	}
	if vat[len(vat)-1] != '3' {
		problems = append(problems, "VAT number must end with 3")
	}
	return problems
}
