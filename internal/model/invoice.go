package model

import (
	"strconv"

	"github.com/shopspring/decimal"

	money "github.com/rezonia/fatoora/internal/decimal"
)

// Defaults applied by NewInvoice
const (
	DefaultCurrency         = "SAR"
	DefaultCountryCode      = "SA"
	DefaultVATCategory      = "S"
	DefaultUnit             = "PCE"
	DefaultPaymentMeansCode = "10"
)

// DefaultVATRate is the Saudi standard VAT rate
var DefaultVATRate = decimal.RequireFromString("0.15")

// Party represents seller or buyer information
type Party struct {
	Name        string
	VATNumber   string
	Street      string
	City        string
	CountryCode string
}

// BillingReference points a credit or debit note at the original invoice
type BillingReference struct {
	ID        string
	IssueDate string // optional, YYYY-MM-DD
}

// LineItem represents a single invoice line
type LineItem struct {
	Number      int
	Name        string
	Unit        string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	VATRate     decimal.Decimal
	VATCategory string
}

// ExtensionAmount is round(quantity * unit price, 2)
func (l LineItem) ExtensionAmount() decimal.Decimal {
	return money.Mul(l.Quantity, l.UnitPrice)
}

// TaxAmount is round(extension amount * VAT rate, 2)
func (l LineItem) TaxAmount() decimal.Decimal {
	return money.Mul(l.ExtensionAmount(), l.VATRate)
}

// InclusiveAmount is extension amount plus tax amount
func (l LineItem) InclusiveAmount() decimal.Decimal {
	return money.Round(l.ExtensionAmount().Add(l.TaxAmount()))
}

// Totals holds document-level monetary totals
type Totals struct {
	TaxExclusive decimal.Decimal
	TaxTotal     decimal.Decimal
	TaxInclusive decimal.Decimal
}

// TaxGroup is one TaxSubtotal: lines sharing a (rate, category) pair
type TaxGroup struct {
	Rate          decimal.Decimal
	Category      string
	TaxableAmount decimal.Decimal
	TaxAmount     decimal.Decimal
}

// Invoice is a validated invoice, credit note or debit note produced by
// NewInvoice. Lines are only reachable through Lines, which returns a copy.
// The header fields are re-checked by Validate before every build.
type Invoice struct {
	ID        string
	UUID      string
	Type      DocumentType
	IssueDate string // YYYY-MM-DD
	IssueTime string // HH:MM:SS, UTC
	Currency  string

	Seller Party
	Buyer  Party

	Note             string
	BillingReference *BillingReference
	InstructionNote  string
	PaymentMeansCode string

	lines []LineItem
}

// Lines returns a copy of the invoice lines
func (inv *Invoice) Lines() []LineItem {
	out := make([]LineItem, len(inv.lines))
	copy(out, inv.lines)
	return out
}

// Totals computes document totals from the lines
func (inv *Invoice) Totals() Totals {
	extensions := make([]decimal.Decimal, len(inv.lines))
	taxes := make([]decimal.Decimal, len(inv.lines))
	for i, line := range inv.lines {
		extensions[i] = line.ExtensionAmount()
		taxes[i] = line.TaxAmount()
	}
	exclusive := money.Sum(extensions)
	tax := money.Sum(taxes)
	return Totals{
		TaxExclusive: money.Round(exclusive),
		TaxTotal:     money.Round(tax),
		TaxInclusive: money.Round(exclusive.Add(tax)),
	}
}

// TaxGroups groups lines by (rate, category) in first-seen order
func (inv *Invoice) TaxGroups() []TaxGroup {
	var groups []TaxGroup
	for _, line := range inv.lines {
		idx := -1
		for i := range groups {
			if groups[i].Rate.Equal(line.VATRate) && groups[i].Category == line.VATCategory {
				idx = i
				break
			}
		}
		if idx < 0 {
			groups = append(groups, TaxGroup{
				Rate:          line.VATRate,
				Category:      line.VATCategory,
				TaxableAmount: money.Zero,
				TaxAmount:     money.Zero,
			})
			idx = len(groups) - 1
		}
		groups[idx].TaxableAmount = groups[idx].TaxableAmount.Add(line.ExtensionAmount())
		groups[idx].TaxAmount = groups[idx].TaxAmount.Add(line.TaxAmount())
	}
	return groups
}

// Timestamp returns the QR timestamp: IssueDate + "T" + IssueTime + "Z"
func (inv *Invoice) Timestamp() string {
	return inv.IssueDate + "T" + inv.IssueTime + "Z"
}

// HasPaymentMeans reports whether a cac:PaymentMeans block is emitted
func (inv *Invoice) HasPaymentMeans() bool {
	return inv.InstructionNote != "" || inv.PaymentMeansCode != ""
}

// Validate re-checks the construction invariants on an already built Invoice.
// Invoices returned by NewInvoice always pass.
func (inv *Invoice) Validate() error {
	if inv == nil {
		return NewInvalidInvoiceError("invoice", nil, "required", "invoice is nil")
	}
	if inv.ID == "" {
		return NewInvalidInvoiceError("invoice_number", nil, "BR-01", "invoice number is required")
	}
	if !inv.Type.Valid() {
		return NewInvalidInvoiceError("invoice_type", string(inv.Type), "BR-03", "unknown document type")
	}
	if err := checkDate("issue_date", inv.IssueDate, "BR-02"); err != nil {
		return err
	}
	if !currencyPattern.MatchString(inv.Currency) {
		return NewInvalidInvoiceError("currency", inv.Currency, "BR-04", "currency must be a 3-letter ISO 4217 code")
	}
	if inv.Seller.Name == "" {
		return NewInvalidInvoiceError("seller.name", nil, "BR-05", "seller name is required")
	}
	if problems := ValidateVATNumber(inv.Seller.VATNumber); len(problems) > 0 {
		return NewInvalidInvoiceError("seller.vat_number", inv.Seller.VATNumber, "BR-06", problems[0])
	}
	if inv.Buyer.Name == "" {
		return NewInvalidInvoiceError("buyer.name", nil, "BR-07", "buyer name is required")
	}
	if inv.Type.IsStandard() && inv.Buyer.VATNumber == "" {
		return NewInvalidInvoiceError("buyer.vat_number", nil, "BR-08", "buyer VAT number is required for standard documents")
	}
	if inv.Type.IsNote() && (inv.BillingReference == nil || inv.BillingReference.ID == "") {
		return NewInvalidInvoiceError("billing_reference", nil, "BR-15",
			"billing reference to the original invoice is required for credit and debit notes")
	}
	if len(inv.lines) == 0 {
		return NewInvalidInvoiceError("items", nil, "BR-10", "at least one line item is required")
	}
	for i, line := range inv.lines {
		if err := checkAmounts(i, line.Quantity, line.UnitPrice, line.VATRate); err != nil {
			return err
		}
		if !money.IsPositive(line.Quantity) {
			return NewInvalidInvoiceError("items["+strconv.Itoa(i)+"].quantity", line.Quantity.String(), "positive", "quantity must be greater than zero")
		}
		if !money.IsNonNegative(line.UnitPrice) {
			return NewInvalidInvoiceError("items["+strconv.Itoa(i)+"].unit_price", line.UnitPrice.String(), "non_negative", "unit price must not be negative")
		}
		if line.VATRate.IsNegative() || line.VATRate.GreaterThan(decimal.NewFromInt(1)) {
			return NewInvalidInvoiceError("items["+strconv.Itoa(i)+"].vat_rate", line.VATRate.String(), "range", "VAT rate must be a fraction between 0 and 1")
		}
	}
	return nil
}
