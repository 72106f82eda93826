package validation

import (
	"fmt"
	"strings"
	"time"

	money "github.com/rezonia/fatoora/internal/decimal"
	"github.com/rezonia/fatoora/internal/model"
	"github.com/rezonia/fatoora/internal/tlv"
	"github.com/rezonia/fatoora/internal/ubl"
)

// Document paths shared by several rules
const (
	pathSeller          = "cac:AccountingSupplierParty/cac:Party"
	pathBuyer           = "cac:AccountingCustomerParty/cac:Party"
	pathRegistration    = "/cac:PartyLegalEntity/cbc:RegistrationName"
	pathCompanyID       = "/cac:PartyTaxScheme/cbc:CompanyID"
	pathStreet          = "/cac:PostalAddress/cbc:StreetName"
	pathTaxAmount       = "cac:TaxTotal/cbc:TaxAmount"
	pathTaxExclusive    = "cac:LegalMonetaryTotal/cbc:TaxExclusiveAmount"
	pathTaxInclusive    = "cac:LegalMonetaryTotal/cbc:TaxInclusiveAmount"
	pathPayable         = "cac:LegalMonetaryTotal/cbc:PayableAmount"
	pathBillingRef      = "cac:BillingReference/cac:InvoiceDocumentReference/cbc:ID"
	pathInstructionNote = "cac:PaymentMeans/cbc:InstructionNote"
)

var validTypeCodes = map[string]bool{
	model.TypeCodeInvoice:    true,
	model.TypeCodeCreditNote: true,
	model.TypeCodeDebitNote:  true,
}

// Outcome holds what a single rule found
type Outcome struct {
	Errors   []string
	Warnings []string
}

// Errorf records an error
func (o *Outcome) Errorf(format string, args ...interface{}) {
	o.Errors = append(o.Errors, fmt.Sprintf(format, args...))
}

// Warnf records a warning
func (o *Outcome) Warnf(format string, args ...interface{}) {
	o.Warnings = append(o.Warnings, fmt.Sprintf(format, args...))
}

// Passed reports whether the rule found nothing at all
func (o Outcome) Passed() bool {
	return len(o.Errors) == 0 && len(o.Warnings) == 0
}

// Rule is one business rule of the validation table
type Rule interface {
	// ID returns the rule identifier, e.g. "BR-01"
	ID() string

	// Description returns a one-line summary of the rule
	Description() string

	// Evaluate runs the rule against a parsed document
	Evaluate(doc *ubl.Document) Outcome
}

type rule struct {
	id          string
	description string
	check       func(doc *ubl.Document, out *Outcome)
}

func (r rule) ID() string { return r.id }
func (r rule) Description() string { return r.description }

func (r rule) Evaluate(doc *ubl.Document) Outcome {
	var out Outcome
	r.check(doc, &out)
	return out
}

// table is evaluated in order; its length is the reported ChecksRun
var table = []Rule{
	rule{"BR-01", "Invoice ID is mandatory", checkInvoiceID},
	rule{"BR-02", "Issue date is mandatory and formatted YYYY-MM-DD", checkIssueDate},
	rule{"BR-03", "Invoice type code and subtype are valid", checkTypeCode},
	rule{"BR-04", "Document currency code is mandatory", checkCurrency},
	rule{"BR-05", "Seller name is mandatory", checkSellerName},
	rule{"BR-06", "Seller VAT number is mandatory and well-formed", checkSellerVAT},
	rule{"BR-07", "Buyer name is mandatory", checkBuyerName},
	rule{"BR-08", "Buyer VAT number is mandatory for standard documents", checkBuyerVAT},
	rule{"BR-09", "QR payload is present and decodable", checkQR},
	rule{"BR-10", "At least one invoice line", checkLinesPresent},
	rule{"BR-11", "Line extension amount equals quantity times price", checkLineMath},
	rule{"BR-12", "Tax total is mandatory", checkTaxTotal},
	rule{"BR-13", "Payable amount is mandatory", checkPayable},
	rule{"BR-14", "Tax inclusive amount equals tax exclusive amount plus tax", checkTotals},
	rule{"BR-15", "Credit and debit notes reference the original invoice", checkBillingReference},
	rule{"BR-16", "Credit and debit notes carry an instruction note", checkInstructionNote},
}

// Rules returns the rule table in evaluation order
func Rules() []Rule {
	out := make([]Rule, len(table))
	copy(out, table)
	return out
}

func checkInvoiceID(doc *ubl.Document, out *Outcome) {
	if doc.Text("cbc:ID") == "" {
		out.Errorf("Invoice ID (cbc:ID) is mandatory")
	}
	if doc.Text("cbc:UUID") == "" {
		out.Warnf("Invoice UUID (cbc:UUID) is recommended")
	}
}

func checkIssueDate(doc *ubl.Document, out *Outcome) {
	date := doc.Text("cbc:IssueDate")
	if date == "" {
		out.Errorf("Issue Date (cbc:IssueDate) is mandatory")
		return
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		out.Errorf("Issue Date must be a valid YYYY-MM-DD date, got: %s", date)
	}
}

func checkTypeCode(doc *ubl.Document, out *Outcome) {
	code := doc.Text("cbc:InvoiceTypeCode")
	if code == "" {
		out.Errorf("Invoice Type Code is mandatory")
		return
	}
	if !validTypeCodes[code] {
		out.Errorf("Invalid Invoice Type Code: %s", code)
	}

	subtype := subtypeOf(doc)
	switch {
	case subtype == "":
		out.Errorf("Invoice subtype (InvoiceTypeCode name attribute) is mandatory")
	case len(subtype) != 7 || !isDigits(subtype):
		out.Errorf("Invoice subtype must be 7 digits, got: %s", subtype)
	case !strings.HasPrefix(subtype, "01") && !strings.HasPrefix(subtype, "02"):
		out.Errorf("Invoice subtype must start with 01 (standard) or 02 (simplified), got: %s", subtype)
	}
}

func checkCurrency(doc *ubl.Document, out *Outcome) {
	currency := doc.Text("cbc:DocumentCurrencyCode")
	if currency == "" {
		out.Errorf("Document Currency Code is mandatory")
		return
	}
	if !model.ValidCurrency(currency) {
		out.Errorf("Document Currency Code must be a 3-letter ISO 4217 code, got: %s", currency)
	}
}

func checkSellerName(doc *ubl.Document, out *Outcome) {
	if doc.Text(pathSeller+pathRegistration) == "" {
		out.Errorf("Seller name is mandatory")
	}
	if doc.Text(pathSeller+pathStreet) == "" {
		out.Warnf("Seller street address is recommended")
	}
}

func checkSellerVAT(doc *ubl.Document, out *Outcome) {
	vat := doc.Text(pathSeller + pathCompanyID)
	if vat == "" {
		out.Errorf("Seller VAT number is mandatory")
		return
	}
	for _, problem := range model.ValidateVATNumber(vat) {
		out.Errorf("Seller VAT - %s", problem)
	}
}

func checkBuyerName(doc *ubl.Document, out *Outcome) {
	if doc.Text(pathBuyer+pathRegistration) == "" {
		out.Errorf("Buyer name is mandatory")
	}
}

func checkBuyerVAT(doc *ubl.Document, out *Outcome) {
	if !strings.HasPrefix(subtypeOf(doc), "01") {
		return
	}
	if doc.Text(pathBuyer+pathCompanyID) == "" {
		out.Errorf("Buyer VAT number is mandatory for standard (B2B) invoices")
	}
}

func checkQR(doc *ubl.Document, out *Outcome) {
	qr := doc.EmbeddedQR()
	if qr == "" {
		out.Errorf("QR code (AdditionalDocumentReference ID=QR) is mandatory")
		return
	}
	payload, err := tlv.DecodeBase64(qr)
	if err != nil {
		out.Errorf("QR code payload is malformed: %v", err)
		return
	}
	var missing []string
	for _, tag := range tlv.RequiredTags {
		if _, ok := payload.Get(tag); !ok {
			missing = append(missing, tag.String())
		}
	}
	if len(missing) > 0 {
		out.Errorf("QR code payload is missing required fields: %s", strings.Join(missing, ", "))
	}
}

func checkLinesPresent(doc *ubl.Document, out *Outcome) {
	if len(doc.FindAll("cac:InvoiceLine")) == 0 {
		out.Errorf("Invoice must have at least one line item")
	}
}

func checkLineMath(doc *ubl.Document, out *Outcome) {
	for i, line := range doc.FindAll("cac:InvoiceLine") {
		n := i + 1
		qtyText := ubl.TextIn(line, "cbc:InvoicedQuantity")
		priceText := ubl.TextIn(line, "cac:Price/cbc:PriceAmount")
		extText := ubl.TextIn(line, "cbc:LineExtensionAmount")
		if qtyText == "" || priceText == "" || extText == "" {
			out.Warnf("Could not validate math on line %d: quantity, price or line amount missing", n)
			continue
		}

		qty, errQty := money.FromString(qtyText)
		price, errPrice := money.FromString(priceText)
		ext, errExt := money.FromString(extText)
		if errQty != nil || errPrice != nil || errExt != nil {
			out.Warnf("Could not validate math on line %d", n)
			continue
		}

		expected := money.Mul(qty, price)
		if !money.WithinTolerance(expected, ext) {
			out.Errorf("Line %d total mismatch: %s x %s = %s, got %s",
				n, qty.String(), price.String(), money.Format(expected), ext.String())
		}
	}
}

func checkTaxTotal(doc *ubl.Document, out *Outcome) {
	if doc.Text(pathTaxAmount) == "" {
		out.Errorf("Tax total is mandatory")
	}
}

func checkPayable(doc *ubl.Document, out *Outcome) {
	if doc.Text(pathPayable) == "" {
		out.Errorf("Payable amount is mandatory")
	}
}

func checkTotals(doc *ubl.Document, out *Outcome) {
	exclText := doc.Text(pathTaxExclusive)
	taxText := doc.Text(pathTaxAmount)
	inclText := doc.Text(pathTaxInclusive)
	if exclText == "" || taxText == "" || inclText == "" {
		out.Warnf("Could not cross-check invoice totals: tax exclusive, tax or tax inclusive amount missing")
		return
	}

	excl, errExcl := money.FromString(exclText)
	tax, errTax := money.FromString(taxText)
	incl, errIncl := money.FromString(inclText)
	if errExcl != nil || errTax != nil || errIncl != nil {
		out.Warnf("Could not cross-check invoice totals")
		return
	}

	expected := money.Round(excl.Add(tax))
	if !money.WithinTolerance(expected, incl) {
		out.Errorf("Tax inclusive amount mismatch: %s + %s = %s, got %s",
			excl.String(), tax.String(), money.Format(expected), incl.String())
	}
}

func checkBillingReference(doc *ubl.Document, out *Outcome) {
	if !isNote(doc) {
		return
	}
	if doc.Text(pathBillingRef) == "" {
		out.Errorf("Billing reference to the original invoice is mandatory for credit and debit notes")
	}
}

func checkInstructionNote(doc *ubl.Document, out *Outcome) {
	if !isNote(doc) {
		return
	}
	if doc.Text(pathInstructionNote) == "" {
		out.Warnf("Instruction note (reason for issuance) is recommended for credit and debit notes")
	}
}

func subtypeOf(doc *ubl.Document) string {
	return strings.TrimSpace(doc.Attr("cbc:InvoiceTypeCode", "name"))
}

func isNote(doc *ubl.Document) bool {
	code := doc.Text("cbc:InvoiceTypeCode")
	return code == model.TypeCodeCreditNote || code == model.TypeCodeDebitNote
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
