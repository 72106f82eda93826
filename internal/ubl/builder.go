package ubl

import (
	"errors"
	"strconv"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	money "github.com/rezonia/fatoora/internal/decimal"
	"github.com/rezonia/fatoora/internal/model"
	"github.com/rezonia/fatoora/internal/tlv"
)

// Build renders inv as an indented UBL 2.1 document with its Phase-1 QR embedded.
// The same Invoice always renders to the same bytes.
func Build(inv *model.Invoice) ([]byte, error) {
	doc, err := BuildDocument(inv)
	if err != nil {
		return nil, err
	}
	return doc.Bytes()
}

// BuildDocument renders inv as a Document
func BuildDocument(inv *model.Invoice) (*Document, error) {
	if err := inv.Validate(); err != nil {
		return nil, err
	}

	qr, err := Phase1QR(inv)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("Invoice")
	root.CreateAttr("xmlns", NamespaceInvoice)
	root.CreateAttr("xmlns:cac", NamespaceCAC)
	root.CreateAttr("xmlns:cbc", NamespaceCBC)
	root.CreateAttr("xmlns:ext", NamespaceEXT)

	addText(root, "cbc:ProfileID", ProfileID)
	addText(root, "cbc:ID", inv.ID)
	addText(root, "cbc:UUID", inv.UUID)
	addText(root, "cbc:IssueDate", inv.IssueDate)
	addText(root, "cbc:IssueTime", inv.IssueTime)
	addText(root, "cbc:InvoiceTypeCode", inv.Type.TypeCode()).CreateAttr("name", inv.Type.SubtypeCode())
	addText(root, "cbc:DocumentCurrencyCode", inv.Currency)
	addText(root, "cbc:TaxCurrencyCode", inv.Currency)
	if inv.Note != "" {
		addText(root, "cbc:Note", inv.Note)
	}

	if ref := inv.BillingReference; ref != nil {
		docRef := root.CreateElement("cac:BillingReference").CreateElement("cac:InvoiceDocumentReference")
		addText(docRef, "cbc:ID", ref.ID)
		if ref.IssueDate != "" {
			addText(docRef, "cbc:IssueDate", ref.IssueDate)
		}
	}

	root.AddChild(NewQRReference(qr))

	addParty(root, "cac:AccountingSupplierParty", inv.Seller)
	addParty(root, "cac:AccountingCustomerParty", inv.Buyer)

	if inv.HasPaymentMeans() {
		means := root.CreateElement("cac:PaymentMeans")
		addText(means, "cbc:PaymentMeansCode", inv.PaymentMeansCode)
		if inv.InstructionNote != "" {
			addText(means, "cbc:InstructionNote", inv.InstructionNote)
		}
	}

	totals := inv.Totals()

	taxTotal := root.CreateElement("cac:TaxTotal")
	addAmount(taxTotal, "cbc:TaxAmount", totals.TaxTotal, inv.Currency)
	for _, group := range inv.TaxGroups() {
		subtotal := taxTotal.CreateElement("cac:TaxSubtotal")
		addAmount(subtotal, "cbc:TaxableAmount", group.TaxableAmount, inv.Currency)
		addAmount(subtotal, "cbc:TaxAmount", group.TaxAmount, inv.Currency)
		addTaxCategory(subtotal, "cac:TaxCategory", group.Category, group.Rate)
	}

	monetary := root.CreateElement("cac:LegalMonetaryTotal")
	addAmount(monetary, "cbc:LineExtensionAmount", totals.TaxExclusive, inv.Currency)
	addAmount(monetary, "cbc:TaxExclusiveAmount", totals.TaxExclusive, inv.Currency)
	addAmount(monetary, "cbc:TaxInclusiveAmount", totals.TaxInclusive, inv.Currency)
	addAmount(monetary, "cbc:PayableAmount", totals.TaxInclusive, inv.Currency)

	for i, line := range inv.Lines() {
		addLine(root, i+1, line, inv.Currency)
	}

	return &Document{doc: doc}, nil
}

// Phase1Payload returns the tag 1-5 QR payload for inv
func Phase1Payload(inv *model.Invoice) (tlv.Payload, error) {
	if inv == nil {
		return nil, model.NewInvalidInvoiceError("invoice", nil, "required", "invoice is nil")
	}
	totals := inv.Totals()
	payload := tlv.Phase1(
		inv.Seller.Name,
		inv.Seller.VATNumber,
		inv.Timestamp(),
		money.Format(totals.TaxInclusive),
		money.Format(totals.TaxTotal),
	)
	if _, err := tlv.Encode(payload); err != nil {
		return nil, wrapQRError(err)
	}
	return payload, nil
}

// Phase1QR returns the base64 tag 1-5 QR payload for inv
func Phase1QR(inv *model.Invoice) (string, error) {
	payload, err := Phase1Payload(inv)
	if err != nil {
		return "", err
	}
	qr, err := tlv.EncodeBase64(payload)
	if err != nil {
		return "", wrapQRError(err)
	}
	return qr, nil
}

func wrapQRError(err error) error {
	var tooLarge *tlv.PayloadTooLargeError
	if errors.As(err, &tooLarge) {
		invalid := model.NewInvalidInvoiceError("qr."+tooLarge.Tag.String(), tooLarge.Size, "max_length",
			"value does not fit in a QR field")
		invalid.Cause = err
		return invalid
	}
	return err
}

// NewQRReference builds the AdditionalDocumentReference element carrying qr
func NewQRReference(qr string) *etree.Element {
	ref := etree.NewElement("cac:AdditionalDocumentReference")
	addText(ref, "cbc:ID", QRReferenceID)
	embedded := addText(ref.CreateElement("cac:Attachment"), "cbc:EmbeddedDocumentBinaryObject", qr)
	embedded.CreateAttr("mimeCode", "text/plain")
	return ref
}

func addText(parent *etree.Element, tag, text string) *etree.Element {
	el := parent.CreateElement(tag)
	el.SetText(text)
	return el
}

func addAmount(parent *etree.Element, tag string, amount decimal.Decimal, currency string) *etree.Element {
	el := addText(parent, tag, money.Format(amount))
	el.CreateAttr("currencyID", currency)
	return el
}

func addParty(parent *etree.Element, tag string, p model.Party) {
	party := parent.CreateElement(tag).CreateElement("cac:Party")

	postal := party.CreateElement("cac:PostalAddress")
	if p.Street != "" {
		addText(postal, "cbc:StreetName", p.Street)
	}
	if p.City != "" {
		addText(postal, "cbc:CityName", p.City)
	}
	country := p.CountryCode
	if country == "" {
		country = model.DefaultCountryCode
	}
	addText(postal.CreateElement("cac:Country"), "cbc:IdentificationCode", country)

	if p.VATNumber != "" {
		scheme := party.CreateElement("cac:PartyTaxScheme")
		addText(scheme, "cbc:CompanyID", p.VATNumber)
		addText(scheme.CreateElement("cac:TaxScheme"), "cbc:ID", "VAT")
	}

	addText(party.CreateElement("cac:PartyLegalEntity"), "cbc:RegistrationName", p.Name)
}

func addTaxCategory(parent *etree.Element, tag, category string, rate decimal.Decimal) {
	cat := parent.CreateElement(tag)
	addText(cat, "cbc:ID", category)
	addText(cat, "cbc:Percent", money.Percent(rate))
	addText(cat.CreateElement("cac:TaxScheme"), "cbc:ID", "VAT")
}

func addLine(parent *etree.Element, number int, line model.LineItem, currency string) {
	el := parent.CreateElement("cac:InvoiceLine")
	addText(el, "cbc:ID", strconv.Itoa(number))
	unit := line.Unit
	if unit == "" {
		unit = model.DefaultUnit
	}
	addText(el, "cbc:InvoicedQuantity", line.Quantity.String()).CreateAttr("unitCode", unit)
	addAmount(el, "cbc:LineExtensionAmount", line.ExtensionAmount(), currency)

	tax := el.CreateElement("cac:TaxTotal")
	addAmount(tax, "cbc:TaxAmount", line.TaxAmount(), currency)
	addAmount(tax, "cbc:RoundingAmount", line.InclusiveAmount(), currency)

	item := el.CreateElement("cac:Item")
	addText(item, "cbc:Name", line.Name)
	addTaxCategory(item, "cac:ClassifiedTaxCategory", line.VATCategory, line.VATRate)

	price := addText(el.CreateElement("cac:Price"), "cbc:PriceAmount", formatPrice(line.UnitPrice))
	price.CreateAttr("currencyID", currency)
}

// formatPrice renders at least 2 fractional digits, and more only when
// rounding to 2 would change the value, so line amounts recompute exactly
func formatPrice(d decimal.Decimal) string {
	places := int32(money.Places)
	for !d.Round(places).Equal(d) {
		places++
	}
	return d.StringFixed(places)
}
