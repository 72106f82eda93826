package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	money "github.com/rezonia/fatoora/internal/decimal"
)

// Input length limits
const (
	MaxNameLength   = 200
	MaxCityLength   = 200
	MaxStreetLength = 500
)

// Date and time layouts used by the document
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

var vatCategories = map[string]bool{"S": true, "Z": true, "E": true, "O": true}

// ValidCurrency reports whether code has the shape of an ISO 4217 code
func ValidCurrency(code string) bool {
	return currencyPattern.MatchString(code)
}

// PartyRequest is the construction input for a seller or buyer
type PartyRequest struct {
	Name      string `json:"name"`
	VATNumber string `json:"vat_number,omitempty"`
	Street    string `json:"street,omitempty"`
	City      string `json:"city,omitempty"`
}

// BillingReferenceRequest references the original invoice of a note
type BillingReferenceRequest struct {
	ID        string `json:"id"`
	IssueDate string `json:"issue_date,omitempty"`
}

// LineItemRequest is the construction input for a single line.
// Amounts are decimal strings or JSON numbers.
type LineItemRequest struct {
	Name        string           `json:"name"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	VATRate     *decimal.Decimal `json:"vat_rate,omitempty"`
	VATCategory string           `json:"vat_category,omitempty"`
	Unit        string           `json:"unit,omitempty"`
}

// InvoiceRequest is the typed construction request for NewInvoice
type InvoiceRequest struct {
	ID               string                   `json:"invoice_number"`
	Type             string                   `json:"invoice_type"`
	IssueDate        string                   `json:"issue_date"`
	IssueTime        string                   `json:"issue_time,omitempty"`
	UUID             string                   `json:"uuid,omitempty"`
	Currency         string                   `json:"currency,omitempty"`
	Seller           PartyRequest             `json:"seller"`
	Buyer            PartyRequest             `json:"buyer"`
	Note             string                   `json:"note,omitempty"`
	BillingReference *BillingReferenceRequest `json:"billing_reference,omitempty"`
	InstructionNote  string                   `json:"instruction_note,omitempty"`
	PaymentMeansCode string                   `json:"payment_means_code,omitempty"`
	Items            []LineItemRequest        `json:"items"`
}

type buildOptions struct {
	clock   func() time.Time
	newUUID func() string
}

// Option configures NewInvoice
type Option func(*buildOptions)

// WithClock sets the clock used for a missing issue time
func WithClock(clock func() time.Time) Option {
	return func(o *buildOptions) {
		o.clock = clock
	}
}

// WithUUIDGenerator sets the generator used for a missing document UUID
func WithUUIDGenerator(gen func() string) Option {
	return func(o *buildOptions) {
		o.newUUID = gen
	}
}

// NewInvoice validates req and returns an Invoice.
// Returns *InvalidInvoiceError on the first rejected field.
func NewInvoice(req InvoiceRequest, opts ...Option) (*Invoice, error) {
	o := &buildOptions{
		clock:   time.Now,
		newUUID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(o)
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		return nil, NewInvalidInvoiceError("invoice_number", nil, "BR-01", "invoice number is required")
	}

	if strings.TrimSpace(req.Type) == "" {
		return nil, NewInvalidInvoiceError("invoice_type", nil, "BR-03", "invoice type is required")
	}
	docType, err := ParseDocumentType(req.Type)
	if err != nil {
		return nil, NewInvalidInvoiceError("invoice_type", req.Type, "BR-03", err.Error())
	}

	if err := checkDate("issue_date", req.IssueDate, "BR-02"); err != nil {
		return nil, err
	}

	issueTime := req.IssueTime
	if issueTime == "" {
		issueTime = o.clock().UTC().Format(TimeLayout)
	} else if _, err := time.Parse(TimeLayout, issueTime); err != nil {
		return nil, NewInvalidInvoiceError("issue_time", issueTime, "format", "issue time must be HH:MM:SS")
	}

	docUUID := req.UUID
	if docUUID == "" {
		docUUID = o.newUUID()
	} else if _, err := uuid.Parse(docUUID); err != nil {
		return nil, NewInvalidInvoiceError("uuid", docUUID, "format", "uuid is not a valid UUID")
	}

	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	if !currencyPattern.MatchString(currency) {
		return nil, NewInvalidInvoiceError("currency", currency, "BR-04", "currency must be a 3-letter ISO 4217 code")
	}

	seller, err := newSeller(req.Seller)
	if err != nil {
		return nil, err
	}
	buyer, err := newBuyer(req.Buyer, docType)
	if err != nil {
		return nil, err
	}

	var billingRef *BillingReference
	if req.BillingReference != nil && strings.TrimSpace(req.BillingReference.ID) != "" {
		if req.BillingReference.IssueDate != "" {
			if err := checkDate("billing_reference.issue_date", req.BillingReference.IssueDate, "format"); err != nil {
				return nil, err
			}
		}
		billingRef = &BillingReference{
			ID:        strings.TrimSpace(req.BillingReference.ID),
			IssueDate: req.BillingReference.IssueDate,
		}
	}
	if docType.IsNote() && billingRef == nil {
		return nil, NewInvalidInvoiceError("billing_reference", nil, "BR-15",
			"billing reference to the original invoice is required for credit and debit notes")
	}

	if len(req.Items) == 0 {
		return nil, NewInvalidInvoiceError("items", nil, "BR-10", "at least one line item is required")
	}
	lines := make([]LineItem, 0, len(req.Items))
	for i, item := range req.Items {
		line, err := newLineItem(i, item)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	paymentMeansCode := req.PaymentMeansCode
	if paymentMeansCode == "" && req.InstructionNote != "" {
		paymentMeansCode = DefaultPaymentMeansCode
	}

	return &Invoice{
		ID:               id,
		UUID:             docUUID,
		Type:             docType,
		IssueDate:        req.IssueDate,
		IssueTime:        issueTime,
		Currency:         currency,
		Seller:           seller,
		Buyer:            buyer,
		Note:             req.Note,
		BillingReference: billingRef,
		InstructionNote:  req.InstructionNote,
		PaymentMeansCode: paymentMeansCode,
		lines:            lines,
	}, nil
}

// checkAmounts rejects line amounts outside the money bounds before any
// arithmetic touches them. The value is left out of the error since
// rendering it costs as much as rounding it.
func checkAmounts(i int, quantity, unitPrice, rate decimal.Decimal) error {
	for _, a := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"quantity", quantity},
		{"unit_price", unitPrice},
		{"vat_rate", rate},
	} {
		if !money.InRange(a.value) {
			return NewInvalidInvoiceError("items["+strconv.Itoa(i)+"]."+a.name, nil, "range",
				fmt.Sprintf("%s is out of range", a.name))
		}
	}
	return nil
}

func checkDate(field, value, rule string) error {
	if value == "" {
		return NewInvalidInvoiceError(field, nil, rule, "date is required")
	}
	if _, err := time.Parse(DateLayout, value); err != nil {
		return NewInvalidInvoiceError(field, value, rule, "date must be a valid YYYY-MM-DD date")
	}
	return nil
}

func checkLength(field, value string, limit int) error {
	if n := len([]rune(value)); n > limit {
		return NewInvalidInvoiceError(field, n, "max_length", "value exceeds maximum length")
	}
	return nil
}

func newSeller(req PartyRequest) (Party, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Party{}, NewInvalidInvoiceError("seller.name", nil, "BR-05", "seller name is required")
	}
	if err := checkLength("seller.name", name, MaxNameLength); err != nil {
		return Party{}, err
	}
	if problems := ValidateVATNumber(req.VATNumber); len(problems) > 0 {
		return Party{}, NewInvalidInvoiceError("seller.vat_number", req.VATNumber, "BR-06", strings.Join(problems, "; "))
	}
	if strings.TrimSpace(req.Street) == "" {
		return Party{}, NewInvalidInvoiceError("seller.street", nil, "required", "seller street is required")
	}
	if err := checkLength("seller.street", req.Street, MaxStreetLength); err != nil {
		return Party{}, err
	}
	if strings.TrimSpace(req.City) == "" {
		return Party{}, NewInvalidInvoiceError("seller.city", nil, "required", "seller city is required")
	}
	if err := checkLength("seller.city", req.City, MaxCityLength); err != nil {
		return Party{}, err
	}
	return Party{
		Name:        name,
		VATNumber:   req.VATNumber,
		Street:      req.Street,
		City:        req.City,
		CountryCode: DefaultCountryCode,
	}, nil
}

func newBuyer(req PartyRequest, docType DocumentType) (Party, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Party{}, NewInvalidInvoiceError("buyer.name", nil, "BR-07", "buyer name is required")
	}
	if err := checkLength("buyer.name", name, MaxNameLength); err != nil {
		return Party{}, err
	}
	if req.VATNumber == "" {
		if docType.IsStandard() {
			return Party{}, NewInvalidInvoiceError("buyer.vat_number", nil, "BR-08",
				"buyer VAT number is required for standard documents")
		}
	} else if problems := ValidateVATNumber(req.VATNumber); len(problems) > 0 {
		return Party{}, NewInvalidInvoiceError("buyer.vat_number", req.VATNumber, "format", strings.Join(problems, "; "))
	}
	if err := checkLength("buyer.street", req.Street, MaxStreetLength); err != nil {
		return Party{}, err
	}
	if err := checkLength("buyer.city", req.City, MaxCityLength); err != nil {
		return Party{}, err
	}
	return Party{
		Name:        name,
		VATNumber:   req.VATNumber,
		Street:      req.Street,
		City:        req.City,
		CountryCode: DefaultCountryCode,
	}, nil
}

func newLineItem(i int, req LineItemRequest) (LineItem, error) {
	field := func(name string) string {
		return "items[" + strconv.Itoa(i) + "]." + name
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return LineItem{}, NewInvalidInvoiceError(field("name"), nil, "required", "line item name is required")
	}
	if err := checkLength(field("name"), name, MaxNameLength); err != nil {
		return LineItem{}, err
	}
	rate := DefaultVATRate
	if req.VATRate != nil {
		rate = *req.VATRate
	}
	if err := checkAmounts(i, req.Quantity, req.UnitPrice, rate); err != nil {
		return LineItem{}, err
	}
	if !money.IsPositive(req.Quantity) {
		return LineItem{}, NewInvalidInvoiceError(field("quantity"), req.Quantity.String(), "positive", "quantity must be greater than zero")
	}
	if !money.IsNonNegative(req.UnitPrice) {
		return LineItem{}, NewInvalidInvoiceError(field("unit_price"), req.UnitPrice.String(), "non_negative", "unit price must not be negative")
	}

	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return LineItem{}, NewInvalidInvoiceError(field("vat_rate"), rate.String(), "range", "VAT rate must be a fraction between 0 and 1")
	}

	category := strings.ToUpper(req.VATCategory)
	if category == "" {
		category = DefaultVATCategory
	}
	if !vatCategories[category] {
		return LineItem{}, NewInvalidInvoiceError(field("vat_category"), req.VATCategory, "enum", "VAT category must be one of S, Z, E, O")
	}

	unit := req.Unit
	if unit == "" {
		unit = DefaultUnit
	}

	return LineItem{
		Number:      i + 1,
		Name:        name,
		Unit:        unit,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		VATRate:     rate,
		VATCategory: category,
	}, nil
}
