package entities

import (
	"time"

	"gorm.io/datatypes"

	"github.com/solodesk/invoice-module/apperrors"
	"github.com/solodesk/invoice-module/money"
)

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusIssued    InvoiceStatus = "issued"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusIssued, InvoiceStatusCancelled:
		return true
	}
	return false
}

// PaymentMethod enumerates how an invoice is settled.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodOther        PaymentMethod = "other"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCard, PaymentMethodOther:
		return true
	}
	return false
}

// Invoice is a VAT invoice. Monetary totals are integers in grosze and always
// satisfy total = subtotal + tax. XMLPath and PDFPath are set only after the
// corresponding artifact has been written (and, for XML, schema-validated).
type Invoice struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	PublicID        string         `json:"public_id" gorm:"size:36;not null;uniqueIndex"`
	InvoiceNumber   string         `json:"invoice_number" gorm:"size:100;not null;uniqueIndex"`
	IssueDate       string         `json:"issue_date" gorm:"size:10;not null;index"`
	SaleDate        string         `json:"sale_date" gorm:"size:10;not null"`
	ClientID        uint           `json:"client_id" gorm:"not null;index"`
	Client          *Client        `json:"client,omitempty" gorm:"foreignKey:ClientID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Status          InvoiceStatus  `json:"status" gorm:"size:20;not null;default:'draft'"`
	PaymentMethod   PaymentMethod  `json:"payment_method" gorm:"size:20;not null;default:'bank_transfer'"`
	PaymentDeadline string         `json:"payment_deadline,omitempty" gorm:"size:10"`
	Currency        string         `json:"currency" gorm:"size:8;not null;default:'PLN'"`
	ExchangeRate    *float64       `json:"exchange_rate,omitempty"`
	Notes           string         `json:"notes,omitempty" gorm:"size:2000"`
	SubtotalGrosze  int64          `json:"subtotal_grosze" gorm:"not null"`
	TaxGrosze       int64          `json:"tax_grosze" gorm:"not null"`
	TotalGrosze     int64          `json:"total_grosze" gorm:"not null"`
	XMLPath         string         `json:"xml_path,omitempty" gorm:"size:512"`
	PDFPath         string         `json:"pdf_path,omitempty" gorm:"size:512"`
	Metadata        datatypes.JSON `json:"metadata,omitempty"`
	Items           []InvoiceItem  `json:"items,omitempty" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (Invoice) TableName() string {
	return "invoices"
}

// InvoiceItem is a single line of an invoice. Quantity is kept as the
// canonical decimal string (at most three fractional digits); the VAT rate
// tag is stored as text and parsed back with money.ParseVATRate.
type InvoiceItem struct {
	ID              uint          `json:"id" gorm:"primaryKey"`
	InvoiceID       uint          `json:"invoice_id" gorm:"not null;index"`
	Name            string        `json:"name" gorm:"size:255;not null"`
	Quantity        string        `json:"quantity" gorm:"size:32;not null"`
	Unit            string        `json:"unit" gorm:"size:32;not null"`
	UnitPriceGrosze int64         `json:"unit_price_grosze" gorm:"not null"`
	VATRate         money.VATRate `json:"vat_rate" gorm:"size:8;not null"`
	NetGrosze       int64         `json:"net_grosze" gorm:"not null"`
	VATGrosze       int64         `json:"vat_grosze" gorm:"not null"`
	GrossGrosze     int64         `json:"gross_grosze" gorm:"not null"`
	CreatedAt       time.Time     `json:"created_at"`
}

func (InvoiceItem) TableName() string {
	return "invoice_items"
}

// InvoiceItemInput is one requested line. Quantity accepts a JSON string or
// number; the unit price is always an integer amount of grosze.
type InvoiceItemInput struct {
	Name            string        `json:"name"`
	Quantity        DecimalText   `json:"quantity"`
	Unit            string        `json:"unit"`
	UnitPriceGrosze int64         `json:"unit_price_grosze"`
	VATRate         money.VATRate `json:"vat_rate"`
}

// ToItem validates the input and computes the per-line amounts.
func (in *InvoiceItemInput) ToItem() (*InvoiceItem, error) {
	name, err := TrimRequired("name", in.Name, MaxNameLength)
	if err != nil {
		return nil, err
	}
	unit, err := TrimRequired("unit", in.Unit, MaxUnitLength)
	if err != nil {
		return nil, err
	}
	quantityMilli, err := money.ParseQuantity(in.Quantity.String())
	if err != nil {
		return nil, err
	}
	canonicalQty, err := money.NormalizeQuantity(in.Quantity.String())
	if err != nil {
		return nil, err
	}
	if in.UnitPriceGrosze < 0 {
		return nil, apperrors.Validation("invalid unit price",
			apperrors.FieldIssue{Field: "unit_price_grosze", Message: "must not be negative"})
	}
	if !in.VATRate.Valid() {
		return nil, apperrors.Validation("invalid VAT rate",
			apperrors.FieldIssue{Field: "vat_rate", Message: "must be one of 23, 8, 5, 0, ZW, NP"})
	}
	amounts, err := money.LineAmounts(in.UnitPriceGrosze, quantityMilli, in.VATRate)
	if err != nil {
		return nil, err
	}
	return &InvoiceItem{
		Name:            name,
		Quantity:        canonicalQty,
		Unit:            unit,
		UnitPriceGrosze: in.UnitPriceGrosze,
		VATRate:         in.VATRate,
		NetGrosze:       amounts.Net,
		VATGrosze:       amounts.VAT,
		GrossGrosze:     amounts.Gross,
	}, nil
}

// CreateInvoiceRequest is the payload for creating an invoice. InvoiceNumber
// left empty means "allocate from the monthly sequence".
type CreateInvoiceRequest struct {
	InvoiceNumber   string             `json:"invoice_number,omitempty"`
	IssueDate       string             `json:"issue_date"`
	SaleDate        string             `json:"sale_date"`
	ClientID        uint               `json:"client_id"`
	Status          InvoiceStatus      `json:"status,omitempty"`
	PaymentMethod   PaymentMethod      `json:"payment_method,omitempty"`
	PaymentDeadline string             `json:"payment_deadline,omitempty"`
	Currency        string             `json:"currency,omitempty"`
	ExchangeRate    *float64           `json:"exchange_rate,omitempty"`
	Notes           string             `json:"notes,omitempty"`
	Metadata        datatypes.JSON     `json:"metadata,omitempty"`
	Items           []InvoiceItemInput `json:"items"`
}

// UpdateInvoiceRequest carries partial updates for a draft invoice; nil
// fields are left unchanged. When Items is non-nil the existing lines are
// replaced wholesale.
type UpdateInvoiceRequest struct {
	InvoiceNumber   *string            `json:"invoice_number,omitempty"`
	IssueDate       *string            `json:"issue_date,omitempty"`
	SaleDate        *string            `json:"sale_date,omitempty"`
	ClientID        *uint              `json:"client_id,omitempty"`
	PaymentMethod   *PaymentMethod     `json:"payment_method,omitempty"`
	PaymentDeadline *string            `json:"payment_deadline,omitempty"`
	Currency        *string            `json:"currency,omitempty"`
	ExchangeRate    *float64           `json:"exchange_rate,omitempty"`
	Notes           *string            `json:"notes,omitempty"`
	Metadata        datatypes.JSON     `json:"metadata,omitempty"`
	Items           []InvoiceItemInput `json:"items,omitempty"`
}

// InvoiceItemResponse mirrors InvoiceItem with pre-formatted amounts.
type InvoiceItemResponse struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	Quantity        string `json:"quantity"`
	Unit            string `json:"unit"`
	UnitPriceGrosze int64  `json:"unit_price_grosze"`
	UnitPrice       string `json:"unit_price"`
	VATRate         string `json:"vat_rate"`
	NetGrosze       int64  `json:"net_grosze"`
	Net             string `json:"net"`
	VATGrosze       int64  `json:"vat_grosze"`
	VAT             string `json:"vat"`
	GrossGrosze     int64  `json:"gross_grosze"`
	Gross           string `json:"gross"`
}

func (i *InvoiceItem) ToResponse() *InvoiceItemResponse {
	return &InvoiceItemResponse{
		ID:              i.ID,
		Name:            i.Name,
		Quantity:        i.Quantity,
		Unit:            i.Unit,
		UnitPriceGrosze: i.UnitPriceGrosze,
		UnitPrice:       money.FormatMoney(i.UnitPriceGrosze),
		VATRate:         string(i.VATRate),
		NetGrosze:       i.NetGrosze,
		Net:             money.FormatMoney(i.NetGrosze),
		VATGrosze:       i.VATGrosze,
		VAT:             money.FormatMoney(i.VATGrosze),
		GrossGrosze:     i.GrossGrosze,
		Gross:           money.FormatMoney(i.GrossGrosze),
	}
}

// InvoiceResponse is the API representation of an invoice with formatted
// totals for the dashboard.
type InvoiceResponse struct {
	ID              uint                   `json:"id"`
	PublicID        string                 `json:"public_id"`
	InvoiceNumber   string                 `json:"invoice_number"`
	IssueDate       string                 `json:"issue_date"`
	SaleDate        string                 `json:"sale_date"`
	ClientID        uint                   `json:"client_id"`
	Client          *ClientResponse        `json:"client,omitempty"`
	Status          InvoiceStatus          `json:"status"`
	PaymentMethod   PaymentMethod          `json:"payment_method"`
	PaymentDeadline string                 `json:"payment_deadline,omitempty"`
	Currency        string                 `json:"currency"`
	ExchangeRate    *float64               `json:"exchange_rate,omitempty"`
	Notes           string                 `json:"notes,omitempty"`
	SubtotalGrosze  int64                  `json:"subtotal_grosze"`
	Subtotal        string                 `json:"subtotal"`
	TaxGrosze       int64                  `json:"tax_grosze"`
	Tax             string                 `json:"tax"`
	TotalGrosze     int64                  `json:"total_grosze"`
	Total           string                 `json:"total"`
	XMLPath         string                 `json:"xml_path,omitempty"`
	PDFPath         string                 `json:"pdf_path,omitempty"`
	Metadata        datatypes.JSON         `json:"metadata,omitempty"`
	Items           []*InvoiceItemResponse `json:"items,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func (inv *Invoice) ToResponse() *InvoiceResponse {
	resp := &InvoiceResponse{
		ID:              inv.ID,
		PublicID:        inv.PublicID,
		InvoiceNumber:   inv.InvoiceNumber,
		IssueDate:       inv.IssueDate,
		SaleDate:        inv.SaleDate,
		ClientID:        inv.ClientID,
		Status:          inv.Status,
		PaymentMethod:   inv.PaymentMethod,
		PaymentDeadline: inv.PaymentDeadline,
		Currency:        inv.Currency,
		ExchangeRate:    inv.ExchangeRate,
		Notes:           inv.Notes,
		SubtotalGrosze:  inv.SubtotalGrosze,
		Subtotal:        money.FormatMoney(inv.SubtotalGrosze),
		TaxGrosze:       inv.TaxGrosze,
		Tax:             money.FormatMoney(inv.TaxGrosze),
		TotalGrosze:     inv.TotalGrosze,
		Total:           money.FormatMoney(inv.TotalGrosze),
		XMLPath:         inv.XMLPath,
		PDFPath:         inv.PDFPath,
		Metadata:        inv.Metadata,
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
	}
	if inv.Client != nil {
		resp.Client = inv.Client.ToResponse()
	}
	for idx := range inv.Items {
		resp.Items = append(resp.Items, inv.Items[idx].ToResponse())
	}
	return resp
}
