package entities

import (
	"time"
)

// InvoiceSequence is the per-(year, month) numbering bucket. LastNumber only
// ever grows; the unique index serialises concurrent allocations.
type InvoiceSequence struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Year       int       `json:"year" gorm:"not null;uniqueIndex:idx_invoice_sequences_year_month"`
	Month      int       `json:"month" gorm:"not null;uniqueIndex:idx_invoice_sequences_year_month"`
	LastNumber int       `json:"last_number" gorm:"not null;default:0"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (InvoiceSequence) TableName() string {
	return "invoice_sequences"
}
