package services

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/solodesk/invoice-module/apperrors"
	"github.com/solodesk/invoice-module/entities"
)

// NumberingService is the numbering authority: it hands out unique
// FV/YYYY/MM/NNNN identifiers from the per-month sequence table. All methods
// operate on the caller's transaction so that the sequence bump commits or
// rolls back together with the invoice row.
type NumberingService struct {
	log zerolog.Logger
}

func NewNumberingService(logger zerolog.Logger) *NumberingService {
	return &NumberingService{
		log: logger.With().Str("component", "numbering-service").Logger(),
	}
}

// FormatInvoiceNumber renders FV/YYYY/MM/NNNN with the sequence zero-padded
// to at least four digits (wider numbers keep all their digits).
func FormatInvoiceNumber(year, month, sequence int) string {
	return fmt.Sprintf("FV/%04d/%02d/%04d", year, month, sequence)
}

// AllocateNumber increments the (year, month) bucket of issueDate inside tx
// and returns the formatted number. Gaps are possible when the surrounding
// transaction rolls back; that is preferred over reusing a number.
func (s *NumberingService) AllocateNumber(tx *gorm.DB, issueDate string) (string, error) {
	year, month, err := entities.DateYearMonth(issueDate)
	if err != nil {
		return "", err
	}
	if year < 2000 || year > 9999 {
		return "", apperrors.Validation("invalid issue date",
			apperrors.FieldIssue{Field: "issue_date", Message: "year must be between 2000 and 9999"})
	}

	var seq entities.InvoiceSequence
	err = tx.Where("year = ? AND month = ?", year, month).First(&seq).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		seq = entities.InvoiceSequence{Year: year, Month: month, LastNumber: 1}
		if err := tx.Create(&seq).Error; err != nil {
			return "", translateSequenceError(err)
		}
	case err != nil:
		return "", apperrors.Wrap(apperrors.KindIO, "failed to read invoice sequence", err)
	default:
		if err := tx.Model(&seq).Update("last_number", gorm.Expr("last_number + ?", 1)).Error; err != nil {
			return "", translateSequenceError(err)
		}
		if err := tx.First(&seq, seq.ID).Error; err != nil {
			return "", apperrors.Wrap(apperrors.KindIO, "failed to reload invoice sequence", err)
		}
	}

	number := FormatInvoiceNumber(year, month, seq.LastNumber)
	if err := s.CheckAvailable(tx, number, 0); err != nil {
		return "", err
	}
	s.log.Debug().
		Int("year", year).
		Int("month", month).
		Int("sequence", seq.LastNumber).
		Str("invoice_number", number).
		Msg("allocated invoice number")
	return number, nil
}

// NormalizeExplicitNumber prepares a caller-supplied number: trimmed,
// non-empty, capped at the column width.
func (s *NumberingService) NormalizeExplicitNumber(number string) (string, error) {
	return entities.TrimRequired("invoice_number", number, 100)
}

// CheckAvailable confirms that no other invoice carries number. excludeID
// skips the invoice being updated.
func (s *NumberingService) CheckAvailable(tx *gorm.DB, number string, excludeID uint) error {
	query := tx.Model(&entities.Invoice{}).Where("invoice_number = ?", number)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.KindIO, "failed to check invoice number uniqueness", err)
	}
	if count > 0 {
		return apperrors.Newf(apperrors.KindConflict, "invoice number %q already exists", number)
	}
	return nil
}

func translateSequenceError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost the race on the (year, month) unique index; the caller's
		// busy-retry wrapper restarts the whole transaction.
		return apperrors.Wrap(apperrors.KindConflict, "concurrent sequence allocation", err)
	}
	return apperrors.Wrap(apperrors.KindIO, "failed to update invoice sequence", err)
}
