package services

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/solodesk/invoice-module/apperrors"
	"github.com/solodesk/invoice-module/config"
	"github.com/solodesk/invoice-module/entities"
	"github.com/solodesk/invoice-module/money"
)

const createRetryAttempts = 3

// InvoiceService orchestrates invoice creation, updates and issuance. It
// owns the draft -> issued state machine; artifact generation always runs
// after the status change has committed, so a failed artifact step leaves a
// state a retried issue call can heal.
type InvoiceService struct {
	db        *gorm.DB
	seller    config.SellerProfile
	numbering *NumberingService
	fa3       *FA3Service
	pdf       *PDFService
	log       zerolog.Logger
}

func NewInvoiceService(db *gorm.DB, seller config.SellerProfile, numbering *NumberingService, fa3 *FA3Service, pdf *PDFService, logger zerolog.Logger) *InvoiceService {
	return &InvoiceService{
		db:        db,
		seller:    seller,
		numbering: numbering,
		fa3:       fa3,
		pdf:       pdf,
		log:       logger.With().Str("component", "invoice-service").Logger(),
	}
}

// InvoiceFilter narrows ListInvoices. Zero values mean "no constraint".
type InvoiceFilter struct {
	Status   entities.InvoiceStatus
	ClientID uint
	// FromDate/ToDate bound issue_date inclusively (YYYY-MM-DD).
	FromDate string
	ToDate   string
	Limit    int
	Offset   int
}

// CreateInvoice validates the request, computes all amounts, allocates or
// accepts the invoice number and writes invoice, items and sequence bump in
// one transaction.
func (s *InvoiceService) CreateInvoice(ctx context.Context, req *entities.CreateInvoiceRequest) (*entities.Invoice, error) {
	if err := entities.ValidateDate("issue_date", req.IssueDate); err != nil {
		return nil, err
	}
	if err := entities.ValidateDate("sale_date", req.SaleDate); err != nil {
		return nil, err
	}
	deadline := strings.TrimSpace(req.PaymentDeadline)
	if deadline != "" {
		if err := entities.ValidateDate("payment_deadline", deadline); err != nil {
			return nil, err
		}
	}

	status := req.Status
	if status == "" {
		status = entities.InvoiceStatusDraft
	}
	if !status.Valid() {
		return nil, apperrors.Validation("invalid status",
			apperrors.FieldIssue{Field: "status", Message: "must be draft, issued or cancelled"})
	}
	method := req.PaymentMethod
	if method == "" {
		method = entities.PaymentMethodBankTransfer
	}
	if !method.Valid() {
		return nil, apperrors.Validation("invalid payment method",
			apperrors.FieldIssue{Field: "payment_method", Message: "must be cash, bank_transfer, card or other"})
	}
	currency := strings.TrimSpace(req.Currency)
	if currency == "" {
		currency = "PLN"
	}
	if err := entities.ValidateCurrency(currency); err != nil {
		return nil, err
	}
	notes, err := entities.TrimOptional("notes", req.Notes, entities.MaxNotesLength)
	if err != nil {
		return nil, err
	}

	items, totals, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	invoice := &entities.Invoice{
		PublicID:        uuid.NewString(),
		IssueDate:       req.IssueDate,
		SaleDate:        req.SaleDate,
		ClientID:        req.ClientID,
		Status:          status,
		PaymentMethod:   method,
		PaymentDeadline: deadline,
		Currency:        currency,
		ExchangeRate:    req.ExchangeRate,
		Notes:           notes,
		SubtotalGrosze:  totals.Net,
		TaxGrosze:       totals.VAT,
		TotalGrosze:     totals.Gross,
		Metadata:        req.Metadata,
		Items:           items,
	}

	err = withBusyRetry(createRetryAttempts, func() error {
		resetInvoiceIDs(invoice)
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var client entities.Client
			if err := tx.First(&client, req.ClientID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperrors.NotFound("client", req.ClientID)
				}
				return apperrors.Wrap(apperrors.KindIO, "failed to load client", err)
			}

			if req.InvoiceNumber != "" {
				number, err := s.numbering.NormalizeExplicitNumber(req.InvoiceNumber)
				if err != nil {
					return err
				}
				if err := s.numbering.CheckAvailable(tx, number, 0); err != nil {
					return err
				}
				invoice.InvoiceNumber = number
			} else {
				number, err := s.numbering.AllocateNumber(tx, invoice.IssueDate)
				if err != nil {
					return err
				}
				invoice.InvoiceNumber = number
			}
			if err := tx.Create(invoice).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return apperrors.Newf(apperrors.KindConflict, "invoice number %q already exists", invoice.InvoiceNumber)
				}
				return apperrors.Wrap(apperrors.KindIO, "failed to create invoice", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Uint("invoice_id", invoice.ID).
		Str("invoice_number", invoice.InvoiceNumber).
		Int64("total_grosze", invoice.TotalGrosze).
		Msg("invoice created")
	return invoice, nil
}

// GetInvoice loads an invoice with its items (in input order) and client.
func (s *InvoiceService) GetInvoice(ctx context.Context, id uint) (*entities.Invoice, error) {
	var invoice entities.Invoice
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("invoice_items.id") }).
		Preload("Client").
		First(&invoice, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("invoice", id)
		}
		return nil, apperrors.Wrap(apperrors.KindIO, "failed to load invoice", err)
	}
	return &invoice, nil
}

// ListInvoices returns a page of invoices (newest issue date first) and the
// total match count.
func (s *InvoiceService) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]entities.Invoice, int64, error) {
	counting, err := s.applyInvoiceFilter(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	var total int64
	if err := counting.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(apperrors.KindIO, "failed to count invoices", err)
	}

	listing, err := s.applyInvoiceFilter(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	var invoices []entities.Invoice
	err = listing.
		Order("issue_date DESC, id DESC").
		Limit(limit).
		Offset(filter.Offset).
		Preload("Client").
		Find(&invoices).Error
	if err != nil {
		return nil, 0, apperrors.Wrap(apperrors.KindIO, "failed to list invoices", err)
	}
	return invoices, total, nil
}

func (s *InvoiceService) applyInvoiceFilter(ctx context.Context, filter InvoiceFilter) (*gorm.DB, error) {
	query := s.db.WithContext(ctx).Model(&entities.Invoice{})
	if filter.Status != "" {
		if !filter.Status.Valid() {
			return nil, apperrors.Validation("invalid status",
				apperrors.FieldIssue{Field: "status", Message: "must be draft, issued or cancelled"})
		}
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ClientID != 0 {
		query = query.Where("client_id = ?", filter.ClientID)
	}
	if filter.FromDate != "" {
		if err := entities.ValidateDate("from_date", filter.FromDate); err != nil {
			return nil, err
		}
		query = query.Where("issue_date >= ?", filter.FromDate)
	}
	if filter.ToDate != "" {
		if err := entities.ValidateDate("to_date", filter.ToDate); err != nil {
			return nil, err
		}
		query = query.Where("issue_date <= ?", filter.ToDate)
	}
	return query, nil
}

// UpdateInvoice merges non-nil fields into a draft invoice. When Items is
// set, all lines are replaced and totals recomputed in the same transaction.
func (s *InvoiceService) UpdateInvoice(ctx context.Context, id uint, req *entities.UpdateInvoiceRequest) (*entities.Invoice, error) {
	var invoice entities.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Items").First(&invoice, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("invoice", id)
			}
			return apperrors.Wrap(apperrors.KindIO, "failed to load invoice", err)
		}
		if invoice.Status != entities.InvoiceStatusDraft {
			return apperrors.Newf(apperrors.KindConflict,
				"invoice %s is %s and can no longer be modified", invoice.InvoiceNumber, invoice.Status)
		}

		if req.IssueDate != nil {
			if err := entities.ValidateDate("issue_date", *req.IssueDate); err != nil {
				return err
			}
			invoice.IssueDate = *req.IssueDate
		}
		if req.SaleDate != nil {
			if err := entities.ValidateDate("sale_date", *req.SaleDate); err != nil {
				return err
			}
			invoice.SaleDate = *req.SaleDate
		}
		if req.ClientID != nil {
			var client entities.Client
			if err := tx.First(&client, *req.ClientID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperrors.NotFound("client", *req.ClientID)
				}
				return apperrors.Wrap(apperrors.KindIO, "failed to load client", err)
			}
			invoice.ClientID = *req.ClientID
		}
		if req.InvoiceNumber != nil {
			number, err := s.numbering.NormalizeExplicitNumber(*req.InvoiceNumber)
			if err != nil {
				return err
			}
			if number != invoice.InvoiceNumber {
				if err := s.numbering.CheckAvailable(tx, number, invoice.ID); err != nil {
					return err
				}
				invoice.InvoiceNumber = number
			}
		}
		if req.PaymentMethod != nil {
			if !req.PaymentMethod.Valid() {
				return apperrors.Validation("invalid payment method",
					apperrors.FieldIssue{Field: "payment_method", Message: "must be cash, bank_transfer, card or other"})
			}
			invoice.PaymentMethod = *req.PaymentMethod
		}
		if req.PaymentDeadline != nil {
			deadline := strings.TrimSpace(*req.PaymentDeadline)
			if deadline != "" {
				if err := entities.ValidateDate("payment_deadline", deadline); err != nil {
					return err
				}
			}
			invoice.PaymentDeadline = deadline
		}
		if req.Currency != nil {
			currency := strings.TrimSpace(*req.Currency)
			if err := entities.ValidateCurrency(currency); err != nil {
				return err
			}
			invoice.Currency = currency
		}
		if req.ExchangeRate != nil {
			invoice.ExchangeRate = req.ExchangeRate
		}
		if req.Notes != nil {
			notes, err := entities.TrimOptional("notes", *req.Notes, entities.MaxNotesLength)
			if err != nil {
				return err
			}
			invoice.Notes = notes
		}
		if req.Metadata != nil {
			invoice.Metadata = req.Metadata
		}

		if req.Items != nil {
			items, totals, err := buildItems(req.Items)
			if err != nil {
				return err
			}
			if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&entities.InvoiceItem{}).Error; err != nil {
				return apperrors.Wrap(apperrors.KindIO, "failed to delete invoice items", err)
			}
			for i := range items {
				items[i].InvoiceID = invoice.ID
			}
			if err := tx.Create(&items).Error; err != nil {
				return apperrors.Wrap(apperrors.KindIO, "failed to recreate invoice items", err)
			}
			invoice.Items = items
			invoice.SubtotalGrosze = totals.Net
			invoice.TaxGrosze = totals.VAT
			invoice.TotalGrosze = totals.Gross
		}

		if err := tx.Omit(clause.Associations).Save(&invoice).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.Newf(apperrors.KindConflict, "invoice number %q already exists", invoice.InvoiceNumber)
			}
			return apperrors.Wrap(apperrors.KindIO, "failed to update invoice", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Uint("invoice_id", invoice.ID).Str("invoice_number", invoice.InvoiceNumber).Msg("invoice updated")
	return &invoice, nil
}

// IssueInvoice marks the invoice issued and generates its artifacts. The
// status commits before any file IO; artifacts are regenerated only when
// missing, so calling issue again after a failure (or on an already-issued
// invoice) completes whatever is absent and changes nothing else.
func (s *InvoiceService) IssueInvoice(ctx context.Context, id uint) (*entities.Invoice, error) {
	invoice, err := s.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}

	switch invoice.Status {
	case entities.InvoiceStatusCancelled:
		return nil, apperrors.Newf(apperrors.KindConflict, "invoice %s is cancelled and cannot be issued", invoice.InvoiceNumber)
	case entities.InvoiceStatusDraft:
		err := s.db.WithContext(ctx).Model(&entities.Invoice{}).
			Where("id = ?", id).
			Update("status", entities.InvoiceStatusIssued).Error
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindIO, "failed to mark invoice issued", err)
		}
		invoice.Status = entities.InvoiceStatusIssued
		s.log.Info().Uint("invoice_id", id).Str("invoice_number", invoice.InvoiceNumber).Msg("invoice issued")
	}

	if err := s.ensureArtifacts(ctx, invoice); err != nil {
		return nil, err
	}
	return s.GetInvoice(ctx, id)
}

// DeleteInvoice removes the invoice row; items cascade. Guarding issued
// invoices against deletion is the boundary's responsibility.
func (s *InvoiceService) DeleteInvoice(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&entities.Invoice{}, id)
	if result.Error != nil {
		return apperrors.Wrap(apperrors.KindIO, "failed to delete invoice", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("invoice", id)
	}
	s.log.Info().Uint("invoice_id", id).Msg("invoice deleted")
	return nil
}

func (s *InvoiceService) ensureArtifacts(ctx context.Context, invoice *entities.Invoice) error {
	if !artifactPresent(invoice.XMLPath) {
		path, err := s.fa3.GenerateXML(ctx, invoice, s.seller)
		if err != nil {
			return err
		}
		if err := s.recordArtifactPath(ctx, invoice.ID, "xml_path", path); err != nil {
			return err
		}
		invoice.XMLPath = path
	}
	if !artifactPresent(invoice.PDFPath) {
		path, err := s.pdf.GeneratePDF(invoice, s.seller)
		if err != nil {
			return err
		}
		if err := s.recordArtifactPath(ctx, invoice.ID, "pdf_path", path); err != nil {
			return err
		}
		invoice.PDFPath = path
	}
	return nil
}

func (s *InvoiceService) recordArtifactPath(ctx context.Context, id uint, column, path string) error {
	err := s.db.WithContext(ctx).Model(&entities.Invoice{}).
		Where("id = ?", id).
		Update(column, path).Error
	if err != nil {
		return apperrors.Wrap(apperrors.KindIO, "failed to record artifact path", err)
	}
	return nil
}

func artifactPresent(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// buildItems validates every requested line and computes the invoice totals.
func buildItems(inputs []entities.InvoiceItemInput) ([]entities.InvoiceItem, money.Amounts, error) {
	if len(inputs) == 0 {
		return nil, money.Amounts{}, apperrors.Validation("invoice needs items",
			apperrors.FieldIssue{Field: "items", Message: "at least one item is required"})
	}
	items := make([]entities.InvoiceItem, 0, len(inputs))
	lines := make([]money.Amounts, 0, len(inputs))
	for i := range inputs {
		item, err := inputs[i].ToItem()
		if err != nil {
			return nil, money.Amounts{}, err
		}
		items = append(items, *item)
		lines = append(lines, money.Amounts{Net: item.NetGrosze, VAT: item.VATGrosze, Gross: item.GrossGrosze})
	}
	totals, err := money.Totals(lines)
	if err != nil {
		return nil, money.Amounts{}, err
	}
	return items, totals, nil
}

func resetInvoiceIDs(invoice *entities.Invoice) {
	invoice.ID = 0
	for i := range invoice.Items {
		invoice.Items[i].ID = 0
		invoice.Items[i].InvoiceID = 0
	}
}

// withBusyRetry reruns fn when SQLite reports a busy/locked state or when a
// first allocation for a month loses the race on the (year, month) unique
// index. Anything else surfaces immediately.
func withBusyRetry(attempts int, fn func() error) error {
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn()
		if err == nil || !isRetryableTxError(err) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 25 * time.Millisecond)
	}
	return err
}

func isRetryableTxError(err error) bool {
	if err == nil {
		return false
	}
	if apperrors.IsKind(err, apperrors.KindConflict) && errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}
