package services_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/solodesk/invoice-module/config"
	"github.com/solodesk/invoice-module/database"
	"github.com/solodesk/invoice-module/entities"
	"github.com/solodesk/invoice-module/money"
	"github.com/solodesk/invoice-module/services"
)

// setupTestDB opens a throwaway file-backed database so WAL, the busy timeout
// and foreign keys behave exactly as in production.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func testSeller() config.SellerProfile {
	return config.SellerProfile{
		Name:        "Jan Kowalski IT",
		NIP:         "5261040828",
		Street:      "ul. Prosta 1/2",
		PostalCode:  "00-001",
		City:        "Warszawa",
		Email:       "jan@kowalski-it.example",
		Phone:       "+48 600 100 200",
		BankAccount: "PL61109010140000071219812874",
	}
}

// stubValidator accepts everything unless err is set, and records every path
// it was asked to validate.
type stubValidator struct {
	err   error
	paths []string
}

func (v *stubValidator) Validate(_ context.Context, xmlPath string) error {
	v.paths = append(v.paths, xmlPath)
	return v.err
}

// noFontResolver forces the core-font fallback so PDF tests do not depend on
// fonts installed on the machine running them.
type noFontResolver struct{}

func (noFontResolver) Resolve() (services.ResolvedFont, bool) {
	return services.ResolvedFont{}, false
}

// invoiceTestEnv is the fully wired service graph over one test database and
// one artifact directory tree.
type invoiceTestEnv struct {
	db        *gorm.DB
	dir       string
	validator *stubValidator
	clients   *services.ClientService
	invoices  *services.InvoiceService
}

func setupInvoiceTestEnv(t *testing.T) *invoiceTestEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := database.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	logger := zerolog.Nop()
	validator := &stubValidator{}
	fa3 := services.NewFA3Service(filepath.Join(dir, "xml"), "solodesk-test", validator, logger)
	pdf := services.NewPDFService(filepath.Join(dir, "pdf"), noFontResolver{}, logger)
	numbering := services.NewNumberingService(logger)

	return &invoiceTestEnv{
		db:        db,
		dir:       dir,
		validator: validator,
		clients:   services.NewClientService(db, logger),
		invoices:  services.NewInvoiceService(db, testSeller(), numbering, fa3, pdf, logger),
	}
}

func createTestClient(t *testing.T, clients *services.ClientService) *entities.Client {
	t.Helper()
	client, err := clients.CreateClient(context.Background(), &entities.CreateClientRequest{
		Name:       "Acme Sp. z o.o.",
		NIP:        "1070040052",
		Address:    "ul. Krótka 2",
		City:       "Kraków",
		PostalCode: "30-001",
		Email:      "billing@acme.example",
	})
	require.NoError(t, err)
	return client
}

// twoLineItems is the canonical mixed-rate fixture: 100.00 x 1 at 23% plus
// 80.00 x 2.5 at 8%, totalling 300.00 net / 39.00 VAT / 339.00 gross.
func twoLineItems() []entities.InvoiceItemInput {
	return []entities.InvoiceItemInput{
		{Name: "Usługa A", Quantity: "1", Unit: "szt", UnitPriceGrosze: 10000, VATRate: money.Rate23},
		{Name: "Usługa B", Quantity: "2.5", Unit: "h", UnitPriceGrosze: 8000, VATRate: money.Rate8},
	}
}
