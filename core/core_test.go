package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solodesk/invoice-module/config"
	"github.com/solodesk/invoice-module/core"
	"github.com/solodesk/invoice-module/entities"
	"github.com/solodesk/invoice-module/money"
	"github.com/solodesk/invoice-module/services"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DataDir:          t.TempDir(),
		SystemInfo:       "Solodesk",
		ValidatorCommand: "xmllint",
		LogLevel:         "error",
		Seller: config.SellerProfile{
			Name:       "Jan Kowalski IT",
			NIP:        "5261040828",
			Street:     "ul. Prosta 1/2",
			PostalCode: "00-001",
			City:       "Warszawa",
		},
	}
}

// New must leave a usable module behind: directories created, schema
// migrated, services wired together.
func TestNew_BootstrapsTheModule(t *testing.T) {
	cfg := testConfig(t)
	c, err := core.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, c.Close()) })

	assert.DirExists(t, cfg.XMLDir())
	assert.DirExists(t, cfg.PDFDir())
	assert.FileExists(t, cfg.DatabasePath())

	ctx := context.Background()
	client, err := c.Clients.CreateClient(ctx, &entities.CreateClientRequest{
		Name: "Acme Sp. z o.o.",
		NIP:  "107-004-00-52",
	})
	require.NoError(t, err)
	assert.Equal(t, "1070040052", client.NIP)

	invoice, err := c.Invoices.CreateInvoice(ctx, &entities.CreateInvoiceRequest{
		IssueDate: "2026-01-15",
		SaleDate:  "2026-01-15",
		ClientID:  client.ID,
		Items: []entities.InvoiceItemInput{
			{Name: "Usługa", Quantity: "1", Unit: "szt", UnitPriceGrosze: 10000, VATRate: money.Rate23},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "FV/2026/01/0001", invoice.InvoiceNumber)

	invoices, total, err := c.Invoices.ListInvoices(ctx, services.InvoiceFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, invoices, 1)
}

// Opening the same data directory again finds the previous data intact.
func TestNew_ReopensExistingData(t *testing.T) {
	cfg := testConfig(t)

	first, err := core.New(cfg)
	require.NoError(t, err)
	client, err := first.Clients.CreateClient(context.Background(), &entities.CreateClientRequest{
		Name: "Acme Sp. z o.o.",
		NIP:  "1070040052",
	})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := core.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, second.Close()) })

	loaded, err := second.Clients.GetClient(context.Background(), client.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Sp. z o.o.", loaded.Name)
}

func TestNew_LoadsConfigFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SOLODESK_DATA_DIR", dir)
	t.Setenv("SOLODESK_SYSTEM_INFO", "Solodesk CI")
	t.Setenv("SOLODESK_XSD_VALIDATOR", "xmllint")
	t.Setenv("SOLODESK_FA3_SCHEMA", "")
	t.Setenv("SOLODESK_LOG_LEVEL", "error")
	t.Setenv("SOLODESK_SELLER_NAME", "Jan Kowalski IT")
	t.Setenv("SOLODESK_SELLER_NIP", "526-104-08-28")
	t.Setenv("SOLODESK_SELLER_STREET", "ul. Prosta 1/2")
	t.Setenv("SOLODESK_SELLER_POSTAL_CODE", "00-001")
	t.Setenv("SOLODESK_SELLER_CITY", "Warszawa")
	t.Setenv("SOLODESK_SELLER_EMAIL", "")
	t.Setenv("SOLODESK_SELLER_PHONE", "")
	t.Setenv("SOLODESK_SELLER_BANK_ACCOUNT", "")

	c, err := core.New(nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, c.Close()) })

	assert.Equal(t, dir, c.Config.DataDir)
	assert.Equal(t, "Solodesk CI", c.Config.SystemInfo)
	assert.Equal(t, "5261040828", c.Config.Seller.NIP, "seller NIP is normalised during validation")
}
