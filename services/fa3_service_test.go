package services_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solodesk/invoice-module/apperrors"
	"github.com/solodesk/invoice-module/entities"
	"github.com/solodesk/invoice-module/money"
	"github.com/solodesk/invoice-module/services"
)

// fa3TestInvoice is a 23% line plus an exempt line: 1500.00 net, 230.00 VAT,
// 1730.00 gross. Client and items are attached in memory, no database needed.
func fa3TestInvoice() *entities.Invoice {
	return &entities.Invoice{
		InvoiceNumber:  "FV/2026/01/0007",
		Status:         entities.InvoiceStatusIssued,
		IssueDate:      "2026-01-15",
		SaleDate:       "2026-01-10",
		Currency:       "PLN",
		SubtotalGrosze: 150000,
		TaxGrosze:      23000,
		TotalGrosze:    173000,
		Client: &entities.Client{
			Name:       "Acme Sp. z o.o.",
			NIP:        "1070040052",
			Address:    "ul. Krótka 2",
			City:       "Kraków",
			PostalCode: "30-001",
		},
		Items: []entities.InvoiceItem{
			{Name: "Usługi programistyczne", Quantity: "1", Unit: "szt", UnitPriceGrosze: 100000, VATRate: money.Rate23, NetGrosze: 100000, VATGrosze: 23000, GrossGrosze: 123000},
			{Name: "Szkolenie zespołu", Quantity: "2", Unit: "szt", UnitPriceGrosze: 25000, VATRate: money.RateExempt, NetGrosze: 50000, VATGrosze: 0, GrossGrosze: 50000},
		},
	}
}

func newFA3TestService(t *testing.T) (*services.FA3Service, *stubValidator, string) {
	t.Helper()
	dir := t.TempDir()
	validator := &stubValidator{}
	return services.NewFA3Service(dir, "solodesk-test", validator, zerolog.Nop()), validator, dir
}

func TestFA3Service_BuildDocument(t *testing.T) {
	svc, _, _ := newFA3TestService(t)
	seller := testSeller()

	doc, err := svc.BuildDocument(fa3TestInvoice(), seller)
	require.NoError(t, err)

	assert.Equal(t, services.FA3Namespace, doc.Xmlns)

	h := doc.Naglowek
	assert.Equal(t, "FA (3)", h.KodFormularza.KodSystemowy)
	assert.Equal(t, "1-0E", h.KodFormularza.WersjaSchemy)
	assert.Equal(t, "FA", h.KodFormularza.Value)
	assert.Equal(t, 3, h.WariantFormularza)
	assert.Equal(t, "solodesk-test", h.SystemInfo)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`, h.DataWytworzeniaFa)

	p1 := doc.Podmiot1
	assert.Equal(t, seller.NIP, p1.DaneIdentyfikacyjne.NIP)
	assert.Equal(t, seller.Name, p1.DaneIdentyfikacyjne.Nazwa)
	assert.Equal(t, "PL", p1.Adres.KodKraju)
	assert.Equal(t, seller.AddressLine(), p1.Adres.AdresL1)
	require.NotNil(t, p1.DaneKontaktowe)
	assert.Equal(t, seller.Email, p1.DaneKontaktowe.Email)
	assert.Equal(t, seller.Phone, p1.DaneKontaktowe.Telefon)

	p2 := doc.Podmiot2
	assert.Equal(t, "1070040052", p2.DaneIdentyfikacyjne.NIP)
	assert.Equal(t, "Acme Sp. z o.o.", p2.DaneIdentyfikacyjne.Nazwa)
	require.NotNil(t, p2.Adres)
	assert.Equal(t, "ul. Krótka 2, 30-001 Kraków", p2.Adres.AdresL1)
	assert.Equal(t, 2, p2.JST)
	assert.Equal(t, 2, p2.GV)

	fa := doc.Fa
	assert.Equal(t, "PLN", fa.KodWaluty)
	assert.Equal(t, "2026-01-15", fa.P1)
	assert.Equal(t, "FV/2026/01/0007", fa.P2)
	assert.Equal(t, "2026-01-10", fa.P6)
	assert.Equal(t, "1000.00", fa.P131)
	assert.Equal(t, "230.00", fa.P141)
	assert.Equal(t, "500.00", fa.P137)
	assert.Equal(t, "1730.00", fa.P15)
	assert.Empty(t, fa.P132, "no 8% lines")
	assert.Empty(t, fa.P1361, "no 0% lines")
	assert.Empty(t, fa.P138, "no NP lines")
	assert.Equal(t, "VAT", fa.RodzajFaktury)

	require.Len(t, fa.FaWiersz, 2)
	first := fa.FaWiersz[0]
	assert.Equal(t, 1, first.NrWierszaFa)
	assert.Equal(t, "Usługi programistyczne", first.P7)
	assert.Equal(t, "szt", first.P8A)
	assert.Equal(t, "1", first.P8B)
	assert.Equal(t, "1000.00", first.P9A)
	assert.Equal(t, "1000.00", first.P11)
	assert.Equal(t, "23", first.P12)
	assert.Equal(t, "zw", fa.FaWiersz[1].P12)

	// An exempt line flips the annotation choice to P_19 with the basis text.
	a := fa.Adnotacje
	assert.Equal(t, 2, a.P16)
	assert.Equal(t, 2, a.P18A)
	assert.Equal(t, "1", a.Zwolnienie.P19)
	assert.Equal(t, "zw", a.Zwolnienie.P19C)
	assert.Empty(t, a.Zwolnienie.P19N)
	assert.Equal(t, "1", a.NoweSrodkiTransportu.P22N)
	assert.Equal(t, 2, a.P23)
	assert.Equal(t, "1", a.PMarzy.PPMarzyN)
}

func TestFA3Service_BuildDocument_NoExemptLines(t *testing.T) {
	svc, _, _ := newFA3TestService(t)
	inv := fa3TestInvoice()
	inv.Items = inv.Items[:1]

	doc, err := svc.BuildDocument(inv, testSeller())
	require.NoError(t, err)

	assert.Empty(t, doc.Fa.P137)
	assert.Empty(t, doc.Fa.Adnotacje.Zwolnienie.P19)
	assert.Empty(t, doc.Fa.Adnotacje.Zwolnienie.P19C)
	assert.Equal(t, "1", doc.Fa.Adnotacje.Zwolnienie.P19N)
}

// One line per rate: every aggregate bucket appears with its own P_13_x, the
// taxed ones with a P_14_x beside it, and P_12 carries the schema tag.
func TestFA3Service_BuildDocument_RateAggregates(t *testing.T) {
	svc, _, _ := newFA3TestService(t)
	inv := fa3TestInvoice()
	inv.Items = []entities.InvoiceItem{
		{Name: "A", Quantity: "1", Unit: "szt", UnitPriceGrosze: 10000, VATRate: money.Rate23, NetGrosze: 10000, VATGrosze: 2300, GrossGrosze: 12300},
		{Name: "B", Quantity: "1", Unit: "szt", UnitPriceGrosze: 10000, VATRate: money.Rate8, NetGrosze: 10000, VATGrosze: 800, GrossGrosze: 10800},
		{Name: "C", Quantity: "1", Unit: "szt", UnitPriceGrosze: 10000, VATRate: money.Rate5, NetGrosze: 10000, VATGrosze: 500, GrossGrosze: 10500},
		{Name: "D", Quantity: "1", Unit: "szt", UnitPriceGrosze: 10000, VATRate: money.Rate0, NetGrosze: 10000, VATGrosze: 0, GrossGrosze: 10000},
		{Name: "E", Quantity: "1", Unit: "szt", UnitPriceGrosze: 10000, VATRate: money.RateExempt, NetGrosze: 10000, VATGrosze: 0, GrossGrosze: 10000},
		{Name: "F", Quantity: "1", Unit: "szt", UnitPriceGrosze: 10000, VATRate: money.RateNotSubject, NetGrosze: 10000, VATGrosze: 0, GrossGrosze: 10000},
	}
	inv.SubtotalGrosze = 60000
	inv.TaxGrosze = 3600
	inv.TotalGrosze = 63600

	doc, err := svc.BuildDocument(inv, testSeller())
	require.NoError(t, err)

	fa := doc.Fa
	assert.Equal(t, "100.00", fa.P131)
	assert.Equal(t, "23.00", fa.P141)
	assert.Equal(t, "100.00", fa.P132)
	assert.Equal(t, "8.00", fa.P142)
	assert.Equal(t, "100.00", fa.P133)
	assert.Equal(t, "5.00", fa.P143)
	assert.Equal(t, "100.00", fa.P1361)
	assert.Equal(t, "100.00", fa.P137)
	assert.Equal(t, "100.00", fa.P138)
	assert.Equal(t, "636.00", fa.P15)

	tags := make([]string, 0, len(fa.FaWiersz))
	for _, line := range fa.FaWiersz {
		tags = append(tags, line.P12)
	}
	assert.Equal(t, []string{"23", "8", "5", "0 KR", "zw", "np I"}, tags)
}

func TestFA3Service_BuildDocument_Guards(t *testing.T) {
	svc, _, _ := newFA3TestService(t)

	noClient := fa3TestInvoice()
	noClient.Client = nil
	_, err := svc.BuildDocument(noClient, testSeller())
	assert.Equal(t, apperrors.KindInternal, apperrors.KindOf(err))

	noItems := fa3TestInvoice()
	noItems.Items = nil
	_, err = svc.BuildDocument(noItems, testSeller())
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestFA3Service_BuildDocument_OmitsEmptyOptionalGroups(t *testing.T) {
	svc, _, _ := newFA3TestService(t)

	seller := testSeller()
	seller.Email = ""
	seller.Phone = ""

	inv := fa3TestInvoice()
	inv.Client.Address = ""
	inv.Client.City = ""
	inv.Client.PostalCode = ""

	doc, err := svc.BuildDocument(inv, seller)
	require.NoError(t, err)
	assert.Nil(t, doc.Podmiot1.DaneKontaktowe, "no contact data, no DaneKontaktowe group")
	assert.Nil(t, doc.Podmiot2.Adres, "buyer address is optional")
}

func childTags(e *etree.Element) []string {
	children := e.ChildElements()
	tags := make([]string, 0, len(children))
	for _, c := range children {
		tags = append(tags, c.Tag)
	}
	return tags
}

func TestFA3Service_GenerateXML_DocumentShape(t *testing.T) {
	svc, validator, dir := newFA3TestService(t)
	inv := fa3TestInvoice()

	path, err := svc.GenerateXML(context.Background(), inv, testSeller())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "FV-2026-01-0007.xml"), path)
	assert.Equal(t, []string{path}, validator.paths, "validation ran against the written file")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n"))

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(raw))
	root := doc.Root()
	require.NotNil(t, root)
	assert.Equal(t, "Faktura", root.Tag)
	assert.Equal(t, services.FA3Namespace, root.SelectAttrValue("xmlns", ""))
	assert.Equal(t, []string{"Naglowek", "Podmiot1", "Podmiot2", "Fa"}, childTags(root))

	// Element order inside Fa is fixed by the schema; absent rate buckets
	// leave no trace.
	fa := root.SelectElement("Fa")
	require.NotNil(t, fa)
	assert.Equal(t, []string{
		"KodWaluty", "P_1", "P_2", "P_6",
		"P_13_1", "P_14_1", "P_13_7", "P_15",
		"Adnotacje", "RodzajFaktury", "FaWiersz", "FaWiersz",
	}, childTags(fa))

	kod := root.FindElement("Naglowek/KodFormularza")
	require.NotNil(t, kod)
	assert.Equal(t, "FA (3)", kod.SelectAttrValue("kodSystemowy", ""))
	assert.Equal(t, "1-0E", kod.SelectAttrValue("wersjaSchemy", ""))
	assert.Equal(t, "FA", kod.Text())

	assert.Equal(t, []string{
		"P_16", "P_17", "P_18", "P_18A",
		"Zwolnienie", "NoweSrodkiTransportu", "P_23", "PMarzy",
	}, childTags(fa.SelectElement("Adnotacje")))

	assert.Equal(t, "1730.00", fa.SelectElement("P_15").Text())
	assert.Equal(t, "ul. Prosta 1/2, 00-001 Warszawa", root.FindElement("Podmiot1/Adres/AdresL1").Text())
}

func TestFA3Service_GenerateXML_EscapesMarkup(t *testing.T) {
	svc, _, _ := newFA3TestService(t)
	inv := fa3TestInvoice()
	inv.Client.Name = `R&D <Consulting> "Żółć" Sp. z o.o.`
	inv.Items[0].Name = "Wdrożenie & utrzymanie"

	path, err := svc.GenerateXML(context.Background(), inv, testSeller())
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "R&amp;D &lt;Consulting&gt;")
	assert.Contains(t, string(raw), "Wdrożenie &amp; utrzymanie")

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(raw))
	assert.Equal(t, inv.Client.Name, doc.Root().FindElement("Podmiot2/DaneIdentyfikacyjne/Nazwa").Text())
	assert.Equal(t, "Wdrożenie & utrzymanie", doc.Root().FindElement("Fa/FaWiersz/P_7").Text())
}

// A rejected document is kept on disk for inspection but its path is not
// returned to the caller.
func TestFA3Service_GenerateXML_ValidationFailure(t *testing.T) {
	svc, validator, dir := newFA3TestService(t)
	validator.err = apperrors.New(apperrors.KindFA3ValidationFailed, "generated XML rejected by the FA(3) schema")

	path, err := svc.GenerateXML(context.Background(), fa3TestInvoice(), testSeller())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindFA3ValidationFailed, apperrors.KindOf(err))
	assert.Empty(t, path)
	assert.FileExists(t, filepath.Join(dir, "FV-2026-01-0007.xml"))
}
