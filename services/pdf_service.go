package services

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/rs/zerolog"

	"github.com/solodesk/invoice-module/apperrors"
	"github.com/solodesk/invoice-module/config"
	"github.com/solodesk/invoice-module/entities"
	"github.com/solodesk/invoice-module/money"
)

// pdfFontName is the family name the resolved TTF is registered under.
const pdfFontName = "invoice"

var paymentMethodLabels = map[entities.PaymentMethod]string{
	entities.PaymentMethodCash:         "gotówka",
	entities.PaymentMethodBankTransfer: "przelew",
	entities.PaymentMethodCard:         "karta",
	entities.PaymentMethodOther:        "inna",
}

// asciiFold degrades Polish diacritics when only the monospace core font is
// available; core fonts carry no Polish glyphs.
var asciiFold = strings.NewReplacer(
	"ą", "a", "ć", "c", "ę", "e", "ł", "l", "ń", "n", "ó", "o", "ś", "s", "ź", "z", "ż", "z",
	"Ą", "A", "Ć", "C", "Ę", "E", "Ł", "L", "Ń", "N", "Ó", "O", "Ś", "S", "Ź", "Z", "Ż", "Z",
)

// PDFService renders the fixed A4 invoice layout.
type PDFService struct {
	pdfDir string
	fonts  FontResolver
	log    zerolog.Logger
}

func NewPDFService(pdfDir string, fonts FontResolver, logger zerolog.Logger) *PDFService {
	return &PDFService{
		pdfDir: pdfDir,
		fonts:  fonts,
		log:    logger.With().Str("component", "pdf-service").Logger(),
	}
}

// GeneratePDF renders the invoice (items and client preloaded) and writes it
// under the PDF directory, returning the absolute path.
func (s *PDFService) GeneratePDF(inv *entities.Invoice, seller config.SellerProfile) (string, error) {
	if inv.Client == nil {
		return "", apperrors.New(apperrors.KindInternal, "invoice client is not loaded")
	}
	if len(inv.Items) == 0 {
		return "", apperrors.New(apperrors.KindValidation, "invoice has no items")
	}

	filename, err := ArtifactFilename(inv.InvoiceNumber, ".pdf")
	if err != nil {
		return "", err
	}
	path, err := ResolveArtifactPath(s.pdfDir, filename)
	if err != nil {
		return "", err
	}

	doc := gofpdf.New("P", "mm", "A4", "")
	family := "Courier"
	text := asciiFold.Replace
	if font, ok := s.fonts.Resolve(); ok {
		doc.AddUTF8Font(pdfFontName, "", font.RegularPath)
		doc.AddUTF8Font(pdfFontName, "B", font.BoldPath)
		family = pdfFontName
		text = func(v string) string { return v }
	} else {
		s.log.Warn().Msg("no platform font found, falling back to the monospace core font")
	}

	doc.SetTitle("Faktura "+inv.InvoiceNumber, true)
	doc.SetMargins(15, 15, 15)
	doc.SetAutoPageBreak(true, 25)
	doc.AddPage()

	// Title and number.
	doc.SetFont(family, "B", 18)
	doc.CellFormat(180, 10, text("FAKTURA VAT"), "", 1, "C", false, 0, "")
	doc.SetFont(family, "", 12)
	doc.CellFormat(180, 7, text("Nr "+inv.InvoiceNumber), "", 1, "C", false, 0, "")
	doc.Ln(6)

	// Seller and buyer, side by side.
	renderParty := func(x, y float64, header string, lines []string) float64 {
		doc.SetXY(x, y)
		doc.SetFont(family, "B", 10)
		doc.CellFormat(85, 6, text(header), "", 2, "L", false, 0, "")
		doc.SetFont(family, "", 9)
		for _, line := range lines {
			doc.CellFormat(85, 5, text(line), "", 2, "L", false, 0, "")
		}
		return doc.GetY()
	}
	top := doc.GetY()
	sellerBottom := renderParty(15, top, "Sprzedawca", partyLines(
		seller.Name, seller.NIP, seller.Street, seller.PostalCode, seller.City, seller.Email, seller.Phone))
	buyerBottom := renderParty(105, top, "Nabywca", partyLines(
		inv.Client.Name, inv.Client.NIP, inv.Client.Address, inv.Client.PostalCode, inv.Client.City,
		inv.Client.Email, inv.Client.Phone))
	doc.SetY(math.Max(sellerBottom, buyerBottom) + 6)

	// Dates and terms.
	detail := func(label, value string) {
		doc.SetFont(family, "B", 9)
		doc.CellFormat(45, 5, text(label), "", 0, "L", false, 0, "")
		doc.SetFont(family, "", 9)
		doc.CellFormat(135, 5, text(value), "", 1, "L", false, 0, "")
	}
	detail("Data wystawienia:", inv.IssueDate)
	detail("Data sprzedaży:", inv.SaleDate)
	if inv.PaymentDeadline != "" {
		detail("Termin płatności:", inv.PaymentDeadline)
	}
	detail("Metoda płatności:", paymentMethodLabel(inv.PaymentMethod))
	detail("Waluta:", inv.Currency)
	if inv.ExchangeRate != nil {
		detail("Kurs waluty:", strconv.FormatFloat(*inv.ExchangeRate, 'f', -1, 64))
	}
	doc.Ln(4)

	// Line items.
	colWidths := []float64{10, 53, 15, 12, 25, 15, 25, 25}
	headers := []string{"Lp.", "Nazwa", "Ilość", "Jm", "Cena netto", "VAT", "Netto", "Brutto"}
	aligns := []string{"C", "L", "R", "C", "R", "C", "R", "R"}
	doc.SetFont(family, "B", 8)
	doc.SetFillColor(235, 235, 235)
	for i, h := range headers {
		doc.CellFormat(colWidths[i], 7, text(h), "1", 0, "C", true, 0, "")
	}
	doc.Ln(-1)
	doc.SetFont(family, "", 8)
	doc.SetFillColor(248, 248, 248)
	fill := false
	for idx := range inv.Items {
		item := &inv.Items[idx]
		cells := []string{
			strconv.Itoa(idx + 1),
			item.Name,
			item.Quantity,
			item.Unit,
			money.FormatMoney(item.UnitPriceGrosze),
			vatRateLabel(item.VATRate),
			money.FormatMoney(item.NetGrosze),
			money.FormatMoney(item.GrossGrosze),
		}
		for i, cell := range cells {
			doc.CellFormat(colWidths[i], 6, text(cell), "1", 0, aligns[i], fill, 0, "")
		}
		doc.Ln(-1)
		fill = !fill
	}

	// Totals.
	doc.Ln(3)
	total := func(label, value string, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		doc.SetX(105)
		doc.SetFont(family, style, 10)
		doc.CellFormat(50, 6, text(label), "", 0, "L", false, 0, "")
		doc.CellFormat(40, 6, value+" "+inv.Currency, "", 1, "R", false, 0, "")
	}
	total("Razem netto:", money.FormatMoney(inv.SubtotalGrosze), false)
	total("Razem VAT:", money.FormatMoney(inv.TaxGrosze), false)
	total("Razem brutto:", money.FormatMoney(inv.TotalGrosze), true)

	if seller.BankAccount != "" {
		doc.Ln(4)
		doc.SetFont(family, "B", 9)
		doc.CellFormat(40, 5, text("Nr rachunku:"), "", 0, "L", false, 0, "")
		doc.SetFont(family, "", 9)
		doc.CellFormat(140, 5, text(seller.BankAccount), "", 1, "L", false, 0, "")
	}
	if inv.Notes != "" {
		doc.Ln(4)
		doc.SetFont(family, "B", 9)
		doc.CellFormat(180, 5, text("Uwagi:"), "", 1, "L", false, 0, "")
		doc.SetFont(family, "", 9)
		doc.MultiCell(180, 4.5, text(inv.Notes), "", "L", false)
	}

	// Footer disclaimer.
	doc.SetY(-25)
	doc.SetFont(family, "", 8)
	doc.SetTextColor(128, 128, 128)
	doc.CellFormat(180, 4, text("Dokument wystawiony elektronicznie, nie wymaga podpisu."), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return "", apperrors.Wrap(apperrors.KindIO, "failed to render PDF", err)
	}
	if err := writeArtifact(path, buf.Bytes()); err != nil {
		return "", err
	}
	s.log.Info().Str("path", path).Str("invoice_number", inv.InvoiceNumber).Msg("PDF written")
	return path, nil
}

// partyLines builds the display lines of a seller/buyer block, skipping
// whatever is absent.
func partyLines(name, nip, street, postalCode, city, email, phone string) []string {
	lines := []string{name, "NIP: " + nip}
	if street != "" {
		lines = append(lines, street)
	}
	locality := config.JoinAddressLine("", postalCode, city)
	if locality != "" {
		lines = append(lines, locality)
	}
	if email != "" {
		lines = append(lines, "Email: "+email)
	}
	if phone != "" {
		lines = append(lines, "Tel.: "+phone)
	}
	return lines
}

func paymentMethodLabel(m entities.PaymentMethod) string {
	if label, ok := paymentMethodLabels[m]; ok {
		return label
	}
	return string(m)
}

// vatRateLabel shows numeric rates with a percent sign and the alphabetic
// tags as-is.
func vatRateLabel(rate money.VATRate) string {
	if percent, ok := rate.Percent(); ok {
		return strconv.FormatInt(percent, 10) + "%"
	}
	return string(rate)
}
