package services

import (
	"context"
	"encoding/xml"
	"time"

	"github.com/rs/zerolog"

	"github.com/solodesk/invoice-module/apperrors"
	"github.com/solodesk/invoice-module/config"
	"github.com/solodesk/invoice-module/entities"
	"github.com/solodesk/invoice-module/money"
)

// FA3Service emits the FA(3) XML artifact for an invoice and gates it behind
// the external XSD validation.
type FA3Service struct {
	xmlDir    string
	producer  string
	validator XSDValidator
	log       zerolog.Logger
}

// NewFA3Service wires the codec. producer becomes the SystemInfo header
// field; validator decides whether a written document may be recorded.
func NewFA3Service(xmlDir, producer string, validator XSDValidator, logger zerolog.Logger) *FA3Service {
	return &FA3Service{
		xmlDir:    xmlDir,
		producer:  producer,
		validator: validator,
		log:       logger.With().Str("component", "fa3-service").Logger(),
	}
}

// GenerateXML builds the document, writes it under the XML directory and
// runs the external schema validation. The returned absolute path is only
// meaningful when the error is nil; a failed validation leaves the file on
// disk for inspection but the caller must not record its path.
func (s *FA3Service) GenerateXML(ctx context.Context, inv *entities.Invoice, seller config.SellerProfile) (string, error) {
	doc, err := s.BuildDocument(inv, seller)
	if err != nil {
		return "", err
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindInternal, "failed to marshal FA(3) document", err)
	}
	content := append([]byte(xml.Header), body...)
	content = append(content, '\n')

	filename, err := ArtifactFilename(inv.InvoiceNumber, ".xml")
	if err != nil {
		return "", err
	}
	path, err := ResolveArtifactPath(s.xmlDir, filename)
	if err != nil {
		return "", err
	}
	if err := writeArtifact(path, content); err != nil {
		return "", err
	}
	s.log.Debug().Str("path", path).Str("invoice_number", inv.InvoiceNumber).Msg("FA(3) XML written")

	if err := s.validator.Validate(ctx, path); err != nil {
		s.log.Error().Err(err).Str("path", path).Msg("FA(3) schema validation failed")
		return "", err
	}
	s.log.Info().Str("path", path).Str("invoice_number", inv.InvoiceNumber).Msg("FA(3) XML validated")
	return path, nil
}

// BuildDocument assembles the Faktura tree from an invoice with preloaded
// items and client.
func (s *FA3Service) BuildDocument(inv *entities.Invoice, seller config.SellerProfile) (*Faktura, error) {
	if inv.Client == nil {
		return nil, apperrors.New(apperrors.KindInternal, "invoice client is not loaded")
	}
	if len(inv.Items) == 0 {
		return nil, apperrors.New(apperrors.KindValidation, "invoice has no items")
	}

	fa, err := s.buildInvoiceBody(inv)
	if err != nil {
		return nil, err
	}
	return &Faktura{
		Xmlns:    FA3Namespace,
		Naglowek: s.buildHeader(),
		Podmiot1: buildSeller(seller),
		Podmiot2: buildBuyer(inv.Client),
		Fa:       *fa,
	}, nil
}

func (s *FA3Service) buildHeader() FA3Header {
	return FA3Header{
		KodFormularza: FA3FormCode{
			KodSystemowy: "FA (3)",
			WersjaSchemy: "1-0E",
			Value:        "FA",
		},
		WariantFormularza: 3,
		DataWytworzeniaFa: time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		SystemInfo:        s.producer,
	}
}

func buildSeller(seller config.SellerProfile) FA3Seller {
	p := FA3Seller{
		DaneIdentyfikacyjne: FA3Identification{NIP: seller.NIP, Nazwa: seller.Name},
		Adres:               FA3Address{KodKraju: "PL", AdresL1: seller.AddressLine()},
	}
	if seller.Email != "" || seller.Phone != "" {
		p.DaneKontaktowe = &FA3Contact{Email: seller.Email, Telefon: seller.Phone}
	}
	return p
}

func buildBuyer(client *entities.Client) FA3Buyer {
	p := FA3Buyer{
		DaneIdentyfikacyjne: FA3Identification{NIP: client.NIP, Nazwa: client.Name},
		JST:                 2,
		GV:                  2,
	}
	if line := config.JoinAddressLine(client.Address, client.PostalCode, client.City); line != "" {
		p.Adres = &FA3Address{KodKraju: "PL", AdresL1: line}
	}
	return p
}

func (s *FA3Service) buildInvoiceBody(inv *entities.Invoice) (*FA3Invoice, error) {
	fa := &FA3Invoice{
		KodWaluty:     inv.Currency,
		P1:            inv.IssueDate,
		P2:            inv.InvoiceNumber,
		P6:            inv.SaleDate,
		P15:           money.FormatMoney(inv.TotalGrosze),
		RodzajFaktury: "VAT",
	}

	// Per-rate subtotals, emitted only for rates that occur on a line.
	type rateSum struct {
		net  int64
		vat  int64
		used bool
	}
	sums := make(map[money.VATRate]*rateSum, 6)
	for _, rate := range []money.VATRate{money.Rate23, money.Rate8, money.Rate5, money.Rate0, money.RateExempt, money.RateNotSubject} {
		sums[rate] = &rateSum{}
	}

	hasExempt := false
	for idx := range inv.Items {
		item := &inv.Items[idx]
		rate, err := money.ParseVATRate(string(item.VATRate))
		if err != nil {
			return nil, apperrors.Newf(apperrors.KindInternal, "invoice item %d carries an invalid VAT rate %q", item.ID, string(item.VATRate))
		}
		sum := sums[rate]
		sum.used = true
		sum.net += item.NetGrosze
		sum.vat += item.VATGrosze
		if rate.IsExempt() {
			hasExempt = true
		}

		fa.FaWiersz = append(fa.FaWiersz, FA3Line{
			NrWierszaFa: idx + 1,
			P7:          item.Name,
			P8A:         item.Unit,
			P8B:         item.Quantity,
			P9A:         money.FormatMoney(item.UnitPriceGrosze),
			P11:         money.FormatMoney(item.NetGrosze),
			P12:         faLineTaxTag(rate),
		})
	}

	if sum := sums[money.Rate23]; sum.used {
		fa.P131 = money.FormatMoney(sum.net)
		fa.P141 = money.FormatMoney(sum.vat)
	}
	if sum := sums[money.Rate8]; sum.used {
		fa.P132 = money.FormatMoney(sum.net)
		fa.P142 = money.FormatMoney(sum.vat)
	}
	if sum := sums[money.Rate5]; sum.used {
		fa.P133 = money.FormatMoney(sum.net)
		fa.P143 = money.FormatMoney(sum.vat)
	}
	if sum := sums[money.Rate0]; sum.used {
		fa.P1361 = money.FormatMoney(sum.net)
	}
	if sum := sums[money.RateExempt]; sum.used {
		fa.P137 = money.FormatMoney(sum.net)
	}
	if sum := sums[money.RateNotSubject]; sum.used {
		fa.P138 = money.FormatMoney(sum.net)
	}

	fa.Adnotacje = buildAnnotations(hasExempt)
	return fa, nil
}

func buildAnnotations(hasExempt bool) FA3Annotations {
	a := FA3Annotations{
		P16:                  2,
		P17:                  2,
		P18:                  2,
		P18A:                 2,
		NoweSrodkiTransportu: FA3NewTransport{P22N: "1"},
		P23:                  2,
		PMarzy:               FA3MarginScheme{PPMarzyN: "1"},
	}
	if hasExempt {
		a.Zwolnienie = FA3Exemption{P19: "1", P19C: "zw"}
	} else {
		a.Zwolnienie = FA3Exemption{P19N: "1"}
	}
	return a
}

// faLineTaxTag maps the internal VAT-rate tag to the P_12 text.
func faLineTaxTag(rate money.VATRate) string {
	switch rate {
	case money.Rate0:
		return "0 KR"
	case money.RateExempt:
		return "zw"
	case money.RateNotSubject:
		return "np I"
	default:
		return string(rate)
	}
}
