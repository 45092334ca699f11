package services

import "encoding/xml"

// FA3Namespace is the FA(3) schema namespace required on the document root.
const FA3Namespace = "http://crd.gov.pl/wzor/2025/06/25/13775/"

// Faktura is the FA(3) document root. Struct field order fixes the child
// order the schema mandates; optional groups are pointers or omitempty
// strings so unused elements disappear from the output.
type Faktura struct {
	XMLName  xml.Name   `xml:"Faktura"`
	Xmlns    string     `xml:"xmlns,attr"`
	Naglowek FA3Header  `xml:"Naglowek"`
	Podmiot1 FA3Seller  `xml:"Podmiot1"`
	Podmiot2 FA3Buyer   `xml:"Podmiot2"`
	Fa       FA3Invoice `xml:"Fa"`
}

// FA3Header carries the form identification and generation metadata.
type FA3Header struct {
	KodFormularza     FA3FormCode `xml:"KodFormularza"`
	WariantFormularza int         `xml:"WariantFormularza"`
	// DataWytworzeniaFa is the UTC generation timestamp, YYYY-MM-DDTHH:MM:SSZ.
	DataWytworzeniaFa string `xml:"DataWytworzeniaFa"`
	SystemInfo        string `xml:"SystemInfo"`
}

type FA3FormCode struct {
	KodSystemowy string `xml:"kodSystemowy,attr"`
	WersjaSchemy string `xml:"wersjaSchemy,attr"`
	Value        string `xml:",chardata"`
}

// FA3Seller is Podmiot1. The address is required by the schema.
type FA3Seller struct {
	DaneIdentyfikacyjne FA3Identification `xml:"DaneIdentyfikacyjne"`
	Adres               FA3Address        `xml:"Adres"`
	DaneKontaktowe      *FA3Contact       `xml:"DaneKontaktowe,omitempty"`
}

// FA3Buyer is Podmiot2. JST and GV are fixed "no" flags for a regular
// business buyer.
type FA3Buyer struct {
	DaneIdentyfikacyjne FA3Identification `xml:"DaneIdentyfikacyjne"`
	Adres               *FA3Address       `xml:"Adres,omitempty"`
	JST                 int               `xml:"JST"`
	GV                  int               `xml:"GV"`
}

type FA3Identification struct {
	NIP   string `xml:"NIP"`
	Nazwa string `xml:"Nazwa"`
}

// FA3Address holds the country code and the single assembled address line
// "<street>, <postal_code> <city>".
type FA3Address struct {
	KodKraju string `xml:"KodKraju"`
	AdresL1  string `xml:"AdresL1"`
}

// FA3Contact is emitted as a group only when at least one field is present.
type FA3Contact struct {
	Email   string `xml:"Email,omitempty"`
	Telefon string `xml:"Telefon,omitempty"`
}

// FA3Invoice is the Fa block. The P_13_x/P_14_x pairs are per-rate net/VAT
// subtotals, present only when the rate occurs on at least one line:
//
//	P_13_1/P_14_1 23%, P_13_2/P_14_2 8%, P_13_3/P_14_3 5%,
//	P_13_6_1 0% (net only), P_13_7 exempt, P_13_8 not subject.
//
// P_15 is the gross grand total and is always present.
type FA3Invoice struct {
	KodWaluty string `xml:"KodWaluty"`
	// P_1 issue date, P_2 invoice number, P_6 common sale date.
	P1            string         `xml:"P_1"`
	P2            string         `xml:"P_2"`
	P6            string         `xml:"P_6"`
	P131          string         `xml:"P_13_1,omitempty"`
	P141          string         `xml:"P_14_1,omitempty"`
	P132          string         `xml:"P_13_2,omitempty"`
	P142          string         `xml:"P_14_2,omitempty"`
	P133          string         `xml:"P_13_3,omitempty"`
	P143          string         `xml:"P_14_3,omitempty"`
	P1361         string         `xml:"P_13_6_1,omitempty"`
	P137          string         `xml:"P_13_7,omitempty"`
	P138          string         `xml:"P_13_8,omitempty"`
	P15           string         `xml:"P_15"`
	Adnotacje     FA3Annotations `xml:"Adnotacje"`
	RodzajFaktury string         `xml:"RodzajFaktury"`
	FaWiersz      []FA3Line      `xml:"FaWiersz"`
}

// FA3Annotations carries the fixed regulatory flags (2 = "does not apply")
// and the exemption choice: P_19=1 with the P_19C basis text when any line
// is exempt, P_19N=1 otherwise.
type FA3Annotations struct {
	P16                  int             `xml:"P_16"`
	P17                  int             `xml:"P_17"`
	P18                  int             `xml:"P_18"`
	P18A                 int             `xml:"P_18A"`
	Zwolnienie           FA3Exemption    `xml:"Zwolnienie"`
	NoweSrodkiTransportu FA3NewTransport `xml:"NoweSrodkiTransportu"`
	P23                  int             `xml:"P_23"`
	PMarzy               FA3MarginScheme `xml:"PMarzy"`
}

type FA3Exemption struct {
	P19  string `xml:"P_19,omitempty"`
	P19C string `xml:"P_19C,omitempty"`
	P19N string `xml:"P_19N,omitempty"`
}

type FA3NewTransport struct {
	P22N string `xml:"P_22N"`
}

type FA3MarginScheme struct {
	PPMarzyN string `xml:"P_PMarzyN"`
}

// FA3Line is one FaWiersz: P_7 name, P_8A unit, P_8B quantity, P_9A unit net
// price, P_11 line net, P_12 the VAT-rate tag text.
type FA3Line struct {
	NrWierszaFa int    `xml:"NrWierszaFa"`
	P7          string `xml:"P_7"`
	P8A         string `xml:"P_8A"`
	P8B         string `xml:"P_8B"`
	P9A         string `xml:"P_9A"`
	P11         string `xml:"P_11"`
	P12         string `xml:"P_12"`
}
