// Package config loads the invoicing core configuration from the process
// environment, with optional .env support for local development. Services
// never read the environment themselves; tests build Config literals.
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/solodesk/invoice-module/apperrors"
	"github.com/solodesk/invoice-module/entities"
)

// SellerProfile identifies the invoice issuer (Podmiot1). The dashboard is
// single-tenant, so there is exactly one profile, set at deployment time.
type SellerProfile struct {
	Name        string
	NIP         string
	Street      string
	PostalCode  string
	City        string
	Email       string
	Phone       string
	BankAccount string
}

// Config holds everything the core context needs at process start.
type Config struct {
	// DataDir is the root for the embedded database and generated artifacts.
	DataDir string
	// SystemInfo is the producer string written into the FA(3) header.
	SystemInfo string
	// ValidatorCommand is the external XSD validator binary.
	ValidatorCommand string
	// SchemaPath points at the government-published FA(3) XSD.
	SchemaPath string
	LogLevel   string
	Seller     SellerProfile
}

// Load reads an optional .env file, then the environment, and validates the
// result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:          getEnv("SOLODESK_DATA_DIR", "data"),
		SystemInfo:       getEnv("SOLODESK_SYSTEM_INFO", "Solodesk"),
		ValidatorCommand: getEnv("SOLODESK_XSD_VALIDATOR", "xmllint"),
		SchemaPath:       os.Getenv("SOLODESK_FA3_SCHEMA"),
		LogLevel:         getEnv("SOLODESK_LOG_LEVEL", "info"),
		Seller: SellerProfile{
			Name:        os.Getenv("SOLODESK_SELLER_NAME"),
			NIP:         os.Getenv("SOLODESK_SELLER_NIP"),
			Street:      os.Getenv("SOLODESK_SELLER_STREET"),
			PostalCode:  os.Getenv("SOLODESK_SELLER_POSTAL_CODE"),
			City:        os.Getenv("SOLODESK_SELLER_CITY"),
			Email:       os.Getenv("SOLODESK_SELLER_EMAIL"),
			Phone:       os.Getenv("SOLODESK_SELLER_PHONE"),
			BankAccount: os.Getenv("SOLODESK_SELLER_BANK_ACCOUNT"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalises the seller NIP and enforces the fields the FA(3)
// seller block requires: a name and a non-empty address line.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return apperrors.New(apperrors.KindValidation, "data directory must be configured")
	}
	name, err := entities.TrimRequired("seller_name", c.Seller.Name, entities.MaxNameLength)
	if err != nil {
		return err
	}
	c.Seller.Name = name
	nip, err := entities.NormalizeNIP(c.Seller.NIP)
	if err != nil {
		return err
	}
	c.Seller.NIP = nip
	if c.Seller.AddressLine() == "" {
		return apperrors.New(apperrors.KindValidation, "seller address must be configured")
	}
	if err := entities.ValidateEmail(c.Seller.Email); err != nil {
		return err
	}
	return nil
}

// DatabasePath is the embedded SQLite file under the data root.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "dashboard.db")
}

// XMLDir is the output directory for FA(3) XML artifacts.
func (c *Config) XMLDir() string {
	return filepath.Join(c.DataDir, "invoices", "xml")
}

// PDFDir is the output directory for PDF artifacts.
func (c *Config) PDFDir() string {
	return filepath.Join(c.DataDir, "invoices", "pdf")
}

// AddressLine assembles the single-line address used in the FA(3) AdresL1
// element: "<street>, <postal_code> <city>" with empty parts elided.
func (s SellerProfile) AddressLine() string {
	return JoinAddressLine(s.Street, s.PostalCode, s.City)
}

// JoinAddressLine builds "<street>, <postal> <city>", dropping whatever is
// missing (e.g. street only, or "00-001 Warszawa" without a street).
func JoinAddressLine(street, postalCode, city string) string {
	locality := postalCode
	if city != "" {
		if locality != "" {
			locality += " "
		}
		locality += city
	}
	switch {
	case street == "":
		return locality
	case locality == "":
		return street
	default:
		return street + ", " + locality
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
