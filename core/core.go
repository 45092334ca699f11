// Package core wires configuration, storage and the service layer into a
// single handle an embedding dashboard owns for its whole lifetime.
package core

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/solodesk/invoice-module/apperrors"
	"github.com/solodesk/invoice-module/config"
	"github.com/solodesk/invoice-module/database"
	"github.com/solodesk/invoice-module/services"
)

// Core exposes the wired services. Callers invoke operations directly on
// Clients and Invoices; there is no transport in between.
type Core struct {
	Config   *config.Config
	DB       *gorm.DB
	Log      zerolog.Logger
	Clients  *services.ClientService
	Invoices *services.InvoiceService
}

// New opens and migrates the embedded database, prepares the artifact
// directories and builds the service graph. Passing a nil config loads one
// from the environment.
func New(cfg *config.Config) (*Core, error) {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	logger := newLogger(cfg.LogLevel)

	db, err := database.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		database.Close(db)
		return nil, err
	}

	for _, dir := range []string{cfg.XMLDir(), cfg.PDFDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			database.Close(db)
			return nil, apperrors.Wrap(apperrors.KindIO, fmt.Sprintf("failed to create artifact directory %s", dir), err)
		}
	}

	validator := services.NewXmllintValidator(cfg.ValidatorCommand, cfg.SchemaPath)
	numbering := services.NewNumberingService(logger)
	fa3 := services.NewFA3Service(cfg.XMLDir(), cfg.SystemInfo, validator, logger)
	pdf := services.NewPDFService(cfg.PDFDir(), services.NewPlatformFontResolver(), logger)

	c := &Core{
		Config:   cfg,
		DB:       db,
		Log:      logger,
		Clients:  services.NewClientService(db, logger),
		Invoices: services.NewInvoiceService(db, cfg.Seller, numbering, fa3, pdf, logger),
	}
	logger.Info().Str("data_dir", cfg.DataDir).Msg("invoice module ready")
	return c, nil
}

// Close releases the embedded database handle.
func (c *Core) Close() error {
	return database.Close(c.DB)
}

func newLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(parsed).With().Timestamp().Logger()
}
