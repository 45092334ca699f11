package services

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/solodesk/invoice-module/apperrors"
)

const maxArtifactFilenameBytes = 255

var (
	pathSeparators  = strings.NewReplacer("/", "-", "\\", "-")
	unsafeRunRegexp = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	dashRunRegexp   = regexp.MustCompile(`-{2,}`)
)

func invalidFilename(invoiceNumber, reason string) *apperrors.Error {
	return apperrors.Newf(apperrors.KindValidation, "invalid artifact filename: %s", reason).
		WithDetail("code", "INVALID_FILENAME").
		WithDetail("invoice_number", invoiceNumber)
}

// ArtifactFilename derives the deterministic artifact filename for an invoice
// number: path separators become "-", every other unsafe run collapses to a
// single "-", consecutive dashes merge, and leading/trailing ".", "_", "-"
// are stripped before the extension is appended.
// "FV/2026/01/0001" + ".xml" -> "FV-2026-01-0001.xml".
func ArtifactFilename(invoiceNumber, ext string) (string, error) {
	name := pathSeparators.Replace(invoiceNumber)
	name = unsafeRunRegexp.ReplaceAllString(name, "-")
	name = dashRunRegexp.ReplaceAllString(name, "-")
	name = strings.Trim(name, "._-")
	if name == "" {
		return "", invalidFilename(invoiceNumber, "empty after sanitisation")
	}
	name += ext
	if len(name) > maxArtifactFilenameBytes {
		return "", invalidFilename(invoiceNumber, "longer than 255 bytes")
	}
	if strings.Contains(name, "..") {
		return "", invalidFilename(invoiceNumber, "contains \"..\"")
	}
	if filepath.IsAbs(name) || strings.ContainsAny(name, `/\`) {
		return "", invalidFilename(invoiceNumber, "contains a path separator")
	}
	return name, nil
}

// ResolveArtifactPath joins dir and filename and confirms that the absolute
// result still lies inside dir.
func ResolveArtifactPath(dir, filename string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindIO, "failed to resolve artifact directory", err)
	}
	path, err := filepath.Abs(filepath.Join(absDir, filename))
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindIO, "failed to resolve artifact path", err)
	}
	if !strings.HasPrefix(path, absDir+string(filepath.Separator)) {
		return "", invalidFilename(filename, "escapes the artifact directory")
	}
	return path, nil
}

// writeArtifact writes data with open-write-sync-close semantics, creating
// the directory on demand. Filenames are deterministic, so a retry simply
// overwrites a previous partial write.
func writeArtifact(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.Wrap(apperrors.KindIO, "failed to create artifact directory", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return apperrors.Wrap(apperrors.KindIO, "failed to create artifact file", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return apperrors.Wrap(apperrors.KindIO, "failed to write artifact file", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return apperrors.Wrap(apperrors.KindIO, "failed to sync artifact file", err)
	}
	if err := f.Close(); err != nil {
		return apperrors.Wrap(apperrors.KindIO, "failed to close artifact file", err)
	}
	return nil
}
