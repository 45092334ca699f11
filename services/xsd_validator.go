package services

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"github.com/solodesk/invoice-module/apperrors"
)

// XSDValidator gates the emission of an FA(3) document: an invoice XML is
// only recorded once Validate accepts the written file. Implementations run
// out of process; tests substitute a stub.
type XSDValidator interface {
	Validate(ctx context.Context, xmlPath string) error
}

// XmllintValidator shells out to an XML validator (xmllint by default) with
// the government-published FA(3) XSD. The schema is an opaque on-disk asset
// configured by path; it is not embedded in the binary.
type XmllintValidator struct {
	Command    string
	SchemaPath string
}

func NewXmllintValidator(command, schemaPath string) *XmllintValidator {
	if command == "" {
		command = "xmllint"
	}
	return &XmllintValidator{Command: command, SchemaPath: schemaPath}
}

// Validate runs `<command> --noout --schema <xsd> <file>` and waits for it.
// A non-zero exit becomes FA3_VALIDATION_FAILED with the validator's stderr
// preserved verbatim in the error details.
func (v *XmllintValidator) Validate(ctx context.Context, xmlPath string) error {
	if v.SchemaPath == "" {
		return apperrors.New(apperrors.KindIO, "FA(3) schema path is not configured")
	}

	cmd := exec.CommandContext(ctx, v.Command, "--noout", "--schema", v.SchemaPath, xmlPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return apperrors.Wrap(apperrors.KindIO, "XSD validation cancelled", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return apperrors.New(apperrors.KindFA3ValidationFailed, "generated XML rejected by the FA(3) schema").
				WithDetail("stderr", stderr.String()).
				WithDetail("exit_code", exitErr.ExitCode()).
				WithDetail("xml_path", xmlPath)
		}
		return apperrors.Wrap(apperrors.KindIO, "failed to run the XSD validator", err)
	}
	return nil
}
