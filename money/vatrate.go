package money

import (
	"encoding/json"
	"fmt"

	"github.com/solodesk/invoice-module/apperrors"
)

// VATRate is the tax-rate tag carried by an invoice line: one of the Polish
// percentage rates or an alphabetic marker. The database stores the tag as
// text; readers parse it back with ParseVATRate.
type VATRate string

const (
	Rate23 VATRate = "23"
	Rate8  VATRate = "8"
	Rate5  VATRate = "5"
	Rate0  VATRate = "0"
	// RateExempt marks a line exempt from VAT ("zwolnione").
	RateExempt VATRate = "ZW"
	// RateNotSubject marks a line not subject to VAT ("nie podlega").
	RateNotSubject VATRate = "NP"
)

// ParseVATRate validates membership in {23, 8, 5, 0, ZW, NP}.
func ParseVATRate(s string) (VATRate, error) {
	r := VATRate(s)
	if !r.Valid() {
		return "", apperrors.Newf(apperrors.KindValidation, "invalid VAT rate: %q", s)
	}
	return r, nil
}

func (r VATRate) Valid() bool {
	switch r {
	case Rate23, Rate8, Rate5, Rate0, RateExempt, RateNotSubject:
		return true
	}
	return false
}

// Percent returns the numeric percentage and true for numeric rates, or
// (0, false) for the ZW/NP markers.
func (r VATRate) Percent() (int64, bool) {
	switch r {
	case Rate23:
		return 23, true
	case Rate8:
		return 8, true
	case Rate5:
		return 5, true
	case Rate0:
		return 0, true
	}
	return 0, false
}

func (r VATRate) IsExempt() bool     { return r == RateExempt }
func (r VATRate) IsNotSubject() bool { return r == RateNotSubject }

// UnmarshalJSON accepts the rate either as a JSON number (23) or as a string
// ("23", "ZW").
func (r *VATRate) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := ParseVATRate(v)
		if err != nil {
			return err
		}
		*r = parsed
		return nil
	case float64:
		if v != float64(int64(v)) {
			return apperrors.Newf(apperrors.KindValidation, "invalid VAT rate: %v", v)
		}
		parsed, err := ParseVATRate(fmt.Sprintf("%d", int64(v)))
		if err != nil {
			return err
		}
		*r = parsed
		return nil
	default:
		return apperrors.Newf(apperrors.KindValidation, "invalid VAT rate: %v", raw)
	}
}
