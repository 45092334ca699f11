// Package money implements the fixed-point arithmetic of the invoicing core.
// Every amount is a non-negative integer in grosze (1/100 PLN) and every
// quantity is an integer in milli-units, so per-line VAT, per-rate subtotals
// and invoice grand totals reconcile to the grosz without float drift.
package money

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/solodesk/invoice-module/apperrors"
)

var (
	moneyPattern    = regexp.MustCompile(`^[0-9]+([.,][0-9]{1,2})?$`)
	quantityPattern = regexp.MustCompile(`^[0-9]+([.,][0-9]{1,3})?$`)
)

// Amounts carries the three computed values of a single line, or — summed —
// of a whole invoice (Net = subtotal, VAT = tax, Gross = total).
type Amounts struct {
	Net   int64
	VAT   int64
	Gross int64
}

// ParseMoney converts a user-supplied amount to grosze. The comma and the dot
// are both accepted as the decimal separator; at most two fractional digits;
// no sign, no thousand separators.
func ParseMoney(input string) (int64, error) {
	s := strings.TrimSpace(input)
	if !moneyPattern.MatchString(s) {
		return 0, apperrors.Newf(apperrors.KindValidation, "invalid amount format: %q", input)
	}
	d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return 0, apperrors.Newf(apperrors.KindValidation, "invalid amount format: %q", input)
	}
	grosze := d.Shift(2)
	if !grosze.BigInt().IsInt64() {
		return 0, apperrors.New(apperrors.KindValidation, "amount too large")
	}
	return grosze.IntPart(), nil
}

// FormatMoney renders grosze as a plain decimal with exactly two fractional
// digits and no thousand separators, e.g. 12300 -> "123.00".
func FormatMoney(grosze int64) string {
	return decimal.New(grosze, -2).StringFixed(2)
}

// ParseQuantity converts a quantity string to milli-units (three implied
// fractional digits). Quantities must be strictly positive.
func ParseQuantity(input string) (int64, error) {
	s := strings.TrimSpace(input)
	if !quantityPattern.MatchString(s) {
		return 0, apperrors.Newf(apperrors.KindValidation, "invalid quantity format: %q", input)
	}
	d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return 0, apperrors.Newf(apperrors.KindValidation, "invalid quantity format: %q", input)
	}
	milli := d.Shift(3)
	if !milli.BigInt().IsInt64() {
		return 0, apperrors.New(apperrors.KindValidation, "amount too large")
	}
	v := milli.IntPart()
	if v <= 0 {
		return 0, apperrors.New(apperrors.KindValidation, "quantity must be > 0")
	}
	return v, nil
}

// NormalizeQuantity returns the canonical form stored on invoice items:
// leading zeros stripped down to one digit, trailing fractional zeros and a
// dangling separator removed ("2.500" -> "2.5", "007" -> "7", "3.000" -> "3").
func NormalizeQuantity(input string) (string, error) {
	s := strings.TrimSpace(input)
	if !quantityPattern.MatchString(s) {
		return "", apperrors.Newf(apperrors.KindValidation, "invalid quantity format: %q", input)
	}
	d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return "", apperrors.Newf(apperrors.KindValidation, "invalid quantity format: %q", input)
	}
	return d.String(), nil
}

// roundHalfUp divides with half-up rounding on non-negative integers.
func roundHalfUp(numerator, denominator int64) (int64, error) {
	half := denominator / 2
	if numerator > math.MaxInt64-half {
		return 0, apperrors.New(apperrors.KindInternal, "amount too large")
	}
	return (numerator + half) / denominator, nil
}

func mulChecked(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	p := a * b
	if p/a != b {
		return 0, apperrors.New(apperrors.KindInternal, "amount too large")
	}
	return p, nil
}

func addChecked(a, b int64) (int64, error) {
	s := a + b
	if s < a {
		return 0, apperrors.New(apperrors.KindInternal, "amount too large")
	}
	return s, nil
}

// LineAmounts computes net, VAT and gross for one line:
//
//	net   = roundHalfUp(unitPriceGrosze * quantityMilli, 1000)
//	vat   = roundHalfUp(net * rate, 100)  for numeric rates, 0 for ZW/NP
//	gross = net + vat
func LineAmounts(unitPriceGrosze, quantityMilli int64, rate VATRate) (Amounts, error) {
	if unitPriceGrosze < 0 {
		return Amounts{}, apperrors.New(apperrors.KindValidation, "unit price must not be negative")
	}
	if quantityMilli <= 0 {
		return Amounts{}, apperrors.New(apperrors.KindValidation, "quantity must be > 0")
	}
	if !rate.Valid() {
		return Amounts{}, apperrors.Newf(apperrors.KindValidation, "invalid VAT rate: %q", string(rate))
	}

	product, err := mulChecked(unitPriceGrosze, quantityMilli)
	if err != nil {
		return Amounts{}, err
	}
	net, err := roundHalfUp(product, 1000)
	if err != nil {
		return Amounts{}, err
	}

	var vat int64
	if percent, ok := rate.Percent(); ok {
		scaled, err := mulChecked(net, percent)
		if err != nil {
			return Amounts{}, err
		}
		if vat, err = roundHalfUp(scaled, 100); err != nil {
			return Amounts{}, err
		}
	}

	gross, err := addChecked(net, vat)
	if err != nil {
		return Amounts{}, err
	}
	return Amounts{Net: net, VAT: vat, Gross: gross}, nil
}

// Totals sums line amounts into invoice totals. Gross equals Net+VAT by
// construction of LineAmounts; the sums are computed independently.
func Totals(lines []Amounts) (Amounts, error) {
	var totals Amounts
	var err error
	for _, line := range lines {
		if totals.Net, err = addChecked(totals.Net, line.Net); err != nil {
			return Amounts{}, err
		}
		if totals.VAT, err = addChecked(totals.VAT, line.VAT); err != nil {
			return Amounts{}, err
		}
		if totals.Gross, err = addChecked(totals.Gross, line.Gross); err != nil {
			return Amounts{}, err
		}
	}
	return totals, nil
}
