package money_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solodesk/invoice-module/apperrors"
	"github.com/solodesk/invoice-module/money"
)

func TestParseVATRate(t *testing.T) {
	for _, s := range []string{"23", "8", "5", "0", "ZW", "NP"} {
		rate, err := money.ParseVATRate(s)
		require.NoError(t, err, "rate %q", s)
		assert.Equal(t, money.VATRate(s), rate)
	}

	for _, s := range []string{"", "19", "zw", "np", "23%", "VAT"} {
		_, err := money.ParseVATRate(s)
		require.Error(t, err, "rate %q", s)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	}
}

func TestVATRate_Percent(t *testing.T) {
	for rate, want := range map[money.VATRate]int64{
		money.Rate23: 23,
		money.Rate8:  8,
		money.Rate5:  5,
		money.Rate0:  0,
	} {
		percent, ok := rate.Percent()
		assert.True(t, ok, "rate %s", rate)
		assert.Equal(t, want, percent, "rate %s", rate)
	}

	for _, rate := range []money.VATRate{money.RateExempt, money.RateNotSubject} {
		_, ok := rate.Percent()
		assert.False(t, ok, "rate %s", rate)
		assert.Equal(t, int64(0), mustVAT(t, rate))
	}
}

func mustVAT(t *testing.T, rate money.VATRate) int64 {
	t.Helper()
	amounts, err := money.LineAmounts(10000, 1000, rate)
	require.NoError(t, err)
	return amounts.VAT
}

// The JSON boundary accepts the rate both ways round: {"rate": 23} and
// {"rate": "23"} mean the same thing.
func TestVATRate_UnmarshalJSON(t *testing.T) {
	type payload struct {
		Rate money.VATRate `json:"rate"`
	}

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"rate": 23}`), &p))
	assert.Equal(t, money.Rate23, p.Rate)

	require.NoError(t, json.Unmarshal([]byte(`{"rate": "8"}`), &p))
	assert.Equal(t, money.Rate8, p.Rate)

	require.NoError(t, json.Unmarshal([]byte(`{"rate": "ZW"}`), &p))
	assert.Equal(t, money.RateExempt, p.Rate)

	require.NoError(t, json.Unmarshal([]byte(`{"rate": 0}`), &p))
	assert.Equal(t, money.Rate0, p.Rate)

	for _, raw := range []string{`{"rate": 23.5}`, `{"rate": 19}`, `{"rate": true}`, `{"rate": "vat"}`} {
		assert.Error(t, json.Unmarshal([]byte(raw), &p), "payload %s", raw)
	}
}
