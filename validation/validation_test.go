package validation

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCurrencyCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"978", true},
		{"840", true},
		{"000", true},
		{"", false},
		{"97", false},
		{"9780", false},
		{"EUR", false},
		{"97a", false},
		{" 978", false},
		{"978\n", false},
		{"٩٧٨", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCurrencyCode(tt.code))
		})
	}
}

type transfer struct {
	Amount   int64   `json:"amount" validate:"gt=0"`
	Currency string  `json:"currency" validate:"currency_code"`
	Fee      *string `json:"fee,omitempty" validate:"currency_code"`
	Internal string  `json:"-" validate:"currency_code"`
}

func TestCurrencyCodeTag(t *testing.T) {
	v := New()
	eur, bad, empty := "978", "EURO", ""

	tests := []struct {
		name   string
		in     transfer
		fields []string
	}{
		{name: "valid", in: transfer{Amount: 1, Currency: "978", Fee: &eur, Internal: "840"}},
		{name: "nil pointer passes", in: transfer{Amount: 1, Currency: "978", Internal: "840"}},
		{name: "empty code", in: transfer{Amount: 1, Internal: "840"}, fields: []string{"currency"}},
		{name: "alphabetic code", in: transfer{Amount: 1, Currency: "EUR", Internal: "840"}, fields: []string{"currency"}},
		{name: "pointer value", in: transfer{Amount: 1, Currency: "978", Fee: &bad, Internal: "840"}, fields: []string{"fee"}},
		{name: "empty pointer value", in: transfer{Amount: 1, Currency: "978", Fee: &empty, Internal: "840"}, fields: []string{"fee"}},
		{name: "untagged field name", in: transfer{Amount: 1, Currency: "978", Internal: "12"}, fields: []string{"Internal"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in)
			if len(tt.fields) == 0 {
				assert.NoError(t, err)
				return
			}

			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs), "expected ValidationErrors, got %v", err)
			var got []string
			for _, fe := range verrs {
				got = append(got, fe.Field())
				assert.Equal(t, CurrencyCodeMessage, Message(fe))
				assert.Equal(t, "transfer", ObjectName(fe))
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestCurrencyCodeVar(t *testing.T) {
	v := New()

	assert.NoError(t, v.Var("978", CurrencyCodeTag))
	assert.Error(t, v.Var("", CurrencyCodeTag))
	assert.NoError(t, v.Var((*string)(nil), CurrencyCodeTag))
	assert.Error(t, v.Var("12", CurrencyCodeTag))
	assert.Error(t, v.Var(978, CurrencyCodeTag))
}

func TestRegisterCurrencyCode(t *testing.T) {
	assert.Error(t, RegisterCurrencyCode(nil))

	v := validator.New()
	require.NoError(t, RegisterCurrencyCode(v))
	assert.Error(t, v.Var("abc", CurrencyCodeTag))
}

func TestMessage(t *testing.T) {
	type payment struct {
		Reference string `json:"reference" validate:"required"`
		Amount    int64  `json:"amount" validate:"gt=0"`
		Status    string `json:"status" validate:"omitempty,oneof=NEW PAID"`
		Note      string `json:"note" validate:"omitempty,alphanum"`
	}

	err := New().Struct(payment{Status: "LOST", Note: "no spaces!"})
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))

	got := map[string]string{}
	for _, fe := range verrs {
		got[fe.Field()] = Message(fe)
	}
	assert.Equal(t, map[string]string{
		"reference": "must not be null",
		"amount":    "must be greater than 0",
		"status":    "must be one of [NEW PAID]",
		"note":      "alphanum",
	}, got)
}
