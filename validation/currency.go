package validation

import (
	"reflect"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// CurrencyCodeTag is the struct tag that enables the currency code constraint.
const CurrencyCodeTag = "currency_code"

// CurrencyCodeMessage is reported for values that fail CurrencyCodeTag.
const CurrencyCodeMessage = "Currency code must follow 3-digit ISO 4217 format"

var currencyCodePattern = regexp.MustCompile(`^\d{3}$`)

// IsCurrencyCode reports whether s is a three digit ISO 4217 numeric code such as "978".
func IsCurrencyCode(s string) bool {
	return currencyCodePattern.MatchString(s)
}

// validateCurrencyCode treats an absent value (nil pointer or interface) as
// valid. Present strings, including "", must match the pattern.
func validateCurrencyCode(fl validator.FieldLevel) bool {
	field := fl.Field()
	switch field.Kind() {
	case reflect.String:
		return IsCurrencyCode(field.String())
	case reflect.Ptr, reflect.Interface:
		return field.IsNil()
	case reflect.Invalid:
		return true
	default:
		return false
	}
}
