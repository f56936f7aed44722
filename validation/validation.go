// Package validation provides struct validation with the constraints shared
// by sme-finance services.
//
// It builds on go-playground/validator and adds the currency_code tag:
//
//	type Transfer struct {
//	    Amount   int64  `json:"amount" validate:"gt=0"`
//	    Currency string `json:"currency" validate:"currency_code"`
//	}
//
//	v := validation.New()
//	if err := v.Struct(transfer); err != nil {
//	    translator.Write(w, r, err)
//	}
//
// Field names in validation errors are taken from the json tag when present.
package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// New returns a validator with the currency_code constraint registered and
// json field names enabled.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	if err := RegisterCurrencyCode(v); err != nil {
		// Registration only fails for an empty tag or nil func.
		panic(err)
	}
	return v
}

// RegisterCurrencyCode adds the currency_code constraint to an existing validator.
func RegisterCurrencyCode(v *validator.Validate) error {
	if v == nil {
		return fmt.Errorf("validation: validator is nil")
	}
	if err := v.RegisterValidation(CurrencyCodeTag, validateCurrencyCode, true); err != nil {
		return fmt.Errorf("validation: failed to register %s: %w", CurrencyCodeTag, err)
	}
	return nil
}

// Message returns the human readable message for a failed constraint. Tags
// without a known message fall back to the tag itself.
func Message(fe validator.FieldError) string {
	switch fe.Tag() {
	case CurrencyCodeTag:
		return CurrencyCodeMessage
	case "required":
		return "must not be null"
	case "min", "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", fe.Param())
	case "email":
		return "must be a well-formed email address"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	}
	return fe.Tag()
}

// ObjectName returns the lower camel case name of the struct that owns the
// failing field, e.g. "transferDTO" for "TransferDTO.currency".
func ObjectName(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[:i]
	}
	if ns == "" {
		return ""
	}
	return strings.ToLower(ns[:1]) + ns[1:]
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}
