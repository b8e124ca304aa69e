package app

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
)

// ValidationSettings toggles each request check.
type ValidationSettings struct {
	RequireParameters   bool
	ValidatePhoneFormat bool
	CheckFromNumbers    bool
	AllowedFromNumbers  NumberSet
}

// RequestValidator applies the provider's request checks in a fixed order:
// required parameters, phone number format (From then To), allowed From.
type RequestValidator struct {
	settings ValidationSettings
	validate *validator.Validate
}

func NewRequestValidator(settings ValidationSettings) *RequestValidator {
	if settings.AllowedFromNumbers == nil {
		settings.AllowedFromNumbers = NumberSet{}
	}
	v := validator.New()
	// Report fields by their Twilio parameter name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("param"), ",", 2)[0]
		if name == "" {
			return fld.Name
		}
		return name
	})
	return &RequestValidator{settings: settings, validate: v}
}

func (v *RequestValidator) check(input any, from, to string) *RequestError {
	if v.settings.RequireParameters {
		if err := v.validate.Struct(input); err != nil {
			if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
				return missingParameter(verrs[0].Field())
			}
			return &RequestError{Code: CodeMissingTo, Message: err.Error()}
		}
	}

	if v.settings.ValidatePhoneFormat {
		if !IsValidPhoneNumber(from) {
			return invalidPhoneNumber("From", from)
		}
		if !IsValidPhoneNumber(to) {
			return invalidPhoneNumber("To", to)
		}
	}

	if v.settings.CheckFromNumbers && !v.settings.AllowedFromNumbers.Contains(from) {
		return fromNotAllowed(from)
	}
	return nil
}

// IsValidPhoneNumber reports whether number is a valid E.164 number. Numbers
// without a leading + have no region to parse against and are rejected.
func IsValidPhoneNumber(number string) bool {
	parsed, err := phonenumbers.Parse(number, "")
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(parsed)
}
