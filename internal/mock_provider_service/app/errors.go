package app

import (
	"errors"
	"fmt"
)

// Twilio error codes returned for rejected requests.
const (
	CodeAuthenticationFailed = 20003
	CodeNotFound             = 20404
	CodeMissingURL           = 21205
	CodeInvalidTo            = 21211
	CodeInvalidFrom          = 21212
	CodeMissingBody          = 21602
	CodeMissingFrom          = 21603
	CodeMissingTo            = 21604
	CodeFromNotAllowed       = 21606
)

var ErrSchedulerClosed = errors.New("service is shutting down")

// RequestError is a synchronous rejection of an inbound API request.
type RequestError struct {
	Code    int
	Field   string
	Value   string
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request rejected (%d): %s", e.Code, e.Message)
}

func missingParameter(field string) *RequestError {
	code := CodeMissingTo
	switch field {
	case "From":
		code = CodeMissingFrom
	case "Body":
		code = CodeMissingBody
	case "Url":
		code = CodeMissingURL
	}
	return &RequestError{
		Code:    code,
		Field:   field,
		Message: fmt.Sprintf("A '%s' parameter is required.", field),
	}
}

func invalidPhoneNumber(field, value string) *RequestError {
	code := CodeInvalidTo
	if field == "From" {
		code = CodeInvalidFrom
	}
	return &RequestError{
		Code:    code,
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("The '%s' number %s is not a valid phone number.", field, value),
	}
}

func fromNotAllowed(value string) *RequestError {
	return &RequestError{
		Code:    CodeFromNotAllowed,
		Field:   "From",
		Value:   value,
		Message: fmt.Sprintf("The From phone number %s is not a valid, SMS-capable inbound phone number or short code for your account.", value),
	}
}
