package domain

import "errors"

var (
	ErrNotFound            = errors.New("record not found")
	ErrUnknownStatus       = errors.New("unknown status")
	ErrUnknownResourceKind = errors.New("unknown resource kind")
)
