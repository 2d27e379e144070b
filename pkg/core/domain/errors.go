package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrKeyExists       = errors.New("key already exists")
	ErrMalformedRecord = errors.New("malformed record")
)
