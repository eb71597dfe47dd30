package domain

import "errors"

var (
	ErrInvalidChannel   = errors.New("invalid channel")
	ErrInvalidLevel     = errors.New("invalid level")
	ErrInvalidName      = errors.New("invalid preset name")
	ErrInvalidBand      = errors.New("invalid eq band")
	ErrPresetNotFound   = errors.New("preset not found")
	ErrDocumentTooLarge = errors.New("document too large")
	ErrMalformedDoc     = errors.New("malformed document")
)
