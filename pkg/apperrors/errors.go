package apperrors

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrNoTransaction        = errors.New("no transaction in context")
	ErrInvalidAttributeType = errors.New("invalid search attribute type")
	ErrInvalidScopeKey      = errors.New("invalid search attribute scope key")
)
