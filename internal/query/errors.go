package query

import (
	"errors"
)

var (
	// ErrMalformedClause is returned for a filter clause that does not follow the mini-language.
	ErrMalformedClause = errors.New("malformed filter clause")

	// ErrInvalidField is returned for a field name that is not a plain dotted path.
	ErrInvalidField = errors.New("invalid field name")

	// ErrInvalidRegex is returned for a regular expression that does not compile.
	ErrInvalidRegex = errors.New("invalid regular expression")

	// ErrInvalidProjection is returned when a projection mixes inclusion and exclusion.
	ErrInvalidProjection = errors.New("projection cannot mix inclusion and exclusion")
)
