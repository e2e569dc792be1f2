// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// ErrInvalidInput is matched by every precondition failure.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputError reports a violated precondition. No matching work has
// been done when it is returned.
type InvalidInputError struct {
	// Collection is the collection the field was looked up in ("master" or
	// "candidate"); empty for non-field parameters.
	Collection string

	// Field names the missing field or the offending parameter.
	Field string

	// Message describes the violation.
	Message string

	// Suggestion is the closest existing field name, if any is close.
	Suggestion string
}

// Error implements the error interface.
func (e *InvalidInputError) Error() string {
	var b strings.Builder
	b.WriteString("invalid input: ")
	if e.Collection != "" {
		fmt.Fprintf(&b, "%s collection: ", e.Collection)
	}
	b.WriteString(e.Message)
	if e.Suggestion != "" {
		fmt.Fprintf(&b, " (did you mean %q?)", e.Suggestion)
	}
	return b.String()
}

// Is implements errors.Is support.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func missingField(collection, field string, schema []string) *InvalidInputError {
	return &InvalidInputError{
		Collection: collection,
		Field:      field,
		Message:    fmt.Sprintf("field %q not found", field),
		Suggestion: closestField(field, schema),
	}
}

// closestField returns the schema field nearest to name by case-insensitive
// Levenshtein distance, or "" when nothing is within half the name's length.
func closestField(name string, schema []string) string {
	target := []rune(strings.ToLower(name))
	best := ""
	bestDist := len(target)/2 + 1
	for _, f := range schema {
		d := levenshtein.DistanceForStrings(target, []rune(strings.ToLower(f)), levenshtein.DefaultOptions)
		if d < bestDist {
			best, bestDist = f, d
		}
	}
	return best
}
