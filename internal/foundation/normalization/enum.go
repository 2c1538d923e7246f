// Package normalization maps loosely written user input onto typed enums.
package normalization

import (
	"fmt"
	"slices"
	"strings"

	"git.home.luguber.info/inful/mergekeeper/internal/foundation/errors"
)

// Enum normalizes strings into values of T. Lookups ignore case and
// surrounding whitespace.
type Enum[T comparable] struct {
	name     string
	values   map[string]T
	fallback T
	keys     []string
}

// NewEnum creates an Enum named name (used in error messages). Normalize
// returns fallback for unknown input.
func NewEnum[T comparable](name string, values map[string]T, fallback T) *Enum[T] {
	e := &Enum[T]{name: name, values: make(map[string]T, len(values)), fallback: fallback}
	for k, v := range values {
		key := normalize(k)
		e.values[key] = v
		e.keys = append(e.keys, key)
	}
	slices.Sort(e.keys)
	return e
}

// Normalize returns the value for raw, or the fallback.
func (e *Enum[T]) Normalize(raw string) T {
	if v, ok := e.values[normalize(raw)]; ok {
		return v
	}
	return e.fallback
}

// Parse returns the value for raw or a validation error listing the
// accepted spellings.
func (e *Enum[T]) Parse(raw string) (T, error) {
	if v, ok := e.values[normalize(raw)]; ok {
		return v, nil
	}
	var zero T
	return zero, errors.ValidationError(fmt.Sprintf("invalid %s %q", e.name, raw)).
		WithContext("valid", strings.Join(e.keys, ", ")).
		Build()
}

// Known reports whether raw names a value.
func (e *Enum[T]) Known(raw string) bool {
	_, ok := e.values[normalize(raw)]
	return ok
}

// Keys returns the accepted spellings, sorted.
func (e *Enum[T]) Keys() []string {
	return slices.Clone(e.keys)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
