package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrBookingConflict = errors.New("This product is already booked for the selected dates")
	ErrItemNotFound    = errors.New("item not found")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrForbidden       = errors.New("admin session required")
)

// ValidationError собирает ошибки по полям формы.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

func (e *ValidationError) has(field string) bool {
	_, ok := e.Fields[field]
	return ok
}

// errOrNil returns nil when no field failed.
func (e *ValidationError) errOrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}
