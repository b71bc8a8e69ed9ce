package store

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when no item has the requested id.
var ErrNotFound = errors.New("item not found")

// ValidationError carries every field rule an item failed.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "invalid item: " + strings.Join(e.Messages, "; ")
}
