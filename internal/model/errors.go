// Package model defines shared data structures.
package model

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat is returned when an archive has no locatable package document.
	ErrFormat = errors.New("format error")
	// ErrValidation is returned when edited text still holds untypable characters.
	ErrValidation = errors.New("validation error")
	// ErrNotFound is returned when a book or chapter document is absent.
	ErrNotFound = errors.New("not found")
	// ErrPersistence is returned when a save call fails.
	ErrPersistence = errors.New("persistence failure")
	// ErrCancelled is returned when the user abandons staged changes.
	ErrCancelled = errors.New("cancelled")
	// ErrRateLimited is returned when the daily text-generation quota is spent.
	ErrRateLimited = errors.New("rate limited")
)

// FormatError describes why an archive could not be read as a book.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format error: %s", e.Reason)
}

// Unwrap lets errors.Is match ErrFormat.
func (e *FormatError) Unwrap() error { return ErrFormat }

// ValidationError reports the first untypable character left in a replacement.
type ValidationError struct {
	Char rune
	Text string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %q (U+%04X) cannot be typed", e.Char, e.Char)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error { return ErrValidation }
