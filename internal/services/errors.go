package services

import (
	"errors"
	"fmt"
)

// Marker errors classify failures so callers can decide retry and
// presentation behavior with errors.Is.
var (
	// ErrValidation marks caller mistakes such as malformed identifiers or
	// missing input files.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks lookups for jobs or projects that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks failures that are likely to succeed on retry, such
	// as locked databases or interrupted network transfers.
	ErrTransient = errors.New("transient error")
	// ErrExternalTool marks failures reported by pdal or PotreeConverter.
	ErrExternalTool = errors.New("external tool error")
	// ErrConfiguration marks unusable configuration discovered at runtime.
	ErrConfiguration = errors.New("configuration error")
)

// Wrap annotates err with a classification marker plus step and operation
// context. A nil err returns nil.
func Wrap(marker error, step, op, msg string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case step != "" && op != "":
		return fmt.Errorf("%w: %s/%s: %s: %w", marker, step, op, msg, err)
	case step != "":
		return fmt.Errorf("%w: %s: %s: %w", marker, step, msg, err)
	case op != "":
		return fmt.Errorf("%w: %s: %s: %w", marker, op, msg, err)
	default:
		return fmt.Errorf("%w: %s: %w", marker, msg, err)
	}
}

// Mark attaches a classification marker to err without extra context.
func Mark(marker error, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", marker, err)
}
