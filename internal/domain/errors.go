package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidGrid is matched by every *InvalidGridError.
	ErrInvalidGrid = errors.New("invalid grid")

	// ErrShapeMismatch reports fields whose (time, lat, lon) shapes disagree.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrMissingArtifact means none of a date's detection records exist.
	ErrMissingArtifact = errors.New("missing detection artifact")

	// ErrPartialArtifact means some but not all of a date's records exist.
	ErrPartialArtifact = errors.New("partial detection artifact")

	// ErrCorruptArtifact means the records exist but do not agree with each other
	// or with the grid.
	ErrCorruptArtifact = errors.New("corrupt detection artifact")
)

// InvalidGridError describes why a latitude or longitude axis was rejected.
type InvalidGridError struct {
	Axis   string // "latitude" or "longitude"
	Reason string
}

func (e *InvalidGridError) Error() string {
	return fmt.Sprintf("invalid grid: %s: %s", e.Axis, e.Reason)
}

func (e *InvalidGridError) Is(target error) bool {
	return target == ErrInvalidGrid
}

// IncompleteInputError lists the dates whose detection artifacts could not be
// loaded during a strict tracking pass.
type IncompleteInputError struct {
	Dates  []time.Time
	Causes []error
}

func (e *IncompleteInputError) Error() string {
	days := make([]string, 0, len(e.Dates))
	for _, d := range e.Dates {
		days = append(days, DateKey(d))
	}
	const maxListed = 10
	if len(days) > maxListed {
		days = append(days[:maxListed], fmt.Sprintf("... (%d more)", len(e.Dates)-maxListed))
	}
	return fmt.Sprintf("incomplete tracking input: %d date(s) could not be loaded: %s",
		len(e.Dates), strings.Join(days, ", "))
}

func (e *IncompleteInputError) Unwrap() []error {
	return e.Causes
}
