package core

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors - centralized error definitions
var (
	// Input errors
	ErrInvalidContingencyTable = errors.New("invalid contingency table")
	ErrInsufficientData        = errors.New("insufficient data: filtered universe is empty")

	// Statistical undefined-ness is a first-class result, distinct from zero.
	ErrNotComputable = errors.New("metric not computable for given counts")

	// Clustering errors
	ErrInsufficientCasesForClustering = errors.New("insufficient cases for clustering")

	// Duplicate detection errors
	ErrCaseLimitExceeded = errors.New("case count exceeds pairwise comparison limit")

	// Execution errors
	ErrExecutionUnavailable = errors.New("no execution venue can run this operation")
	ErrUnknownOperation     = errors.New("unknown operation")
	ErrStaleDatasetVersion  = errors.New("cached result belongs to a stale dataset version")
)

// TimeoutPartialError reports a stage budget overrun together with whatever
// was computed before the deadline. Callers must never mistake the partial
// payload for a complete result.
type TimeoutPartialError struct {
	Operation string
	Budget    time.Duration
	Partial   interface{}
}

func (e *TimeoutPartialError) Error() string {
	return fmt.Sprintf("operation %s exceeded budget %s; partial result attached", e.Operation, e.Budget)
}

// NewTimeoutPartial constructs a TimeoutPartialError
func NewTimeoutPartial(operation string, budget time.Duration, partial interface{}) *TimeoutPartialError {
	return &TimeoutPartialError{Operation: operation, Budget: budget, Partial: partial}
}

// Error constructors with context
func NewInvalidTableError(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidContingencyTable, reason)
}

func NewNotComputableError(metric, reason string) error {
	return fmt.Errorf("%w: %s (%s)", ErrNotComputable, metric, reason)
}

func NewClusteringError(have, need int) error {
	return fmt.Errorf("%w: have %d cases, need %d", ErrInsufficientCasesForClustering, have, need)
}

func NewCaseLimitError(have, limit int) error {
	return fmt.Errorf("%w: %d cases, limit %d (pre-filter by drug first)", ErrCaseLimitExceeded, have, limit)
}

// Error checking helpers
func IsNotComputable(err error) bool {
	return errors.Is(err, ErrNotComputable)
}

func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}

func IsTimeoutPartial(err error) bool {
	var tp *TimeoutPartialError
	return errors.As(err, &tp)
}

// PartialResult extracts the partial payload from a timeout error, if any
func PartialResult(err error) (interface{}, bool) {
	var tp *TimeoutPartialError
	if errors.As(err, &tp) {
		return tp.Partial, true
	}
	return nil, false
}
