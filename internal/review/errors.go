package review

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrSessionNotFound is returned for unknown or expired sessions
	ErrSessionNotFound = errors.New("review session not found")

	// ErrSessionClosed is returned for edits after approval or rejection
	ErrSessionClosed = errors.New("review session is closed")

	// ErrOperationInFlight is returned while another network operation of
	// the same session is pending
	ErrOperationInFlight = errors.New("another operation is in progress for this session")

	// ErrIndexOutOfRange is returned for an activity index outside the working set
	ErrIndexOutOfRange = errors.New("activity index out of range")

	// ErrReasonRequired is returned when rejecting without a reason
	ErrReasonRequired = errors.New("a rejection reason is required")
)

// ValidationError lists per-activity problems that block an operation
type ValidationError struct {
	Op     string         `json:"op"`
	Errors map[int]string `json:"errors"`
}

func (e *ValidationError) Error() string {
	indices := make([]int, 0, len(e.Errors))
	for i := range e.Errors {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	parts := make([]string, len(indices))
	for n, i := range indices {
		parts[n] = fmt.Sprintf("activity %d: %s", i, e.Errors[i])
	}
	return fmt.Sprintf("%s blocked: %s", e.Op, strings.Join(parts, "; "))
}

// IsValidation reports whether err is a *ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
