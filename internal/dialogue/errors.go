package dialogue

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientRemote marks a failed exchange with the remote model.
	ErrTransientRemote = errors.New("remote model call failed")

	// ErrEmptyReport is returned for empty or whitespace-only report text.
	ErrEmptyReport = errors.New("report text is empty")
)

// RemoteError is returned when every dialogue attempt failed.
// It matches ErrTransientRemote and the last underlying error.
type RemoteError struct {
	Attempts uint
	Err      error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote model failed after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap exposes both the sentinel and the last failure to errors.Is/As.
func (e *RemoteError) Unwrap() []error {
	return []error{ErrTransientRemote, e.Err}
}
