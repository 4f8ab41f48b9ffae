package integral

import "fmt"

// PreconditionError reports a violated call contract: mismatched buffer
// sizes, an axis outside [2, MaxAxis], or a negative box origin.
//
// Preconditions are programming errors. They are raised with panic so
// that they cannot be confused with the recoverable errors returned by
// setup and submission.
type PreconditionError struct {
	// Op is the operation that was called, e.g. "ComputeIntegral".
	Op string

	// Reason describes the violated condition.
	Reason string
}

func (e *PreconditionError) Error() string {
	return "integral: " + e.Op + ": " + e.Reason
}

// precondition panics with a *PreconditionError.
func precondition(op, format string, args ...any) {
	panic(&PreconditionError{Op: op, Reason: fmt.Sprintf(format, args...)})
}

// checkAxes panics unless width and height are valid pipeline dimensions.
func checkAxes(op string, width, height int) {
	switch {
	case width <= 0 || height <= 0:
		precondition(op, "empty image %dx%d", width, height)
	case height < 2:
		precondition(op, "height must be at least 2, got %d", height)
	case width > MaxAxis || height > MaxAxis:
		precondition(op, "image %dx%d exceeds the %d element axis limit", width, height, MaxAxis)
	}
}
