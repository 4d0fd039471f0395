package cli

import "fmt"

// ExitError carries a process exit code out of a Cobra RunE function
// without calling os.Exit directly, keeping command behavior testable.
type ExitError struct {
	// Code is the exit code to return to the shell.
	Code int
}

// Error implements the error interface in the standard os/exec format.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewExitError creates an [ExitError] with the given exit code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError checks whether err is an [ExitError] and extracts its code.
func IsExitError(err error) (int, bool) {
	if exitErr, ok := err.(*ExitError); ok {
		return exitErr.Code, true
	}
	return 0, false
}
