package cli

import "fmt"

// Exit codes used by check and wait.
const (
	ExitComplete = 0
	ExitFailed   = 1
	ExitPending  = 2
)

// ExitError carries a process exit code out of a command. Err may be nil
// when the outcome was already printed.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}
