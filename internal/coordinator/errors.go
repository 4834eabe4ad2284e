package coordinator

import (
	"errors"
	"fmt"
)

var ErrPublish = errors.New("publish failed")

// RunError is the single error a failed run returns. Stage is the state the
// run was in when it failed.
type RunError struct {
	Stage State
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("sync run failed during %s: %v", e.Stage, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
