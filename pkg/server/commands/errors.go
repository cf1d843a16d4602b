package commands

import "fmt"

// InvalidArgumentError reports a request that was rejected before reaching the datastore.
type InvalidArgumentError struct {
	Cause error
}

func (e *InvalidArgumentError) Unwrap() error {
	return e.Cause
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument: %v", e.Cause)
}
