package generation

import (
	"errors"
	"fmt"
)

// Common errors returned by Generator implementations
var (
	// ErrGeneratorNotFound is returned when the scaffolding tool cannot be located
	ErrGeneratorNotFound = errors.New("project generator not found")

	// ErrGeneratorFailed is returned when the tool ran but did not succeed
	ErrGeneratorFailed = errors.New("project generator failed")

	// ErrGeneratorTimeout is returned when the tool exceeded its time limit
	ErrGeneratorTimeout = errors.New("project generator timed out")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")
)

// ExitError reports a non-zero exit of the scaffolding tool together with
// whatever it wrote to its diagnostic stream.
type ExitError struct {
	Code        int
	Diagnostics string
}

func (e *ExitError) Error() string {
	if e.Diagnostics == "" {
		return fmt.Sprintf("generator exited with status %d", e.Code)
	}
	return e.Diagnostics
}

// Unwrap allows errors.Is(err, ErrGeneratorFailed).
func (e *ExitError) Unwrap() error {
	return ErrGeneratorFailed
}
