package scanners

import "errors"

var (
	// ErrUnavailable means the binary is missing or not executable.
	ErrUnavailable = errors.New("scanner unavailable")
	// ErrTimeout means the invocation exceeded its deadline and was killed.
	ErrTimeout = errors.New("scanner timed out")
	// ErrExecution means the tool exited non-zero without usable output.
	ErrExecution = errors.New("scanner execution failed")
	// ErrOutputParse means output was present but not in the expected format.
	ErrOutputParse = errors.New("scanner output could not be parsed")
	// ErrInvalidTarget means no invocation could be built from the target parameters.
	ErrInvalidTarget = errors.New("invalid target parameters")
)
