package extractor

import "fmt"

// ToolError is returned when the extraction tool ran and exited with a non-zero code.
// All causes (network failure, unsupported URL, tool crash) collapse into this one kind.
type ToolError struct {
	Tool     string // Binary that was executed
	ExitCode int    // Positive process exit code
	Stderr   string // Full captured error stream
	Err      error  // Error reported by the process runner
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
