package helper

import "fmt"

// NewError wraps err with the operation that failed. The operation should
// name what was attempted, e.g. "scan" or "load nodes sql".
func NewError(operation string, err error) error {
	return fmt.Errorf("error in %v: %w", operation, err)
}
