package lib

import "fmt"

// WrapError attaches an inner cause to an outer sentinel error. Both errors
// remain matchable with errors.Is.
func WrapError(outer, inner error) error {
	return fmt.Errorf("%w: %w", outer, inner)
}
