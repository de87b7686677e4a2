package adapt

import "fmt"

// IterationError reports where a fatal failure happened in the loop
type IterationError struct {
	Iteration int
	State     State
	Element   int // -1 when no element is involved
	Err       error
}

func (e *IterationError) Error() string {
	if e.Element >= 0 {
		return fmt.Sprintf("iteration %d, %s, element %d: %v", e.Iteration, e.State, e.Element, e.Err)
	}
	return fmt.Sprintf("iteration %d, %s: %v", e.Iteration, e.State, e.Err)
}

func (e *IterationError) Unwrap() error { return e.Err }
