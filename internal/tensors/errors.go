package tensors

import "fmt"

// ShapeError reports a tensor whose shape does not match what a decoder needs.
type ShapeError struct {
	Tensor string
	Want   string
	Got    []int64
	// Reason is set when the shape itself is malformed.
	Reason string
}

func (e *ShapeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("tensor %q: shape %v: %s", e.Tensor, e.Got, e.Reason)
	}
	return fmt.Sprintf("tensor %q: shape %v, want %s", e.Tensor, e.Got, e.Want)
}

func shapeErr(name, want string, got []int64) error {
	return &ShapeError{Tensor: name, Want: want, Got: append([]int64(nil), got...)}
}
