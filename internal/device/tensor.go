package device

import "fmt"

// Tensor is a dense float32 tensor in row-major order. Stage tensors are
// job-scoped: they are allocated from a job Arena and become invalid when the
// arena is released.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NumElems returns the element count implied by the shape.
func (t *Tensor) NumElems() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// ShapeEquals reports whether the tensor has exactly the given shape.
func (t *Tensor) ShapeEquals(shape ...int) bool {
	if len(t.Shape) != len(shape) {
		return false
	}
	for i, d := range shape {
		if t.Shape[i] != d {
			return false
		}
	}
	return true
}

// ShapeString renders the shape for diagnostics, e.g. "[7 8 10 16]".
func (t *Tensor) ShapeString() string {
	return fmt.Sprintf("%v", t.Shape)
}
