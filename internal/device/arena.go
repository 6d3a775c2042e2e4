package device

import "sync"

// Arena owns all device memory allocated on behalf of a single job.
// Every stage tensor comes out of the job's arena so that a single deferred
// Release covers every exit path; a failed or cancelled job can never leave
// allocations behind for the next one.
type Arena struct {
	mu        sync.Mutex
	usedBytes int64
	released  bool
}

// NewArena returns an empty arena for one job.
func NewArena() *Arena { return &Arena{} }

// NewTensor allocates a zeroed tensor of the given shape and records its size.
// Allocating from a released arena is a pipeline bug and panics.
func (a *Arena) NewTensor(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	a.mu.Lock()
	if a.released {
		a.mu.Unlock()
		panic("device: allocation from released arena")
	}
	a.usedBytes += int64(n) * 4
	a.mu.Unlock()
	s := make([]int, len(shape))
	copy(s, shape)
	return &Tensor{Shape: s, Data: make([]float32, n)}
}

// UsedMB returns the arena's current allocation estimate in MB (minimum 0).
func (a *Arena) UsedMB() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(a.usedBytes / (1024 * 1024))
}

// Released reports whether the arena has been torn down.
func (a *Arena) Released() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}

// Release frees the arena. Idempotent; safe to defer alongside explicit calls.
func (a *Arena) Release() {
	a.mu.Lock()
	a.usedBytes = 0
	a.released = true
	a.mu.Unlock()
}
