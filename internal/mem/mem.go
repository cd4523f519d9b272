// Package mem defines the buffer allocation boundary consumed by the
// reduction kernels. Scratch and plane buffers are acquired through an
// Allocator so callers can account for or fail allocations; the reducers
// check and propagate failure instead of assuming success.
package mem

import "errors"

// ErrExhausted is returned once an allocator refuses further requests.
var ErrExhausted = errors.New("allocator exhausted")

// Allocator hands out float buffers of the requested length.
type Allocator interface {
	Floats(n int) ([]float32, error)
	Float64s(n int) ([]float64, error)
}

type systemAllocator struct{}

// System returns the process heap allocator. It never fails.
func System() Allocator {
	return systemAllocator{}
}

func (systemAllocator) Floats(n int) ([]float32, error) {
	return make([]float32, n), nil
}

func (systemAllocator) Float64s(n int) ([]float64, error) {
	return make([]float64, n), nil
}

type failAllocator struct {
	remaining int
}

// FailAfter returns an allocator that satisfies the first n requests and
// fails every later one with ErrExhausted. It exists for tests that
// exercise allocation-failure propagation.
func FailAfter(n int) Allocator {
	return &failAllocator{remaining: n}
}

func (f *failAllocator) Floats(n int) ([]float32, error) {
	if err := f.take(); err != nil {
		return nil, err
	}
	return make([]float32, n), nil
}

func (f *failAllocator) Float64s(n int) ([]float64, error) {
	if err := f.take(); err != nil {
		return nil, err
	}
	return make([]float64, n), nil
}

func (f *failAllocator) take() error {
	if f.remaining <= 0 {
		return ErrExhausted
	}
	f.remaining--
	return nil
}
