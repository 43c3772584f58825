// Package buffer provides the bounded sliding windows used for per-symbol history.
package buffer

// Window is a fixed-capacity FIFO that evicts its oldest element when a new element is pushed
// while full. It is not safe for concurrent use; callers synchronize access.
type Window[T any] struct {
	size  int
	items []T
}

// New instantiates a window holding at most size elements. A non-positive size is treated as 1.
func New[T any](size int) *Window[T] {
	if size <= 0 {
		size = 1
	}
	return &Window[T]{size: size, items: make([]T, 0, size)}
}

// Push appends v, evicting the oldest element if the window is at capacity.
func (w *Window[T]) Push(v T) {
	if len(w.items) == w.size {
		copy(w.items, w.items[1:])
		w.items[len(w.items)-1] = v
		return
	}
	w.items = append(w.items, v)
}

// At returns the element at index i (0 is the oldest) and false when i is out of range.
func (w *Window[T]) At(i int) (T, bool) {
	var zero T
	if i < 0 || i >= len(w.items) {
		return zero, false
	}
	return w.items[i], true
}

// Last returns the most recently pushed element.
func (w *Window[T]) Last() (T, bool) {
	return w.At(len(w.items) - 1)
}

// Len returns the number of stored elements.
func (w *Window[T]) Len() int { return len(w.items) }

// Cap returns the configured capacity.
func (w *Window[T]) Cap() int { return w.size }

// Full reports whether the window holds exactly Cap elements.
func (w *Window[T]) Full() bool { return len(w.items) == w.size }

// Values returns a copy of the stored elements, oldest first.
func (w *Window[T]) Values() []T {
	out := make([]T, len(w.items))
	copy(out, w.items)
	return out
}
