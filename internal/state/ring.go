package state

// Ring is a fixed-capacity FIFO. Pushing onto a full ring evicts the oldest
// element. It is not safe for concurrent use; callers guard it with the
// owning Keyed entry lock.
type Ring[T any] struct {
	buf  []T
	head int
	size int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v and returns the evicted element, if any.
func (r *Ring[T]) Push(v T) (evicted T, ok bool) {
	tail := (r.head + r.size) % len(r.buf)
	if r.size == len(r.buf) {
		evicted = r.buf[r.head]
		ok = true
		r.buf[r.head] = v
		r.head = (r.head + 1) % len(r.buf)
		return evicted, ok
	}
	r.buf[tail] = v
	r.size++
	return evicted, ok
}

// At returns the i-th element, oldest first.
func (r *Ring[T]) At(i int) T {
	return r.buf[(r.head+i)%len(r.buf)]
}

func (r *Ring[T]) Len() int {
	return r.size
}

func (r *Ring[T]) Capacity() int {
	return len(r.buf)
}

// Last copies up to n of the newest elements, oldest first.
func (r *Ring[T]) Last(n int) []T {
	if n > r.size {
		n = r.size
	}
	out := make([]T, n)
	start := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.At(start + i)
	}
	return out
}

// Snapshot copies every element, oldest first.
func (r *Ring[T]) Snapshot() []T {
	return r.Last(r.size)
}

func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.size = 0
}
