package seq

import "iter"

// Reader reads chunks of values from an iter.Seq into caller owned buffers.
type Reader[T any] struct {
	next func() (T, bool)
	stop func()
	done bool
}

// NewReader constructs a Reader over the given sequence. The caller must Close it.
func NewReader[T any](seq iter.Seq[T]) *Reader[T] {
	next, stop := iter.Pull(seq)
	return &Reader[T]{
		next: next,
		stop: stop,
	}
}

// Read fills buf with the next values of the sequence and returns how many were written.
// A count below len(buf) means the sequence is exhausted; later calls return 0.
func (r *Reader[T]) Read(buf []T) int {
	if r.done {
		return 0
	}

	var head int
	for head < len(buf) {
		value, ok := r.next()
		if !ok {
			r.done = true
			r.stop()
			break
		}

		buf[head] = value
		head++
	}
	return head
}

// Close releases the sequence. It is safe to call more than once.
func (r *Reader[T]) Close() error {
	r.done = true
	r.stop()
	return nil
}
