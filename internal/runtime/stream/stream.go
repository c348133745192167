// Package stream provides the bounded FIFO endpoints that feed and drain
// the compute core, modelled on hls::stream: reads block until an element
// is available, writes block until there is capacity.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 16

// ErrClosed is returned by Write once the stream has been closed.
var ErrClosed = errors.New("stream: write to closed stream")

// Stream is a bounded, ordered, multi-producer multi-consumer FIFO.
// Read returns io.EOF once the stream is closed and drained.
type Stream[T any] struct {
	name   string
	ch     chan T
	closed chan struct{}
	once   sync.Once

	// Writers hold mu shared while blocked; a reader that observed the
	// close takes it exclusively to be sure no write is still landing.
	mu sync.RWMutex

	reads  atomic.Int64
	writes atomic.Int64
}

// New returns an empty stream holding at most capacity elements.
func New[T any](name string, capacity int) *Stream[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stream[T]{
		name:   name,
		ch:     make(chan T, capacity),
		closed: make(chan struct{}),
	}
}

// Cap returns the capacity.
func (s *Stream[T]) Cap() int { return cap(s.ch) }

// Reads returns the number of elements read so far.
func (s *Stream[T]) Reads() int64 { return s.reads.Load() }

// Writes returns the number of elements written so far.
func (s *Stream[T]) Writes() int64 { return s.writes.Load() }

// Closed reports whether Close has been called.
func (s *Stream[T]) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// Close marks the end of the stream. Buffered elements stay readable.
// Close is idempotent.
func (s *Stream[T]) Close() {
	s.once.Do(func() { close(s.closed) })
}

// Write appends v, blocking while the stream is full.
func (s *Stream[T]) Write(ctx context.Context, v T) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Closed() {
		return fmt.Errorf("stream %s: %w", s.name, ErrClosed)
	}

	select {
	case s.ch <- v:
		s.writes.Add(1)
		return nil
	case <-s.closed:
		return fmt.Errorf("stream %s: %w", s.name, ErrClosed)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Read removes and returns the oldest element, blocking while the stream
// is empty. It returns io.EOF when the stream is closed and drained.
func (s *Stream[T]) Read(ctx context.Context) (T, error) {
	select {
	case v := <-s.ch:
		s.reads.Add(1)
		return v, nil
	default:
	}

	var zero T
	select {
	case v := <-s.ch:
		s.reads.Add(1)
		return v, nil
	case <-s.closed:
		// Wait out writers that raced with Close.
		s.mu.Lock()
		s.mu.Unlock() //nolint:staticcheck // empty critical section is the barrier
		select {
		case v := <-s.ch:
			s.reads.Add(1)
			return v, nil
		default:
			return zero, io.EOF
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Drain reads until the stream is closed and empty, returning every
// element in order.
func Drain[T any](ctx context.Context, s *Stream[T]) ([]T, error) {
	var out []T
	for {
		v, err := s.Read(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}

// Feed writes every element of vs and then closes s.
func Feed[T any](ctx context.Context, s *Stream[T], vs []T) error {
	defer s.Close()
	for _, v := range vs {
		if err := s.Write(ctx, v); err != nil {
			return err
		}
	}
	return nil
}
