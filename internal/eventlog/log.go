// Package eventlog provides a sequenced, append-only event buffer with
// incremental reads and channel-based following.
package eventlog

import (
	"context"
	"sync"
)

// Log stores published items and lets readers follow new ones.
// Sequence numbers start at 1 and are assigned on Publish.
type Log[T any] struct {
	mu       sync.Mutex
	maxItems int
	firstSeq int64
	items    []T
	closed   bool
	changed  chan struct{}
}

// New creates a log. A positive maxItems bounds retained history; older
// items are trimmed and skipped by lagging readers.
func New[T any](maxItems int) *Log[T] {
	return &Log[T]{
		maxItems: maxItems,
		firstSeq: 1,
		changed:  make(chan struct{}),
	}
}

// Publish appends one item and returns its sequence number. It returns false
// once the log has been closed.
func (l *Log[T]) Publish(item T) (int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, false
	}

	l.items = append(l.items, item)
	seq := l.firstSeq + int64(len(l.items)) - 1
	if l.maxItems > 0 && len(l.items) > l.maxItems {
		trim := len(l.items) - l.maxItems
		l.items = append([]T(nil), l.items[trim:]...)
		l.firstSeq += int64(trim)
	}

	close(l.changed)
	l.changed = make(chan struct{})
	return seq, true
}

// Close marks the log finished. Followers drain remaining items and stop.
func (l *Log[T]) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.changed)
}

// Closed reports whether Close has been called.
func (l *Log[T]) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Since returns retained items with sequence strictly greater than seq.
func (l *Log[T]) Since(seq int64) []T {
	l.mu.Lock()
	defer l.mu.Unlock()

	items, _ := l.fromLocked(seq + 1)
	return items
}

// Last returns the most recent item and its sequence number.
func (l *Log[T]) Last() (T, int64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var zero T
	if len(l.items) == 0 {
		return zero, 0, false
	}
	seq := l.firstSeq + int64(len(l.items)) - 1
	return l.items[len(l.items)-1], seq, true
}

// Follow streams items starting at sequence from. The channel is closed after
// the log is closed and drained, or when ctx is done.
func (l *Log[T]) Follow(ctx context.Context, from int64) <-chan T {
	out := make(chan T)

	go func() {
		defer close(out)

		next := from
		for {
			l.mu.Lock()
			batch, start := l.fromLocked(next)
			closed := l.closed
			wait := l.changed
			l.mu.Unlock()

			next = start
			for _, item := range batch {
				select {
				case out <- item:
					next++
				case <-ctx.Done():
					return
				}
			}

			if len(batch) > 0 {
				continue
			}
			if closed {
				return
			}
			select {
			case <-wait:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// fromLocked copies items with sequence >= seq and returns the sequence of
// the first returned item. Callers hold l.mu.
func (l *Log[T]) fromLocked(seq int64) ([]T, int64) {
	if seq < l.firstSeq {
		seq = l.firstSeq
	}
	idx := seq - l.firstSeq
	if idx >= int64(len(l.items)) {
		return nil, seq
	}
	out := make([]T, len(l.items)-int(idx))
	copy(out, l.items[idx:])
	return out, seq
}
