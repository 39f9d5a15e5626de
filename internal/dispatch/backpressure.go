package dispatch

import (
	"context"
	"sync"

	"github.com/emesal/ratatoskr/pkg/source"
	"golang.org/x/sync/errgroup"
)

// DefaultStreamBuffer is the default bounded-channel capacity, grounded on
// original_source/src/providers/backpressure.rs's DEFAULT_STREAM_BUFFER.
const DefaultStreamBuffer = 64

type streamItem[T any] struct {
	val T
	err error
	ok  bool
}

// BoundedStream converts any inner Stream into a bounded producer/consumer
// sequence of capacity size (§4.3): a single producer goroutine reads from
// inner and enqueues each item; the consumer drains in arrival order. If the
// consumer calls Close, the producer observes the closed done channel and
// stops within one additional buffered item.
type BoundedStream[T any] struct {
	items chan streamItem[T]
	done  chan struct{}
	once  sync.Once
	group *errgroup.Group
}

// NewBoundedStream starts the producer goroutine and returns the wrapper.
// size <= 0 uses DefaultStreamBuffer.
func NewBoundedStream[T any](ctx context.Context, inner source.Stream[T], size int) *BoundedStream[T] {
	if size <= 0 {
		size = DefaultStreamBuffer
	}
	bs := &BoundedStream[T]{
		items: make(chan streamItem[T], size),
		done:  make(chan struct{}),
	}
	g, gctx := errgroup.WithContext(ctx)
	bs.group = g
	g.Go(func() error {
		defer close(bs.items)
		for {
			select {
			case <-bs.done:
				inner.Close()
				return nil
			default:
			}
			val, ok, err := inner.Next(gctx)
			if !ok && err == nil {
				return nil
			}
			select {
			case bs.items <- streamItem[T]{val: val, err: err, ok: ok}:
				if !ok {
					// Terminal error-only item (no further items will come).
					return nil
				}
			case <-bs.done:
				inner.Close()
				return nil
			case <-gctx.Done():
				inner.Close()
				return gctx.Err()
			}
		}
	})
	return bs
}

// Next implements source.Stream.
func (bs *BoundedStream[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	select {
	case item, open := <-bs.items:
		if !open {
			return zero, false, nil
		}
		return item.val, item.ok, item.err
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

// Close signals the producer to stop promptly. Safe to call multiple times.
func (bs *BoundedStream[T]) Close() {
	bs.once.Do(func() { close(bs.done) })
}

var _ source.Stream[int] = (*BoundedStream[int])(nil)
