package provider

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/chatstream/logger"
)

// WithLogging logs when a stream opens and how it ended: item count,
// duration and error.
func WithLogging[I, O any](log *logger.Logger) StreamMiddleware[I, O] {
	return func(inner Stream[I, O]) Stream[I, O] {
		return &loggingStream[I, O]{inner: inner, log: log}
	}
}

type loggingStream[I, O any] struct {
	inner Stream[I, O]
	log   *logger.Logger
}

func (l *loggingStream[I, O]) Name() string                         { return l.inner.Name() }
func (l *loggingStream[I, O]) IsAvailable(ctx context.Context) bool { return l.inner.IsAvailable(ctx) }

func (l *loggingStream[I, O]) Execute(ctx context.Context, input I) (Iterator[O], error) {
	it, err := l.inner.Execute(ctx, input)
	if err != nil {
		l.log.Error("provider stream failed to open", map[string]interface{}{
			"provider":        l.inner.Name(),
			logger.FieldError: err.Error(),
		})
		return nil, err
	}
	l.log.Debug("provider stream opened", map[string]interface{}{"provider": l.inner.Name()})
	return &loggingIterator[O]{inner: it, name: l.inner.Name(), log: l.log, start: time.Now()}, nil
}

type loggingIterator[O any] struct {
	inner Iterator[O]
	name  string
	log   *logger.Logger
	start time.Time
	items int
	once  sync.Once
}

func (it *loggingIterator[O]) Next(ctx context.Context) (O, bool, error) {
	v, ok, err := it.inner.Next(ctx)
	switch {
	case ok:
		it.items++
	default:
		it.finish(err)
	}
	return v, ok, err
}

func (it *loggingIterator[O]) Close() error {
	it.finish(nil)
	return it.inner.Close()
}

func (it *loggingIterator[O]) finish(err error) {
	it.once.Do(func() {
		fields := logger.MergeWithDuration(map[string]interface{}{
			"provider":         it.name,
			logger.FieldChunks: it.items,
		}, time.Since(it.start))
		if err != nil {
			fields[logger.FieldError] = err.Error()
			it.log.Error("provider stream failed", fields)
			return
		}
		it.log.Debug("provider stream finished", fields)
	})
}
