package provider

import "context"

// Iterator provides pull-based sequential access to a stream of values.
// Close must be called when done to release resources.
type Iterator[T any] interface {
	// Next returns (value, true, nil) per item, (zero, false, nil) when
	// exhausted and (zero, false, err) on failure.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}
