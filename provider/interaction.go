package provider

import "context"

// Stream takes one input and returns many outputs, e.g. chunked HTTP.
type Stream[I, O any] interface {
	Provider
	Execute(ctx context.Context, input I) (Iterator[O], error)
}
