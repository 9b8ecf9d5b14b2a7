package provider

// StreamMiddleware wraps a Stream provider.
type StreamMiddleware[I, O any] func(Stream[I, O]) Stream[I, O]

// Chain composes middlewares; the first one is outermost.
//
// Chain(a, b, c)(p) is equivalent to a(b(c(p))).
func Chain[I, O any](middlewares ...StreamMiddleware[I, O]) StreamMiddleware[I, O] {
	return func(inner Stream[I, O]) Stream[I, O] {
		for i := len(middlewares) - 1; i >= 0; i-- {
			inner = middlewares[i](inner)
		}
		return inner
	}
}
