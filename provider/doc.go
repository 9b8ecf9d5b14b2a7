// Package provider defines the small set of interfaces chatstream backends
// implement so callers can treat them uniformly.
//
//   - Provider: Name and IsAvailable.
//   - Stream[I, O]: one input, many outputs, consumed through an Iterator[O].
//
// StreamMiddleware wraps a Stream with cross-cutting behaviour; Chain
// composes several of them:
//
//	wrapped := provider.Chain(
//	    provider.WithLogging[chat.Request, chat.Chunk](log),
//	)(client)
package provider
