package provider

import "context"

// Provider is the base interface all providers implement.
type Provider interface {
	// Name returns the provider's name, used in logs.
	Name() string
	// IsAvailable checks if the provider is ready to handle requests.
	IsAvailable(ctx context.Context) bool
}
