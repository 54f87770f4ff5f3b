package provider

import "context"

// Generator is the capability consumed by pipeline stages: one request in,
// one response out, however many providers that takes.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Chain binds an invoker to an ordered provider list, giving stages a
// single Generate entry point.
type Chain struct {
	invoker   *Invoker
	providers []Provider
}

// NewChain creates a generator over the given providers.
func NewChain(invoker *Invoker, providers ...Provider) *Chain {
	return &Chain{invoker: invoker, providers: providers}
}

// Generate walks the provider chain for the request.
func (c *Chain) Generate(ctx context.Context, req Request) (*Response, error) {
	return c.invoker.Invoke(ctx, c.providers, req)
}
