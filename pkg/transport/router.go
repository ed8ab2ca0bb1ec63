package transport

import (
	"context"
	"io"
	"sync"

	"github.com/PaulJPhilp/mcluhan/pkg/api"
	"github.com/PaulJPhilp/mcluhan/pkg/provider"
)

// Router dispatches each request to the transport registered for its
// provider name. It implements provider.Transport itself, so an engine
// configured with a Router fans out across heterogeneous backends.
type Router struct {
	mu       sync.RWMutex
	byName   map[string]provider.Transport
	fallback provider.Transport
}

// NewRouter creates an empty Router. The optional fallback serves
// requests whose provider has no dedicated transport; a nil fallback
// makes such requests fail.
func NewRouter(fallback provider.Transport) *Router {
	return &Router{
		byName:   make(map[string]provider.Transport),
		fallback: fallback,
	}
}

// Route registers t as the transport for the named provider, replacing
// any previous registration.
func (r *Router) Route(name string, t provider.Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[name] = t
}

// Open dispatches to the transport registered for req.Provider.
func (r *Router) Open(ctx context.Context, req *api.StreamRequest) (io.ReadCloser, error) {
	r.mu.RLock()
	t, ok := r.byName[req.Provider]
	if !ok {
		t = r.fallback
	}
	r.mu.RUnlock()

	if t == nil {
		return nil, api.NewTransportError(req.Provider, "no transport configured for provider", nil)
	}
	return t.Open(ctx, req)
}
