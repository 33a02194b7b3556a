package storage

import (
	"context"
	"net/http"
	"sync"

	"github.com/doj-records/records/internal/storage/policy"
)

type scopeKey struct{}

// Scope pins the backend chosen for each collection for the lifetime of one
// logical operation, so reads and writes of the same id never straddle
// backends.
type Scope struct {
	mu       sync.Mutex
	backends map[string]policy.Backend
}

// WithScope returns a context carrying a fresh Scope. Calls made with a
// context lacking a scope decide the backend per call.
func WithScope(ctx context.Context) context.Context {
	if ScopeFrom(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, &Scope{backends: make(map[string]policy.Backend)})
}

// ScopeFrom returns the Scope on ctx, or nil.
func ScopeFrom(ctx context.Context) *Scope {
	scope, _ := ctx.Value(scopeKey{}).(*Scope)
	return scope
}

// Backend reports the pinned backend for collection.
func (s *Scope) Backend(collection string) (policy.Backend, bool) {
	if s == nil {
		return policy.BackendFile, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.backends[collection]
	return b, ok
}

func (s *Scope) pin(collection string, b policy.Backend) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.backends[collection] = b
	s.mu.Unlock()
}

// ScopeMiddleware opens a Scope for every HTTP request.
func ScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithScope(r.Context())))
	})
}
