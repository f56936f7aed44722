package security

import (
	"context"
	"sync"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// securityContextKey is the context key for storing the per-request Context.
	securityContextKey contextKey = "security.context"
)

// Context holds the principal of a single inbound request.
//
// It is safe for concurrent use. Clearing it is visible to every reader of the
// same request, so a failed token refresh in one outbound call turns the rest of
// the request unauthenticated.
type Context struct {
	mu        sync.RWMutex
	principal Principal
}

// NewSecurityContext returns a holder for p. A nil p, including a typed nil
// *Bearer or *Delegated, yields an empty holder.
func NewSecurityContext(p Principal) *Context {
	return &Context{principal: normalize(p)}
}

// Principal returns the current principal and whether one is set.
func (c *Context) Principal() (Principal, bool) {
	if c == nil {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.principal, c.principal != nil
}

// SetPrincipal replaces the current principal. Setting a nil principal is
// the same as Clear.
func (c *Context) SetPrincipal(p Principal) {
	if c == nil {
		return
	}

	c.mu.Lock()
	c.principal = normalize(p)
	c.mu.Unlock()
}

// Clear removes the current principal.
func (c *Context) Clear() {
	if c == nil {
		return
	}

	c.mu.Lock()
	c.principal = nil
	c.mu.Unlock()
}

// NewContext returns a copy of ctx carrying a new security Context for p.
//
// Example:
//
//	ctx = security.NewContext(ctx, security.Bearer{Token: token, Claims: claims})
func NewContext(ctx context.Context, p Principal) context.Context {
	return WithSecurityContext(ctx, NewSecurityContext(p))
}

// WithSecurityContext returns a copy of ctx carrying sc.
func WithSecurityContext(ctx context.Context, sc *Context) context.Context {
	return context.WithValue(ctx, securityContextKey, sc)
}

// FromContext extracts the security Context from ctx.
// Returns the holder and true if found, or nil and false if not present.
func FromContext(ctx context.Context) (*Context, bool) {
	if ctx == nil {
		return nil, false
	}
	sc, ok := ctx.Value(securityContextKey).(*Context)
	return sc, ok && sc != nil
}

// normalize maps typed nil pointers to a nil interface.
func normalize(p Principal) Principal {
	switch typed := p.(type) {
	case *Bearer:
		if typed == nil {
			return nil
		}
	case *Delegated:
		if typed == nil {
			return nil
		}
	}
	return p
}

// PrincipalFromContext is a shortcut for FromContext followed by Principal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	sc, ok := FromContext(ctx)
	if !ok {
		return nil, false
	}
	return sc.Principal()
}
