// Package scope carries the security context of a request through the
// persistence layer. Non-admin callers are implicitly restricted to records
// of their own project, or of their own user when no project is set.
package scope

import "context"

type scopeContextKeyType struct{}

var scopeContextKey = scopeContextKeyType{}

// Context is the security context attached to a request.
type Context struct {
	ProjectID   string
	UserID      string
	IsAdmin     bool
	AllProjects bool
}

// Admin returns a context that is not restricted to any tenant.
func Admin() *Context {
	return &Context{IsAdmin: true, AllProjects: true}
}

// TenantFilter returns the implicit filter field and value for this
// context. ok is false when the context may see all tenants.
func (c *Context) TenantFilter() (field string, value string, ok bool) {
	if c.IsAdmin && c.AllProjects {
		return "", "", false
	}
	if c.ProjectID != "" {
		return "project_id", c.ProjectID, true
	}
	return "user_id", c.UserID, true
}

// NewContext returns a new context derived from ctx carrying the given
// security context.
func NewContext(ctx context.Context, sc *Context) context.Context {
	return context.WithValue(ctx, scopeContextKey, sc)
}

// FromContext returns the security context carried by ctx, or nil when the
// call originates from an internal, unrestricted caller.
func FromContext(ctx context.Context) *Context {
	if sc, ok := ctx.Value(scopeContextKey).(*Context); ok {
		return sc
	}
	return nil
}
