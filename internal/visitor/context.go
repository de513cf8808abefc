package visitor

import "context"

type contextKey struct{}

// WithContext attaches v to ctx.
func WithContext(ctx context.Context, v *Visitor) context.Context {
	return context.WithValue(ctx, contextKey{}, v)
}

// FromContext returns the visitor attached by the cookie middleware.
func FromContext(ctx context.Context) (*Visitor, bool) {
	v, ok := ctx.Value(contextKey{}).(*Visitor)
	return v, ok && v != nil
}
