package transport

import (
	"context"

	"github.com/jrsteele09/rally-session/identity"
)

type classKey struct{}

// WithClass marks every request made with ctx as belonging to class.
func WithClass(ctx context.Context, class identity.Class) context.Context {
	return context.WithValue(ctx, classKey{}, class)
}

// ClassFrom returns the class set by WithClass.
func ClassFrom(ctx context.Context) (identity.Class, bool) {
	class, ok := ctx.Value(classKey{}).(identity.Class)
	return class, ok && class.Valid()
}
