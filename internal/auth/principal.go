package auth

import "context"

const RoleAdmin = "admin"

// Principal is the authenticated actor of a request.
type Principal struct {
	Subject string
	Name    string
	Role    string
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// ActorName is what gets written into audit columns such as reviewed_by.
func (p Principal) ActorName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Subject
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
