package server

import "context"

type identityContextKey struct{}

func contextWithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

func identityFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	identity, ok := ctx.Value(identityContextKey{}).(string)
	return identity, ok && identity != ""
}
