package auth

import "context"

type contextKey string

const callerContextKey contextKey = "queryrouter_caller"

func ContextWithCaller(ctx context.Context, c *Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, c)
}

func CallerFromContext(ctx context.Context) (*Caller, bool) {
	c, ok := ctx.Value(callerContextKey).(*Caller)
	return c, ok
}
