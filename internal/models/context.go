package models

import "context"

type idempotencyContextKey struct{}

// RequestContext carries the admin-operation idempotency key through a
// context.Context. The ledger adapter does not read it; the admin service
// passes idempotency keys as explicit arguments. Mirrors the teacher's
// PrimeDepositContext carrier pattern.
type RequestContext struct {
	IdempotencyKey string
}

func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, idempotencyContextKey{}, rc)
}

func GetRequestContext(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(idempotencyContextKey{}).(*RequestContext)
	return rc
}
