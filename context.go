package secretroom

import "context"

type clientIPContextKey struct{}
type solverIDContextKey struct{}

// WithClientIP attaches the solver's resolved network origin to ctx. The
// Engine derives the non-reversible origin identifier from it for lockout
// correlation, the attempt ledger, and audit events. The transport layer is
// responsible for extracting the address from forwarding headers before
// calling into the engine.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithSolverID attaches the optional anonymous-solver correlation id to ctx.
// It is recorded verbatim on attempt rows and never used for any security
// decision.
func WithSolverID(ctx context.Context, solverID string) context.Context {
	return context.WithValue(ctx, solverIDContextKey{}, solverID)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func solverIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	solverID, _ := ctx.Value(solverIDContextKey{}).(string)
	return solverID
}
