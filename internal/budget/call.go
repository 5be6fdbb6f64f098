package budget

import (
	"context"

	"github.com/leandrotocalini/boardroom/internal/agent"
)

// Call identifies who a model call is made for.
type Call struct {
	Session string
	Agent   agent.Identity
}

type callKey struct{}

// WithCall attaches c to ctx so usage reported by a provider client can be
// attributed.
func WithCall(ctx context.Context, c Call) context.Context {
	return context.WithValue(ctx, callKey{}, c)
}

// CallFrom returns the Call attached to ctx.
func CallFrom(ctx context.Context) (Call, bool) {
	c, ok := ctx.Value(callKey{}).(Call)
	return c, ok
}
