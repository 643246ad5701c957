package httpapi

import (
	"context"
	"errors"
)

// errShuttingDown is the cancellation cause of in-flight requests when the
// server base context ends.
var errShuttingDown = errors.New("server shutting down")

// serverBaseCtx is canceled on shutdown. Defaults to Background.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level context whose end cancels every
// in-flight generation. nil restores Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	serverBaseCtx = ctx
}

// joinContexts derives from req, keeping its values (request id, span), and
// also ends it when base is done. The returned cancel must be called when
// the handler returns.
func joinContexts(base, req context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(req)
	stop := context.AfterFunc(base, func() { cancel(errShuttingDown) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}
