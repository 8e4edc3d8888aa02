// Package jobs implements the administrative operations delivered by the
// on-chain job runtime. Each handler validates its input and mutates the
// firewall; handler errors are reported back to the runtime, never fatal.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tangle-network/blockchain-rpc-blueprint/internal/gateway"
)

// Stable job identifiers, matching the on-chain service definition.
const (
	// AllowAccessJobID permanently allows an IP/CIDR or account (admin).
	AllowAccessJobID uint64 = 0
	// PayForAccessJobID grants paid temporary access to an account.
	PayForAccessJobID uint64 = 1
	// RegisterWebhookJobID registers a webhook URL for firewall events.
	RegisterWebhookJobID uint64 = 2
)

// ErrInvalidInput marks a job rejected for malformed arguments. The firewall
// state is unchanged when a handler returns it.
var ErrInvalidInput = errors.New("invalid job input")

// ErrUnknownJob is returned for job IDs with no registered handler.
var ErrUnknownJob = errors.New("unknown job id")

// HandlerFunc processes one decoded job invocation.
type HandlerFunc func(ctx context.Context, rctx *gateway.Context, args json.RawMessage) error

// Router dispatches job invocations to their handlers.
type Router struct {
	rctx   *gateway.Context
	routes map[uint64]HandlerFunc
}

// NewRouter creates a Router with the three gateway jobs registered.
func NewRouter(rctx *gateway.Context) *Router {
	return &Router{
		rctx: rctx,
		routes: map[uint64]HandlerFunc{
			AllowAccessJobID:     allowAccess,
			PayForAccessJobID:    payForAccess,
			RegisterWebhookJobID: registerWebhook,
		},
	}
}

// Dispatch runs the handler registered for jobID with the given argument
// payload.
func (r *Router) Dispatch(ctx context.Context, jobID uint64, args json.RawMessage) error {
	handler, ok := r.routes[jobID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownJob, jobID)
	}
	return handler(ctx, r.rctx, args)
}
