package jobs

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"go.uber.org/zap"
)

// Invocation is one decoded job event from the external runtime.
type Invocation struct {
	JobID uint64          `json:"job_id"`
	Args  json.RawMessage `json:"args"`
}

// Consume drains invocations from the channel until it closes or the
// context is cancelled. Handler failures are logged; they never stop
// consumption.
func (r *Router) Consume(ctx context.Context, events <-chan Invocation) {
	for {
		select {
		case <-ctx.Done():
			return
		case inv, ok := <-events:
			if !ok {
				return
			}
			if err := r.Dispatch(ctx, inv.JobID, inv.Args); err != nil {
				r.rctx.Log().Warn("job failed",
					zap.Uint64("job_id", inv.JobID),
					zap.Error(err))
			}
		}
	}
}

// ConsumeLines reads newline-delimited JSON invocations, one object per
// line, until EOF or context cancellation. This is the integration seam for
// a collocated job runtime delivering over a pipe or socket.
func (r *Router) ConsumeLines(ctx context.Context, rd io.Reader) error {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var inv Invocation
		if err := json.Unmarshal(line, &inv); err != nil {
			r.rctx.Log().Warn("malformed job invocation", zap.Error(err))
			continue
		}
		if err := r.Dispatch(ctx, inv.JobID, inv.Args); err != nil {
			r.rctx.Log().Warn("job failed",
				zap.Uint64("job_id", inv.JobID),
				zap.Error(err))
		}
	}
	return scanner.Err()
}
