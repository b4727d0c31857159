package narration

import (
	"context"
	"fmt"
	"time"

	"github.com/zeusync/tabletop/internal/core/observability/log"
)

const DefaultTimeout = 5 * time.Second

// Bounded wraps a narrator so that a call returns within Timeout and a
// panicking narrator yields Unavailable instead of unwinding the caller.
type Bounded struct {
	next    Narrator
	timeout time.Duration
	logger  log.Log
}

func WithTimeout(next Narrator, timeout time.Duration, logger log.Log) *Bounded {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Bounded{next: next, timeout: timeout, logger: logger.With(log.Component("narration"))}
}

func (b *Bounded) Narrate(ctx context.Context, sessionID, trigger string, mode Mode) Result {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Unavailable(fmt.Errorf("narrator panic: %v", r))
			}
		}()
		done <- b.next.Narrate(ctx, sessionID, trigger, mode)
	}()

	var res Result
	select {
	case res = <-done:
	case <-ctx.Done():
		res = Unavailable(ctx.Err())
	}
	if res.Status == StatusUnavailable && res.Err != nil {
		b.logger.Debug("narration unavailable", log.Session(sessionID), log.String("mode", string(mode)), log.Error(res.Err))
	}
	return res
}
