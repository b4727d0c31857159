// Package narration defines the contract of the flavour-text collaborator.
// Mechanical resolution never depends on it: every failure surfaces as an
// Unavailable result.
package narration

import (
	"context"
	"strings"
)

type Mode string

const (
	ModeCombat      Mode = "combat"
	ModeExploration Mode = "exploration"
	ModeSocial      Mode = "social"
)

type Status uint8

const (
	StatusUnavailable Status = iota
	StatusProduced
)

func (s Status) String() string {
	if s == StatusProduced {
		return "produced"
	}
	return "unavailable"
}

// Result is what a narrator returns. Err is informational and only set on
// Unavailable results.
type Result struct {
	Text   string
	Status Status
	Err    error
}

func Produced(text string) Result {
	return Result{Text: text, Status: StatusProduced}
}

func Unavailable(err error) Result {
	return Result{Status: StatusUnavailable, Err: err}
}

// Ok reports whether r carries text worth showing.
func (r Result) Ok() bool {
	return r.Status == StatusProduced && strings.TrimSpace(r.Text) != ""
}

type Narrator interface {
	Narrate(ctx context.Context, sessionID, trigger string, mode Mode) Result
}

// Func adapts a plain function to Narrator.
type Func func(ctx context.Context, sessionID, trigger string, mode Mode) Result

func (f Func) Narrate(ctx context.Context, sessionID, trigger string, mode Mode) Result {
	return f(ctx, sessionID, trigger, mode)
}

// Noop never narrates.
type Noop struct{}

func (Noop) Narrate(context.Context, string, string, Mode) Result {
	return Unavailable(nil)
}

// Echo narrates the trigger itself. It is the play-by-play used when no
// text generator is configured.
type Echo struct{}

func (Echo) Narrate(ctx context.Context, _ string, trigger string, _ Mode) Result {
	if err := ctx.Err(); err != nil {
		return Unavailable(err)
	}
	if strings.TrimSpace(trigger) == "" {
		return Unavailable(nil)
	}
	return Produced(trigger)
}
