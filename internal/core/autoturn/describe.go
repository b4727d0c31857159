package autoturn

import (
	"fmt"
	"strings"

	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/turn"
)

// describe renders an AI turn as the plain-language trigger handed to the
// narrator.
func describe(actor, target *models.Entity, moved bool, out *turn.AttackOutcome, bark string) string {
	var b strings.Builder
	name := actor.DisplayName()
	if bark != "" {
		fmt.Fprintf(&b, "%s shouts: %q ", name, bark)
	}
	switch {
	case out == nil && moved:
		fmt.Fprintf(&b, "%s closes in on %s.", name, target.DisplayName())
	case out == nil:
		fmt.Fprintf(&b, "%s holds its ground.", name)
	case out.Result.Critical:
		fmt.Fprintf(&b, "%s lands a critical blow on %s for %d damage.", name, target.DisplayName(), out.Result.Damage)
	case out.Result.Hit:
		fmt.Fprintf(&b, "%s hits %s with %s for %d damage.", name, target.DisplayName(), out.Result.Source, out.Result.Damage)
	default:
		fmt.Fprintf(&b, "%s attacks %s and misses.", name, target.DisplayName())
	}
	if out != nil && out.Death != nil {
		fmt.Fprintf(&b, " %s falls.", target.DisplayName())
		if out.Death.Ended {
			fmt.Fprintf(&b, " The fight is over: %s.", out.Death.Outcome)
		}
	}
	return b.String()
}
