package narration

import (
	"github.com/zeusync/tabletop/internal/core/dice"
	"github.com/zeusync/tabletop/internal/core/models"
)

// Bark picks one of e's lines for trigger. Entities without lines for the
// trigger stay silent.
func Bark(r dice.Roller, e *models.Entity, trigger string) (string, bool) {
	lines := e.BarkLines(trigger)
	if len(lines) == 0 {
		return "", false
	}
	return lines[r.Roll(len(lines))-1], true
}
