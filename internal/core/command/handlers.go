package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zeusync/tabletop/internal/core/events"
	"github.com/zeusync/tabletop/internal/core/narration"
	"github.com/zeusync/tabletop/internal/core/storage"
	"github.com/zeusync/tabletop/internal/core/turn"
)

func need(cmd Command, fields ...string) error {
	var missing []string
	for _, f := range fields {
		switch f {
		case "actor_id":
			if cmd.ActorID == "" {
				missing = append(missing, f)
			}
		case "target_id":
			if cmd.TargetID == "" {
				missing = append(missing, f)
			}
		case "dest":
			if cmd.Dest == nil {
				missing = append(missing, f)
			}
		case "spell":
			if cmd.Spell == "" {
				missing = append(missing, f)
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingArgument, strings.Join(missing, ", "))
	}
	return nil
}

func (e *Env) name(id string) string {
	if ent := e.state.Entity(id); ent != nil {
		return ent.DisplayName()
	}
	return id
}

func handleMove(env *Env, cmd Command) (Outcome, error) {
	if err := need(cmd, "actor_id", "dest"); err != nil {
		return Outcome{}, err
	}
	res, err := env.seq.Move(env.state, cmd.ActorID, *cmd.Dest)
	if err != nil {
		return Outcome{}, err
	}
	if res.Moved() {
		env.Changed()
		env.Notify(events.Path(env.state.SessionID, cmd.ActorID, res.Path))
	}
	return ok(res, "%s moves to %s", env.name(cmd.ActorID), res.To), nil
}

func handleAttack(env *Env, cmd Command) (Outcome, error) {
	if err := need(cmd, "actor_id", "target_id"); err != nil {
		return Outcome{}, err
	}
	// resolve the name first: a defeated enemy leaves the state
	actor, target := env.name(cmd.ActorID), env.name(cmd.TargetID)
	out, err := env.seq.Attack(env.state, cmd.ActorID, cmd.TargetID, cmd.Weapon)
	if out.CombatStarted || out.Resolved {
		env.Changed()
	}
	if err != nil {
		return Outcome{}, err
	}
	if !out.Resolved {
		return ok(out, "%s starts a fight with %s but %s acts first", actor, target, env.name(env.state.ActiveEntityID)), nil
	}

	var msg string
	switch r := out.Result; {
	case r.Critical:
		msg = fmt.Sprintf("%s critically hits %s for %d damage", actor, target, r.Damage)
	case r.Hit:
		msg = fmt.Sprintf("%s hits %s for %d damage", actor, target, r.Damage)
	default:
		msg = fmt.Sprintf("%s misses %s", actor, target)
	}
	if out.Death != nil {
		msg += fmt.Sprintf("; %s falls", target)
	}
	env.Narrate(msg, narration.ModeCombat)
	return ok(out, "%s", msg), nil
}

func handleCast(env *Env, cmd Command) (Outcome, error) {
	if err := need(cmd, "actor_id", "target_id", "spell"); err != nil {
		return Outcome{}, err
	}
	actor, target := env.name(cmd.ActorID), env.name(cmd.TargetID)
	out, err := env.seq.Cast(env.state, cmd.ActorID, cmd.TargetID, cmd.Spell)
	if out.CombatStarted || out.Resolved {
		env.Changed()
	}
	if err != nil {
		return Outcome{}, err
	}
	if !out.Resolved {
		return ok(out, "%s starts a fight with %s but %s acts first", actor, target, env.name(env.state.ActiveEntityID)), nil
	}

	msg := fmt.Sprintf("%s casts %s at %s for %d damage", actor, cmd.Spell, target, out.Dealt)
	if out.Saved {
		msg += " (saved)"
	}
	if out.Death != nil {
		msg += fmt.Sprintf("; %s falls", target)
	}
	env.Narrate(msg, narration.ModeCombat)
	return ok(out, "%s", msg), nil
}

func handleOpen(env *Env, cmd Command) (Outcome, error) {
	if err := need(cmd, "actor_id", "target_id"); err != nil {
		return Outcome{}, err
	}
	out, err := env.seq.Open(env.state, cmd.ActorID, cmd.TargetID)
	if errors.Is(err, turn.ErrInterrupted) {
		// combat has started and must be persisted with the rejection
		env.Changed()
		return Outcome{}, err
	}
	if err != nil {
		return Outcome{}, err
	}
	env.Changed()

	switch {
	case out.Vessel != nil && len(out.Items) == 0 && out.Wallet.IsZero():
		return ok(out, "%s opens %s", env.name(cmd.ActorID), out.Vessel.Name), nil
	case len(out.Items) > 0 || !out.Wallet.IsZero():
		return ok(out, "%s takes %d items and %d gold", env.name(cmd.ActorID), len(out.Items), out.Wallet.Gold), nil
	case out.Open:
		return ok(out, "%s opens %s", env.name(cmd.ActorID), cmd.TargetID), nil
	default:
		return ok(out, "%s closes %s", env.name(cmd.ActorID), cmd.TargetID), nil
	}
}

func handleIdentify(env *Env, cmd Command) (Outcome, error) {
	if err := need(cmd, "actor_id", "target_id"); err != nil {
		return Outcome{}, err
	}
	res, err := env.seq.Identify(env.state, cmd.ActorID, cmd.TargetID)
	if err != nil {
		return Outcome{}, err
	}
	env.Changed()
	if !res.Success {
		return ok(res, "%s fails to recognise %s", env.name(cmd.ActorID), env.name(cmd.TargetID)), nil
	}
	return ok(res, "%s recognises %s", env.name(cmd.ActorID), res.Name), nil
}

func handleTravel(env *Env, cmd Command) (Outcome, error) {
	if err := need(cmd, "actor_id", "target_id"); err != nil {
		return Outcome{}, err
	}
	locID, err := env.seq.TravelTarget(env.state, cmd.ActorID, cmd.TargetID)
	if err != nil {
		return Outcome{}, err
	}
	dest, err := env.locations.FetchLocation(env.ctx, locID)
	if errors.Is(err, storage.ErrNotFound) {
		return Outcome{}, fmt.Errorf("%w: %s leads nowhere", turn.ErrNotADoor, cmd.TargetID)
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("fetch location %s: %w", locID, err)
	}
	if err := env.seq.Travel(env.state, cmd.ActorID, cmd.TargetID, dest); err != nil {
		return Outcome{}, err
	}
	env.Changed()
	env.Narrate(fmt.Sprintf("The party arrives at %s. %s", dest.Name, dest.Description), narration.ModeExploration)
	return ok(dest.ID, "the party travels to %s", dest.Name), nil
}

func handleEndTurn(env *Env, cmd Command) (Outcome, error) {
	if err := need(cmd, "actor_id"); err != nil {
		return Outcome{}, err
	}
	next, err := env.seq.EndTurn(env.state, cmd.ActorID)
	if err != nil {
		return Outcome{}, err
	}
	env.Changed()
	return ok(next.ID, "%s ends their turn; %s is up", env.name(cmd.ActorID), next.DisplayName()), nil
}

func handleStartCombat(env *Env, _ Command) (Outcome, error) {
	if err := env.seq.StartCombat(env.state); err != nil {
		return Outcome{}, err
	}
	env.Changed()
	return ok(env.state.TurnOrder, "combat begins; %s acts first", env.name(env.state.ActiveEntityID)), nil
}

func handleTalk(env *Env, cmd Command) (Outcome, error) {
	if err := need(cmd, "actor_id", "target_id"); err != nil {
		return Outcome{}, err
	}
	if err := env.seq.EnterSocial(env.state, cmd.ActorID, cmd.TargetID); err != nil {
		return Outcome{}, err
	}
	env.Changed()
	return ok(nil, "%s starts talking to %s", env.name(cmd.ActorID), env.name(cmd.TargetID)), nil
}

func handleLeaveTalk(env *Env, _ Command) (Outcome, error) {
	if err := env.seq.LeaveSocial(env.state); err != nil {
		return Outcome{}, err
	}
	env.Changed()
	return ok(nil, "the conversation ends"), nil
}
