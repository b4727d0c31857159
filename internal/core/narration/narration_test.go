package narration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/tabletop/internal/core/dice"
	"github.com/zeusync/tabletop/internal/core/models"
	"github.com/zeusync/tabletop/internal/core/observability/log"
)

func TestResults(t *testing.T) {
	ctx := context.Background()

	require.False(t, Noop{}.Narrate(ctx, "s1", "anything", ModeCombat).Ok())
	require.Equal(t, "The goblin lunges.", Echo{}.Narrate(ctx, "s1", "The goblin lunges.", ModeCombat).Text)
	require.False(t, Echo{}.Narrate(ctx, "s1", "   ", ModeCombat).Ok())

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	res := Echo{}.Narrate(cctx, "s1", "late", ModeCombat)
	require.Equal(t, StatusUnavailable, res.Status)
	require.ErrorIs(t, res.Err, context.Canceled)
}

func TestBounded(t *testing.T) {
	ctx := context.Background()

	t.Run("Passes Through", func(t *testing.T) {
		n := WithTimeout(Echo{}, time.Second, log.Nop())
		require.Equal(t, Produced("hello"), n.Narrate(ctx, "s1", "hello", ModeExploration))
	})

	t.Run("Slow Narrator Times Out", func(t *testing.T) {
		slow := Func(func(ctx context.Context, _, _ string, _ Mode) Result {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return Produced("too late")
		})
		start := time.Now()
		res := WithTimeout(slow, 20*time.Millisecond, log.Nop()).Narrate(ctx, "s1", "x", ModeCombat)
		require.Equal(t, StatusUnavailable, res.Status)
		require.ErrorIs(t, res.Err, context.DeadlineExceeded)
		require.Less(t, time.Since(start), time.Second)
	})

	t.Run("Errors And Panics", func(t *testing.T) {
		failing := Func(func(context.Context, string, string, Mode) Result {
			return Unavailable(errors.New("quota exceeded"))
		})
		require.False(t, WithTimeout(failing, time.Second, nil).Narrate(ctx, "s1", "x", ModeCombat).Ok())

		panicking := Func(func(context.Context, string, string, Mode) Result { panic("boom") })
		res := WithTimeout(panicking, time.Second, nil).Narrate(ctx, "s1", "x", ModeCombat)
		require.Equal(t, StatusUnavailable, res.Status)
		require.ErrorContains(t, res.Err, "boom")
	})
}

func TestBark(t *testing.T) {
	goblin := &models.Entity{ID: "goblin", Kind: models.KindEnemy}
	goblin.Ext.Barks = map[string][]string{models.BarkAttack: {"Stab!", "Die!"}}

	line, ok := Bark(dice.NewScripted(2), goblin, models.BarkAttack)
	require.True(t, ok)
	require.Equal(t, "Die!", line)

	_, ok = Bark(dice.NewScripted(1), goblin, models.BarkDeath)
	require.False(t, ok)

	hero := &models.Entity{ID: "hero", Kind: models.KindPlayer}
	hero.Ext.Barks = goblin.Ext.Barks
	_, ok = Bark(dice.NewScripted(1), hero, models.BarkAttack)
	require.False(t, ok, "players never bark")
}
