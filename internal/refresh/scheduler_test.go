package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsUntilCancelled(t *testing.T) {
	var n atomic.Int32
	s := NewScheduler(10*time.Millisecond, func(context.Context) (string, error) {
		switch n.Add(1) {
		case 2:
			return "", errors.New("temporary")
		case 3:
			panic("render bug")
		}
		return fmt.Sprintf("health: %d\n", n.Load()), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan Tick, 16)
	done := make(chan struct{})
	go func() {
		s.Run(ctx, func(t Tick) {
			ticks <- t
			if len(ticks) == 4 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	close(ticks)

	var got []Tick
	for tk := range ticks {
		got = append(got, tk)
	}
	require.GreaterOrEqual(t, len(got), 4)

	assert.Equal(t, "health: 1\n", got[0].Snapshot)
	assert.Empty(t, got[0].Diff)
	assert.Error(t, got[1].Err)
	assert.Error(t, got[2].Err)
	assert.NoError(t, got[3].Err)
	assert.Contains(t, got[3].Diff, "-health: 1")
	assert.Contains(t, got[3].Diff, "+health: 4")
}

func TestScheduler_CancelledBeforeFirstTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var called bool
	NewScheduler(time.Hour, func(context.Context) (string, error) { return "x", nil }).Run(ctx, func(Tick) { called = true })
	assert.False(t, called)
}

func TestDiff(t *testing.T) {
	assert.Empty(t, Diff("a\nb\n", "a\nb\n"))
	d := Diff("a\nb\n", "a\nc\n")
	assert.Contains(t, d, "--- previous")
	assert.Contains(t, d, "+++ current")
	assert.Contains(t, d, "-b")
	assert.Contains(t, d, "+c")
}
