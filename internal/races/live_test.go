package races

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racebot/internal/racetime"
)

// fakeClock hands out instants that tests move by hand.
type fakeClock struct{ now racetime.Instant }

func (c *fakeClock) Now() racetime.Instant { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now += racetime.Instant(d) }

func newLive(t *testing.T, runners ...string) (*LiveRace, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: 1000}
	r := NewLiveRace("race-1", "Sunday", "flags", clock)
	for i, name := range runners {
		require.NoError(t, r.AddRunner(int64(i+1), name))
	}
	return r, clock
}

func TestLiveRaceAddRemove(t *testing.T) {
	r, _ := newLive(t, "alice", "bob")

	assert.ErrorIs(t, r.AddRunner(1, "alice"), ErrAlreadyEntered)
	assert.ErrorIs(t, r.RemoveRunner(99), ErrUnknownRunner)

	require.NoError(t, r.RemoveRunner(1))
	runners := r.Runners()
	require.Len(t, runners, 1)
	assert.Equal(t, "bob", runners[0].Name)

	require.NoError(t, r.Start())
	assert.ErrorIs(t, r.AddRunner(3, "carol"), ErrAlreadyStarted)
	assert.ErrorIs(t, r.RemoveRunner(2), ErrAlreadyStarted)
}

func TestLiveRaceStart(t *testing.T) {
	t.Run("empty race cannot start", func(t *testing.T) {
		r, _ := newLive(t)
		assert.ErrorIs(t, r.Start(), ErrNoRunners)
	})

	t.Run("all runners share one start instant", func(t *testing.T) {
		r, clock := newLive(t, "alice", "bob")
		require.NoError(t, r.Start())
		for _, e := range r.Runners() {
			require.NotNil(t, e.Start)
			assert.Equal(t, clock.now, *e.Start)
		}
		assert.ErrorIs(t, r.Start(), ErrAlreadyStarted)
	})
}

func TestLiveRaceReady(t *testing.T) {
	r, _ := newLive(t, "alice", "bob")
	assert.False(t, r.AllReady())
	require.NoError(t, r.SetReady(1, true))
	assert.False(t, r.AllReady())
	require.NoError(t, r.SetReady(2, true))
	assert.True(t, r.AllReady())
	assert.ErrorIs(t, r.SetReady(5, true), ErrUnknownRunner)
}

func TestLiveRaceDone(t *testing.T) {
	r, clock := newLive(t, "alice", "bob")

	_, _, err := r.Done(1)
	assert.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, r.Start())
	_, _, err = r.Done(42)
	assert.ErrorIs(t, err, ErrUnknownRunner)

	clock.advance(10*time.Minute + 400*time.Millisecond)
	text, finished, err := r.Done(1)
	require.NoError(t, err)
	assert.False(t, finished)
	assert.Equal(t, "alice: 0:10:00", text)
	assert.False(t, r.IsComplete())

	_, _, err = r.Done(1)
	assert.ErrorIs(t, err, ErrAlreadyDone)

	clock.advance(2 * time.Minute)
	text, finished, err = r.Done(2)
	require.NoError(t, err)
	assert.True(t, finished)
	assert.True(t, r.IsComplete())
	assert.Equal(t, "Race Sunday results:\n\n1) alice: 0:10:00\n2) bob: 0:12:00\n", text)
}

func TestLiveRaceForfeitsSortLast(t *testing.T) {
	// forfeit order must not matter
	r, clock := newLive(t, "alice", "bob", "carol")
	require.NoError(t, r.Start())

	text, finished, err := r.Forfeit(1)
	require.NoError(t, err)
	assert.False(t, finished)
	assert.Equal(t, "alice forfeited", text)

	clock.advance(time.Hour)
	_, finished, err = r.Done(3)
	require.NoError(t, err)
	assert.False(t, finished)

	text, finished, err = r.Forfeit(2)
	require.NoError(t, err)
	assert.True(t, finished)
	assert.Equal(t, "Race Sunday results:\n\n1) carol: 1:00:00\n2) alice: Forfeited\n3) bob: Forfeited\n", text)

	res := r.Results()
	require.Len(t, res, 3)
	assert.Equal(t, "carol", res[0].Name)
	assert.True(t, res[1].Forfeited)
	assert.True(t, res[2].Forfeited)
}

func TestLiveRaceTiesKeepJoinOrder(t *testing.T) {
	r, _ := newLive(t, "alice", "bob", "carol")
	require.NoError(t, r.Start())
	// clock never moves, so every finish is the same instant
	_, _, err := r.Done(3)
	require.NoError(t, err)
	_, _, err = r.Done(2)
	require.NoError(t, err)
	_, _, err = r.Done(1)
	require.NoError(t, err)

	res := r.Results()
	assert.Equal(t, []string{"alice", "bob", "carol"}, []string{res[0].Name, res[1].Name, res[2].Name})
}

func TestLiveRaceNotCompleteUntilAllTerminal(t *testing.T) {
	r, clock := newLive(t, "a", "b", "c", "d")
	require.NoError(t, r.Start())
	for id := int64(1); id <= 3; id++ {
		clock.advance(time.Minute)
		_, finished, err := r.Done(id)
		require.NoError(t, err)
		assert.False(t, finished)
		assert.False(t, r.IsComplete())
	}
	_, finished, err := r.Forfeit(4)
	require.NoError(t, err)
	assert.True(t, finished)
}
