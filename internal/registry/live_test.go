package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racebot/internal/races"
	"racebot/internal/racetime"
)

func (f *fixture) createLive(t *testing.T, role string) LiveView {
	t.Helper()
	v, err := f.reg.CreateLiveRace(context.Background(), LiveRequest{
		VenueID: venue, Name: "Sprint", Flags: "https://ff1.example/", Owner: owner, Role: role,
	})
	require.NoError(t, err)
	return v
}

func TestLiveRaceLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	role := f.p.AddRole("racing")

	v := f.createLive(t, "racing")
	ch := v.ChannelID
	assert.NotEmpty(t, v.ID)
	got, ok := f.reg.LiveRace(ch)
	require.True(t, ok)
	assert.Equal(t, "Sprint", got.Name)
	th, _ := f.p.Thread(ch)
	assert.Contains(t, th.Members, owner.ID)

	require.NoError(t, f.reg.JoinLive(ctx, ch, runner))
	require.NoError(t, f.reg.JoinLive(ctx, ch, other))
	assert.ErrorIs(t, f.reg.JoinLive(ctx, ch, runner), races.ErrAlreadyEntered)
	assert.True(t, f.p.HasRole(runner.ID, role.ID))
	assert.Contains(t, f.p.Texts(ch), "<@20> has joined the race.")

	require.NoError(t, f.reg.SetReady(ctx, ch, runner, true))
	assert.NotContains(t, f.p.Texts(ch), "Everyone is ready. Start the race with `?go`.")
	require.NoError(t, f.reg.SetReady(ctx, ch, other, true))
	assert.Contains(t, f.p.Texts(ch), "Everyone is ready. Start the race with `?go`.")

	f.clock.now = racetime.Instant(5 * time.Second)
	require.NoError(t, f.reg.StartLive(ctx, ch))
	assert.Contains(t, f.p.Texts(ch), "The race has started! GLHF\nhttps://ff1.example/?s=deadbeef")
	assert.ErrorIs(t, f.reg.StartLive(ctx, ch), races.ErrAlreadyStarted)
	assert.ErrorIs(t, f.reg.QuitLive(ctx, ch, runner), races.ErrAlreadyStarted)

	f.clock.now += racetime.Instant(time.Hour + 2*time.Minute + 3*time.Second)
	require.NoError(t, f.reg.DoneLive(ctx, ch, runner))
	assert.Contains(t, f.p.Texts(ch), "Runner: 1:02:03")
	assert.ErrorIs(t, f.reg.DoneLive(ctx, ch, runner), races.ErrAlreadyDone)
	assert.Empty(t, f.p.Texts(resultsChannel))

	require.NoError(t, f.reg.ForfeitLive(ctx, ch, other))
	want := "Race Sprint results:\n\n1) Runner: 1:02:03\n2) Other: Forfeited\n"
	assert.Equal(t, []string{want}, f.p.Texts(resultsChannel))
	assert.False(t, f.p.HasRole(runner.ID, role.ID))
	assert.False(t, f.p.HasRole(other.ID, role.ID))

	_, ok = f.reg.LiveRace(ch)
	assert.False(t, ok)
	assert.Empty(t, f.reg.LiveRaces())
	assert.ErrorIs(t, f.reg.JoinLive(ctx, ch, runner), races.ErrUnknownRace)
}

func TestLiveRaceQuitAndEmptyStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch := f.createLive(t, "").ChannelID

	assert.ErrorIs(t, f.reg.StartLive(ctx, ch), races.ErrNoRunners)
	require.NoError(t, f.reg.JoinLive(ctx, ch, runner))
	require.NoError(t, f.reg.QuitLive(ctx, ch, runner))
	assert.Contains(t, f.p.Texts(ch), "Runner has left the race.")
	assert.ErrorIs(t, f.reg.QuitLive(ctx, ch, runner), races.ErrUnknownRunner)
	assert.ErrorIs(t, f.reg.DoneLive(ctx, ch, runner), races.ErrUnknownRunner)

	require.NoError(t, f.reg.SpectateLive(ctx, ch, other))
	th, _ := f.p.Thread(ch)
	assert.Contains(t, th.Members, other.ID)
	assert.Contains(t, f.p.Texts(ch), "Other is now spectating!")
}

func TestLiveRaceUnknownRole(t *testing.T) {
	f := newFixture(t)
	_, err := f.reg.CreateLiveRace(context.Background(), LiveRequest{VenueID: venue, Name: "Sprint", Owner: owner, Role: "nope"})
	assert.Error(t, err)
	assert.Empty(t, f.reg.LiveRaces())
}
