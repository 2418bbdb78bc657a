package boards

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racebot/internal/models"
)

func TestBoardText(t *testing.T) {
	b := New("weekly", "Week 12")
	assert.Equal(t, "Week 12\n\nForfeits - 0", b.Text())
	assert.Equal(t, "Number of participants: 0", b.CounterText())

	require.NoError(t, b.Submit(models.User{ID: 1, DisplayName: "slow"}, 2*time.Hour))
	require.NoError(t, b.Submit(models.User{ID: 2, DisplayName: "fast (PB)"}, 61*time.Minute+5*time.Second))
	require.NoError(t, b.Submit(models.User{ID: 3, DisplayName: "tied"}, 2*time.Hour))
	require.NoError(t, b.Forfeit(models.User{ID: 4, DisplayName: "ff"}))

	assert.Equal(t, "Week 12\n\n1) fast PB - 1:01:05\n2) slow - 2:00:00\n3) tied - 2:00:00\n\nForfeits - 1", b.Text())
	assert.Equal(t, "Number of participants: 4", b.CounterText())
}

func TestBoardOneResultPerRunner(t *testing.T) {
	b := New("weekly", "Week 12")
	u := models.User{ID: 1, DisplayName: "amy"}
	require.NoError(t, b.Submit(u, time.Hour))
	assert.ErrorIs(t, b.Submit(u, time.Minute), ErrAlreadyParticipated)
	assert.ErrorIs(t, b.Forfeit(u), ErrAlreadyParticipated)

	assert.True(t, b.Remove(1))
	assert.False(t, b.Remove(1))
	assert.NoError(t, b.Forfeit(u))
	assert.Equal(t, 1, b.Forfeits())
	assert.True(t, b.Remove(1))
	assert.Zero(t, b.Participants())
}

func TestBoardRecordRoundTrip(t *testing.T) {
	b := New("weekly", "Week 12")
	b.BoardMsgID, b.CounterMsgID = 5, 6
	require.NoError(t, b.Submit(models.User{ID: 1, DisplayName: "amy"}, 3725*time.Second))
	require.NoError(t, b.Forfeit(models.User{ID: 2, DisplayName: "bob"}))

	got := FromRecord(b.Record())
	assert.Equal(t, b.Text(), got.Text())
	assert.Equal(t, b.Record(), got.Record())
	assert.Equal(t, b.Finishers(), got.Finishers())
}
