package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racebot/internal/races"
	"racebot/internal/registry"
)

type fakeRaces struct {
	now     time.Time
	views   []registry.RaceView
	started []int64
	ended   []int64
	errs    map[int64]error
}

func (f *fakeRaces) Races() []registry.RaceView { return f.views }
func (f *fakeRaces) Now() time.Time            { return f.now }

func (f *fakeRaces) StartRace(_ context.Context, id int64) error {
	if err := f.errs[id]; err != nil {
		return err
	}
	f.started = append(f.started, id)
	return nil
}

func (f *fakeRaces) EndRace(_ context.Context, id int64) error {
	if err := f.errs[id]; err != nil {
		return err
	}
	f.ended = append(f.ended, id)
	return nil
}

type notes struct {
	mu    sync.Mutex
	texts []string
}

func (n *notes) NotifyOperator(_ context.Context, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
}

func at(t time.Time) *time.Time { return &t }

func TestScan(t *testing.T) {
	now := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Minute), now.Add(time.Hour)

	f := &fakeRaces{
		now: now,
		views: []registry.RaceView{
			{ID: 1, Name: "due to start", State: races.StateScheduled, StartTime: at(past)},
			{ID: 2, Name: "not yet", State: races.StateScheduled, StartTime: at(future)},
			{ID: 3, Name: "due to end", State: races.StateActive, EndTime: at(past)},
			{ID: 4, Name: "open", State: races.StateActive, EndTime: at(future)},
			{ID: 5, Name: "both", State: races.StateScheduled, StartTime: at(past.Add(-time.Hour)), EndTime: at(past)},
			{ID: 6, Name: "no times", State: races.StateActive},
		},
	}
	n := &notes{}
	s, err := New("@every 30s", f, n, zerolog.Nop())
	require.NoError(t, err)

	s.Scan(context.Background())
	assert.Equal(t, []int64{1, 5}, f.started)
	assert.Equal(t, []int64{3, 5}, f.ended)
	assert.Empty(t, n.texts)
}

func TestScanContinuesAfterFailure(t *testing.T) {
	now := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	f := &fakeRaces{
		now: now,
		views: []registry.RaceView{
			{ID: 1, Name: "broken", State: races.StateScheduled, StartTime: at(past), EndTime: at(past)},
			{ID: 2, Name: "gone", State: races.StateActive, EndTime: at(past)},
			{ID: 3, Name: "fine", State: races.StateActive, EndTime: at(past)},
		},
		errs: map[int64]error{
			1: errors.New("platform down"),
			2: races.ErrUnknownRace,
		},
	}
	n := &notes{}
	s, err := New("@every 30s", f, n, zerolog.Nop())
	require.NoError(t, err)

	s.Scan(context.Background())
	assert.Equal(t, []int64{3}, f.ended)
	require.Len(t, n.texts, 1)
	assert.True(t, strings.HasPrefix(n.texts[0], "Scheduled start of broken failed"))
}

func TestBadSpec(t *testing.T) {
	_, err := New("every now and then", &fakeRaces{}, &notes{}, zerolog.Nop())
	assert.Error(t, err)
}
