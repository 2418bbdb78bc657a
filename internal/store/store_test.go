package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racebot/internal/config"
	"racebot/internal/models"
)

// runContract checks the behaviour every backend shares.
func runContract(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	races, err := b.Store(NamespaceRaces)
	require.NoError(t, err)
	boards, err := b.Store(NamespaceBoards)
	require.NoError(t, err)

	t.Run("missing key", func(t *testing.T) {
		_, err := races.Load(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, races.Delete(ctx, "nope"))
	})

	t.Run("save load overwrite", func(t *testing.T) {
		require.NoError(t, races.Save(ctx, "1", []byte("one")))
		got, err := races.Load(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), got)

		require.NoError(t, races.Save(ctx, "1", []byte("uno")))
		got, err = races.Load(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, []byte("uno"), got)
	})

	t.Run("namespaces are separate", func(t *testing.T) {
		require.NoError(t, boards.Save(ctx, "1", []byte("board")))
		got, err := races.Load(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, []byte("uno"), got)
	})

	t.Run("load all and delete", func(t *testing.T) {
		require.NoError(t, races.Save(ctx, "2", []byte("two")))
		all, err := races.LoadAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string][]byte{"1": []byte("uno"), "2": []byte("two")}, all)

		require.NoError(t, races.Delete(ctx, "1"))
		all, err = races.LoadAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		assert.Contains(t, all, "2")
	})
}

func TestMemoryBackend(t *testing.T) {
	runContract(t, NewMemoryBackend())
}

func TestMemoryStoreCopies(t *testing.T) {
	s := NewMemoryStore()
	blob := []byte("abc")
	require.NoError(t, s.Save(context.Background(), "k", blob))
	blob[0] = 'x'
	got, err := s.Load(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestBoltBackend(t *testing.T) {
	b, err := OpenBolt(filepath.Join(t.TempDir(), "data", "races.db"))
	require.NoError(t, err)
	defer b.Close()
	runContract(t, b)
}

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := OpenRedis(context.Background(), "redis://"+mr.Addr()+"/0", map[string]string{NamespaceRaces: "races"})
	require.NoError(t, err)
	defer b.Close()
	runContract(t, b)

	// races live in the "races" hash, boards fall back to the namespace name
	assert.True(t, mr.Exists("races"))
	assert.Equal(t, "board", mr.HGet("boards", "1"))
}

func TestOpenRedisRequiresURL(t *testing.T) {
	_, err := OpenRedis(context.Background(), " ", nil)
	assert.Error(t, err)
}

func TestOpenByConfig(t *testing.T) {
	b, err := Open(context.Background(), config.Config{StoreBackend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	_, err = Open(context.Background(), config.Config{StoreBackend: "floppy"})
	assert.Error(t, err)
}

func TestRaceCodec(t *testing.T) {
	start := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	rec := models.RaceRecord{
		RaceID:       100,
		VenueID:      10,
		RaceThreadID: 100,
		Name:         "Weekly",
		OwnerID:      1,
		Flags:        "abc",
		StartTime:    &start,
		Seed:         "abc?s=deadbeef",
		State:        "active",
		Leaderboard: []models.EntryRecord{
			{RunnerID: 2, RunnerName: "r", RawTime: "1:02:03", Seconds: 3723, Proof: "v"},
			{RunnerID: 3, RunnerName: "f", RawTime: "00:00:00", Forfeit: true},
		},
	}
	b, err := EncodeRace(rec)
	require.NoError(t, err)

	back, err := DecodeRace(b)
	require.NoError(t, err)
	require.NotNil(t, back.StartTime)
	assert.True(t, start.Equal(*back.StartTime))
	assert.Nil(t, back.EndTime)
	back.StartTime = rec.StartTime
	assert.Equal(t, rec, back)

	_, err = DecodeRace([]byte{0xc1})
	assert.Error(t, err)
}

func TestBoardCodec(t *testing.T) {
	rec := models.BoardRecord{
		Key:        "challenge",
		Title:      "Week 12",
		Finishers:  []models.FinisherRecord{{RunnerID: 1, Name: "a", Seconds: 60}},
		Forfeiters: []int64{9},
		BoardMsgID: 5,
	}
	b, err := EncodeBoard(rec)
	require.NoError(t, err)
	back, err := DecodeBoard(b)
	require.NoError(t, err)
	assert.Equal(t, rec, back)
}
