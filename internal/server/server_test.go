package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racebot/internal/races"
	"racebot/internal/registry"
	"racebot/internal/util"
)

type fakeRaces struct {
	views []registry.RaceView
	csv   map[int64][]byte
}

func (f *fakeRaces) Races() []registry.RaceView     { return f.views }
func (f *fakeRaces) LiveRaces() []registry.LiveView { return nil }

func (f *fakeRaces) Export(_ context.Context, raceID int64) ([]byte, string, error) {
	data, ok := f.csv[raceID]
	if !ok {
		return nil, "", fmt.Errorf("race %d: %w", raceID, races.ErrUnknownRace)
	}
	return data, "Weekly_leaderboard.csv", nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	rs := &fakeRaces{
		views: []registry.RaceView{{ID: 42, Name: "Weekly", State: races.StateActive, Participants: 2}},
		csv:   map[int64][]byte{42: []byte("Runner,Time,VOD\n")},
	}
	srv := httptest.NewServer(Router(rs, "secret", zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	res, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestListRaces(t *testing.T) {
	srv := newTestServer(t)
	res, err := http.Get(srv.URL + "/races")
	require.NoError(t, err)
	defer res.Body.Close()

	var body struct {
		Async []registry.RaceView `json:"async"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Len(t, body.Async, 1)
	assert.Equal(t, "Weekly", body.Async[0].Name)
	assert.Equal(t, 2, body.Async[0].Participants)
}

func TestExportToken(t *testing.T) {
	srv := newTestServer(t)
	cases := []struct {
		name string
		path string
		want int
	}{
		{"valid", "/export/42.csv?token=" + util.ExportToken("secret", "42"), http.StatusOK},
		{"missing token", "/export/42.csv", http.StatusForbidden},
		{"wrong token", "/export/42.csv?token=" + util.ExportToken("other", "42"), http.StatusForbidden},
		{"token of another race", "/export/42.csv?token=" + util.ExportToken("secret", "43"), http.StatusForbidden},
		{"unknown race", "/export/43.csv?token=" + util.ExportToken("secret", "43"), http.StatusNotFound},
		{"not csv", "/export/42.json?token=" + util.ExportToken("secret", "42"), http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := http.Get(srv.URL + tc.path)
			require.NoError(t, err)
			defer res.Body.Close()
			assert.Equal(t, tc.want, res.StatusCode)
		})
	}
}

func TestExportURL(t *testing.T) {
	u := ExportURL("https://bot.example.org/", "secret", 42)
	assert.Equal(t, "https://bot.example.org/export/42.csv?token="+util.ExportToken("secret", "42"), u)
}
