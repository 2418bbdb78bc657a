package races

import (
	"fmt"
	"time"

	"racebot/internal/models"
	"racebot/internal/racetime"
	"racebot/internal/util"
)

const forfeitTime = "00:00:00"

// LeaderboardEntry is one participant of an async race.
type LeaderboardEntry struct {
	RunnerID   int64
	RunnerName string
	RawTime    string
	Time       time.Duration
	Proof      string
	Forfeit    bool
	Spectator  bool
}

func NewEntry(runner models.User, rawTime, proof string) (LeaderboardEntry, error) {
	d, err := racetime.Parse(rawTime)
	if err != nil {
		return LeaderboardEntry{}, err
	}
	return LeaderboardEntry{
		RunnerID:   runner.ID,
		RunnerName: util.SanitizeName(runner.DisplayName),
		RawTime:    rawTime,
		Time:       d,
		Proof:      proof,
	}, nil
}

func NewForfeitEntry(runner models.User) LeaderboardEntry {
	return LeaderboardEntry{
		RunnerID:   runner.ID,
		RunnerName: util.SanitizeName(runner.DisplayName),
		RawTime:    forfeitTime,
		Forfeit:    true,
	}
}

func NewSpectatorEntry(user models.User) LeaderboardEntry {
	return LeaderboardEntry{
		RunnerID:   user.ID,
		RunnerName: util.SanitizeName(user.DisplayName),
		RawTime:    forfeitTime,
		Spectator:  true,
	}
}

// Same reports whether both entries belong to the same runner.
func (e LeaderboardEntry) Same(o LeaderboardEntry) bool {
	return e.RunnerID == o.RunnerID
}

func (e LeaderboardEntry) String() string {
	if e.Forfeit {
		return e.RunnerName + " - Forfeit"
	}
	s := fmt.Sprintf("%s - %s", e.RunnerName, racetime.Format(e.Time))
	if e.Proof != "" {
		s += " - <" + e.Proof + ">"
	}
	return s
}

func (e LeaderboardEntry) record() models.EntryRecord {
	return models.EntryRecord{
		RunnerID:   e.RunnerID,
		RunnerName: e.RunnerName,
		RawTime:    e.RawTime,
		Seconds:    int64(e.Time / time.Second),
		Proof:      e.Proof,
		Forfeit:    e.Forfeit,
		Spectator:  e.Spectator,
	}
}

func entryFromRecord(r models.EntryRecord) LeaderboardEntry {
	return LeaderboardEntry{
		RunnerID:   r.RunnerID,
		RunnerName: r.RunnerName,
		RawTime:    r.RawTime,
		Time:       time.Duration(r.Seconds) * time.Second,
		Proof:      r.Proof,
		Forfeit:    r.Forfeit,
		Spectator:  r.Spectator,
	}
}
