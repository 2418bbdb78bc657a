package archive

import (
	"context"
	"errors"
	"time"

	"racebot/internal/races"
)

// Result is a finished async race as handed to archive sinks.
type Result struct {
	RaceID     int64
	Name       string
	FinishedAt time.Time
	Standings  []races.Standing
	Forfeits   []races.LeaderboardEntry
	CSV        []byte
	Filename   string
}

type Archiver interface {
	Archive(ctx context.Context, r Result) error
}

// Multi archives to every sink and joins their errors. One failing sink
// does not stop the others.
type Multi []Archiver

func (m Multi) Archive(ctx context.Context, r Result) error {
	var errs []error
	for _, a := range m {
		if err := a.Archive(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards results.
type Nop struct{}

func (Nop) Archive(context.Context, Result) error { return nil }
