package boards

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"racebot/internal/models"
	"racebot/internal/racetime"
	"racebot/internal/util"
)

var (
	ErrAlreadyParticipated = errors.New("runner already has a result on this board")
	ErrNotCreated          = errors.New("leaderboard has not been created")
	ErrRoleRequired        = errors.New("required role missing")
	ErrUnknownBoard        = errors.New("unknown board")
)

type Finisher struct {
	RunnerID int64
	Name     string
	Time     time.Duration
}

// Board is a standing leaderboard: finishers fastest first plus a set of
// forfeiters. Its text is rendered from this data, never parsed back.
type Board struct {
	Key          string
	Title        string
	BoardMsgID   int64
	CounterMsgID int64

	finishers  []Finisher
	forfeiters []int64
}

func New(key, title string) *Board {
	return &Board{Key: key, Title: title}
}

func (b *Board) Has(runnerID int64) bool {
	for _, f := range b.finishers {
		if f.RunnerID == runnerID {
			return true
		}
	}
	for _, id := range b.forfeiters {
		if id == runnerID {
			return true
		}
	}
	return false
}

// Submit inserts a finisher after every finisher with an equal or faster
// time.
func (b *Board) Submit(runner models.User, d time.Duration) error {
	if b.Has(runner.ID) {
		return ErrAlreadyParticipated
	}
	f := Finisher{RunnerID: runner.ID, Name: util.SanitizeName(runner.DisplayName), Time: d}
	i := sort.Search(len(b.finishers), func(i int) bool { return b.finishers[i].Time > d })
	b.finishers = append(b.finishers, Finisher{})
	copy(b.finishers[i+1:], b.finishers[i:])
	b.finishers[i] = f
	return nil
}

func (b *Board) Forfeit(runner models.User) error {
	if b.Has(runner.ID) {
		return ErrAlreadyParticipated
	}
	b.forfeiters = append(b.forfeiters, runner.ID)
	return nil
}

// Remove drops a runner's result. It reports whether there was one.
func (b *Board) Remove(runnerID int64) bool {
	for i, f := range b.finishers {
		if f.RunnerID == runnerID {
			b.finishers = append(b.finishers[:i], b.finishers[i+1:]...)
			return true
		}
	}
	for i, id := range b.forfeiters {
		if id == runnerID {
			b.forfeiters = append(b.forfeiters[:i], b.forfeiters[i+1:]...)
			return true
		}
	}
	return false
}

func (b *Board) Finishers() []Finisher {
	return append([]Finisher(nil), b.finishers...)
}

func (b *Board) Forfeits() int { return len(b.forfeiters) }

func (b *Board) Participants() int { return len(b.finishers) + len(b.forfeiters) }

func (b *Board) Text() string {
	var sb strings.Builder
	sb.WriteString(b.Title + "\n\n")
	for i, f := range b.finishers {
		fmt.Fprintf(&sb, "%d) %s - %s\n", i+1, f.Name, racetime.Format(f.Time))
	}
	if len(b.finishers) > 0 {
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Forfeits - %d", len(b.forfeiters))
	return sb.String()
}

func (b *Board) CounterText() string {
	return fmt.Sprintf("Number of participants: %d", b.Participants())
}

func (b *Board) Record() models.BoardRecord {
	rec := models.BoardRecord{
		Key:          b.Key,
		Title:        b.Title,
		BoardMsgID:   b.BoardMsgID,
		CounterMsgID: b.CounterMsgID,
		Finishers:    make([]models.FinisherRecord, 0, len(b.finishers)),
		Forfeiters:   append([]int64{}, b.forfeiters...),
	}
	for _, f := range b.finishers {
		rec.Finishers = append(rec.Finishers, models.FinisherRecord{
			RunnerID: f.RunnerID, Name: f.Name, Seconds: int64(f.Time / time.Second),
		})
	}
	return rec
}

func FromRecord(rec models.BoardRecord) *Board {
	b := &Board{
		Key:          rec.Key,
		Title:        rec.Title,
		BoardMsgID:   rec.BoardMsgID,
		CounterMsgID: rec.CounterMsgID,
		forfeiters:   append([]int64(nil), rec.Forfeiters...),
	}
	for _, f := range rec.Finishers {
		b.finishers = append(b.finishers, Finisher{RunnerID: f.RunnerID, Name: f.Name, Time: time.Duration(f.Seconds) * time.Second})
	}
	return b
}
