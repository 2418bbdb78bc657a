package races

import (
	"fmt"
	"time"

	"racebot/internal/models"
)

type State string

const (
	StateScheduled State = "scheduled"
	StateActive    State = "active"
	StateFinished  State = "finished"
	StateCancelled State = "cancelled"
)

// AsyncRace is a race with a submission window. It holds no platform
// objects: threads and messages are referenced by id and the registry
// performs every side effect.
type AsyncRace struct {
	ID                int64
	VenueID           int64
	RaceThreadID      int64
	SpoilerThreadID   int64
	AnnouncementMsgID int64
	CounterMsgID      int64
	SpoilerBoardMsgID int64

	Name      string
	Owner     models.User
	Flags     string
	StartTime *time.Time
	EndTime   *time.Time
	Role      string

	seed        string
	state       State
	leaderboard []LeaderboardEntry
}

func NewAsyncRace(venueID int64, name string, owner models.User, flags string, start, end *time.Time, role string) *AsyncRace {
	return &AsyncRace{
		VenueID:   venueID,
		Name:      name,
		Owner:     owner,
		Flags:     flags,
		StartTime: utcPtr(start),
		EndTime:   utcPtr(end),
		Role:      role,
		state:     StateScheduled,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (r *AsyncRace) State() State { return r.state }

// Seed is empty until the race is started.
func (r *AsyncRace) Seed() string { return r.seed }

func (r *AsyncRace) IsOwner(userID int64) bool { return r.Owner.ID == userID }

func (r *AsyncRace) Start(gen SeedFunc) error {
	if r.state != StateScheduled {
		return fmt.Errorf("start %s: %w", r.Name, ErrAlreadyActiveOrFinished)
	}
	seed, err := gen(r.Flags)
	if err != nil {
		return fmt.Errorf("start %s: %w", r.Name, err)
	}
	r.seed = seed
	r.state = StateActive
	return nil
}

func (r *AsyncRace) End() error {
	if r.state != StateActive {
		return fmt.Errorf("end %s: %w", r.Name, ErrNotActive)
	}
	r.state = StateFinished
	return nil
}

func (r *AsyncRace) Cancel() error {
	if r.state != StateScheduled {
		return fmt.Errorf("cancel %s: %w", r.Name, ErrAlreadyActiveOrFinished)
	}
	r.state = StateCancelled
	return nil
}

// Submit records a finish. Checks run in order: open window, duplicate,
// proof, time format.
func (r *AsyncRace) Submit(runner models.User, rawTime, proof string) (LeaderboardEntry, error) {
	if err := r.acceptsRunner(runner.ID); err != nil {
		return LeaderboardEntry{}, err
	}
	if proof == "" {
		return LeaderboardEntry{}, ErrMissingRequiredProof
	}
	e, err := NewEntry(runner, rawTime, proof)
	if err != nil {
		return LeaderboardEntry{}, err
	}
	r.leaderboard = append(r.leaderboard, e)
	return e, nil
}

func (r *AsyncRace) Forfeit(runner models.User) (LeaderboardEntry, error) {
	if err := r.acceptsRunner(runner.ID); err != nil {
		return LeaderboardEntry{}, err
	}
	e := NewForfeitEntry(runner)
	r.leaderboard = append(r.leaderboard, e)
	return e, nil
}

func (r *AsyncRace) acceptsRunner(id int64) error {
	if r.state != StateActive {
		return ErrNotActive
	}
	if _, ok := r.Entry(id); ok {
		return ErrDuplicateSubmission
	}
	return nil
}

// Spectate is allowed until the race closes. A user who already has an
// entry keeps it and added is false.
func (r *AsyncRace) Spectate(user models.User) (e LeaderboardEntry, added bool, err error) {
	if r.state != StateScheduled && r.state != StateActive {
		return LeaderboardEntry{}, false, ErrNotActive
	}
	if existing, ok := r.Entry(user.ID); ok {
		return existing, false, nil
	}
	e = NewSpectatorEntry(user)
	r.leaderboard = append(r.leaderboard, e)
	return e, true, nil
}

func (r *AsyncRace) Entry(runnerID int64) (LeaderboardEntry, bool) {
	for _, e := range r.leaderboard {
		if e.RunnerID == runnerID {
			return e, true
		}
	}
	return LeaderboardEntry{}, false
}

func (r *AsyncRace) Entries() []LeaderboardEntry {
	out := make([]LeaderboardEntry, len(r.leaderboard))
	copy(out, r.leaderboard)
	return out
}

// Participants counts runners, not spectators.
func (r *AsyncRace) Participants() int {
	n := 0
	for _, e := range r.leaderboard {
		if !e.Spectator {
			n++
		}
	}
	return n
}

// StartDue reports a scheduled race whose start time has passed.
func (r *AsyncRace) StartDue(now time.Time) bool {
	return r.state == StateScheduled && r.StartTime != nil && r.StartTime.Before(now)
}

// EndDue reports an active race whose end time has passed.
func (r *AsyncRace) EndDue(now time.Time) bool {
	return r.state == StateActive && r.EndTime != nil && r.EndTime.Before(now)
}

// Clone returns a deep copy, used to roll back a transition whose side
// effects failed.
func (r *AsyncRace) Clone() *AsyncRace {
	c := *r
	c.StartTime = utcPtr(r.StartTime)
	c.EndTime = utcPtr(r.EndTime)
	c.leaderboard = r.Entries()
	return &c
}

// ---------- Persistence ----------

func (r *AsyncRace) Record() models.RaceRecord {
	rec := models.RaceRecord{
		RaceID:            r.ID,
		VenueID:           r.VenueID,
		RaceThreadID:      r.RaceThreadID,
		SpoilerThreadID:   r.SpoilerThreadID,
		Name:              r.Name,
		OwnerID:           r.Owner.ID,
		Flags:             r.Flags,
		StartTime:         utcPtr(r.StartTime),
		EndTime:           utcPtr(r.EndTime),
		Role:              r.Role,
		Seed:              r.seed,
		State:             string(r.state),
		AnnouncementMsgID: r.AnnouncementMsgID,
		CounterMsgID:      r.CounterMsgID,
		SpoilerBoardMsgID: r.SpoilerBoardMsgID,
		Leaderboard:       make([]models.EntryRecord, 0, len(r.leaderboard)),
	}
	for _, e := range r.leaderboard {
		rec.Leaderboard = append(rec.Leaderboard, e.record())
	}
	return rec
}

// FromRecord rebuilds a race. owner is the freshly resolved owner of
// rec.OwnerID.
func FromRecord(rec models.RaceRecord, owner models.User) (*AsyncRace, error) {
	st := State(rec.State)
	switch st {
	case StateScheduled, StateActive, StateFinished, StateCancelled:
	default:
		return nil, fmt.Errorf("race %d: unknown state %q", rec.RaceID, rec.State)
	}
	if owner.ID != rec.OwnerID {
		return nil, fmt.Errorf("race %d: owner %d resolved as %d", rec.RaceID, rec.OwnerID, owner.ID)
	}
	r := &AsyncRace{
		ID:                rec.RaceID,
		VenueID:           rec.VenueID,
		RaceThreadID:      rec.RaceThreadID,
		SpoilerThreadID:   rec.SpoilerThreadID,
		AnnouncementMsgID: rec.AnnouncementMsgID,
		CounterMsgID:      rec.CounterMsgID,
		SpoilerBoardMsgID: rec.SpoilerBoardMsgID,
		Name:              rec.Name,
		Owner:             owner,
		Flags:             rec.Flags,
		StartTime:         utcPtr(rec.StartTime),
		EndTime:           utcPtr(rec.EndTime),
		Role:              rec.Role,
		seed:              rec.Seed,
		state:             st,
	}
	for _, e := range rec.Leaderboard {
		r.leaderboard = append(r.leaderboard, entryFromRecord(e))
	}
	return r, nil
}
