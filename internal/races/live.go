package races

import (
	"fmt"
	"sort"
	"strings"

	"racebot/internal/racetime"
)

// RunnerEntry is one runner of a live race. Start and End are nil until
// stamped; End is racetime.Forfeit for a forfeit.
type RunnerEntry struct {
	ID    int64
	Name  string
	Start *racetime.Instant
	End   *racetime.Instant
	Ready bool
}

func (r *RunnerEntry) terminal() bool { return r.End != nil }

func (r *RunnerEntry) forfeited() bool {
	return r.End != nil && *r.End == racetime.Forfeit
}

// LiveRace is a race where every runner starts at the same instant.
type LiveRace struct {
	ID        string
	Name      string
	Flags     string
	ChannelID int64
	OwnerID   int64
	RoleID    int64

	clock   racetime.Clock
	order   []int64
	runners map[int64]*RunnerEntry
	started bool
}

func NewLiveRace(id, name, flags string, clock racetime.Clock) *LiveRace {
	if clock == nil {
		clock = racetime.NewMonotonicClock()
	}
	return &LiveRace{
		ID:      id,
		Name:    name,
		Flags:   flags,
		clock:   clock,
		runners: map[int64]*RunnerEntry{},
	}
}

func (r *LiveRace) Started() bool { return r.started }

func (r *LiveRace) AddRunner(id int64, name string) error {
	if r.started {
		return ErrAlreadyStarted
	}
	if _, ok := r.runners[id]; ok {
		return ErrAlreadyEntered
	}
	r.runners[id] = &RunnerEntry{ID: id, Name: name}
	r.order = append(r.order, id)
	return nil
}

func (r *LiveRace) RemoveRunner(id int64) error {
	if _, ok := r.runners[id]; !ok {
		return ErrUnknownRunner
	}
	if r.started {
		return ErrAlreadyStarted
	}
	delete(r.runners, id)
	for i, rid := range r.order {
		if rid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *LiveRace) SetReady(id int64, ready bool) error {
	e, ok := r.runners[id]
	if !ok {
		return ErrUnknownRunner
	}
	if r.started {
		return ErrAlreadyStarted
	}
	e.Ready = ready
	return nil
}

// AllReady is false for an empty race.
func (r *LiveRace) AllReady() bool {
	if len(r.order) == 0 {
		return false
	}
	for _, id := range r.order {
		if !r.runners[id].Ready {
			return false
		}
	}
	return true
}

// Runners returns copies in join order.
func (r *LiveRace) Runners() []RunnerEntry {
	out := make([]RunnerEntry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.runners[id])
	}
	return out
}

func (r *LiveRace) Start() error {
	if r.started {
		return ErrAlreadyStarted
	}
	if len(r.order) == 0 {
		return ErrNoRunners
	}
	now := r.clock.Now()
	for _, id := range r.order {
		start := now
		r.runners[id].Start = &start
	}
	r.started = true
	return nil
}

// Done stamps the runner's finish. The returned text is the runner's time,
// or the full results when this was the last runner out. finished reports
// the latter.
func (r *LiveRace) Done(id int64) (text string, finished bool, err error) {
	e, err := r.finishable(id)
	if err != nil {
		return "", false, err
	}
	end := r.clock.Now()
	e.End = &end
	if r.IsComplete() {
		return r.ResultsText(), true, nil
	}
	return fmt.Sprintf("%s: %s", e.Name, racetime.Format(racetime.Elapsed(*e.Start, end))), false, nil
}

func (r *LiveRace) Forfeit(id int64) (text string, finished bool, err error) {
	e, err := r.finishable(id)
	if err != nil {
		return "", false, err
	}
	end := racetime.Forfeit
	e.End = &end
	if r.IsComplete() {
		return r.ResultsText(), true, nil
	}
	return e.Name + " forfeited", false, nil
}

func (r *LiveRace) finishable(id int64) (*RunnerEntry, error) {
	e, ok := r.runners[id]
	if !ok {
		return nil, ErrUnknownRunner
	}
	if !r.started {
		return nil, ErrNotStarted
	}
	if e.terminal() {
		return nil, ErrAlreadyDone
	}
	return e, nil
}

// IsComplete is true once every runner has an end instant.
func (r *LiveRace) IsComplete() bool {
	if !r.started {
		return false
	}
	for _, id := range r.order {
		if !r.runners[id].terminal() {
			return false
		}
	}
	return true
}

type Placement struct {
	Place     int
	Name      string
	Elapsed   string
	Forfeited bool
}

// Results orders runners by end instant. Forfeits come last and ties keep
// join order.
func (r *LiveRace) Results() []Placement {
	sorted := r.Runners()
	sort.SliceStable(sorted, func(i, j int) bool {
		return endOf(sorted[i]) < endOf(sorted[j])
	})
	out := make([]Placement, 0, len(sorted))
	for i, e := range sorted {
		p := Placement{Place: i + 1, Name: e.Name}
		switch {
		case e.forfeited():
			p.Forfeited = true
		case e.End != nil && e.Start != nil:
			p.Elapsed = racetime.Format(racetime.Elapsed(*e.Start, *e.End))
		}
		out = append(out, p)
	}
	return out
}

func endOf(e RunnerEntry) racetime.Instant {
	if e.End == nil {
		return racetime.Forfeit
	}
	return *e.End
}

func (r *LiveRace) ResultsText() string {
	var b strings.Builder
	b.WriteString("Race " + r.Name + " results:\n\n")
	for _, p := range r.Results() {
		fmt.Fprintf(&b, "%d) %s: ", p.Place, p.Name)
		if p.Forfeited {
			b.WriteString("Forfeited\n")
		} else {
			b.WriteString(p.Elapsed + "\n")
		}
	}
	return b.String()
}
