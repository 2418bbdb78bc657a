package registry

import (
	"time"

	"racebot/internal/races"
)

// RaceView is a read-only snapshot of an async race.
type RaceView struct {
	ID              int64       `json:"id"`
	VenueID         int64       `json:"venue_id"`
	RaceThreadID    int64       `json:"race_thread_id"`
	SpoilerThreadID int64       `json:"spoiler_thread_id"`
	Name            string      `json:"name"`
	OwnerID         int64       `json:"owner_id"`
	OwnerName       string      `json:"owner_name"`
	Flags           string      `json:"flags"`
	Role            string      `json:"role,omitempty"`
	State           races.State `json:"state"`
	StartTime       *time.Time  `json:"start_time,omitempty"`
	EndTime         *time.Time  `json:"end_time,omitempty"`
	Participants    int         `json:"participants"`
}

// StartDue reports a scheduled race whose start time has passed.
func (v RaceView) StartDue(now time.Time) bool {
	return v.State == races.StateScheduled && v.StartTime != nil && v.StartTime.Before(now)
}

// EndDue reports a race whose end time has passed. Scheduled races count
// too, so a scan that starts a race can end it in the same pass.
func (v RaceView) EndDue(now time.Time) bool {
	return v.State != races.StateFinished && v.State != races.StateCancelled &&
		v.EndTime != nil && v.EndTime.Before(now)
}

func viewOf(r *races.AsyncRace) RaceView {
	v := RaceView{
		ID:              r.ID,
		VenueID:         r.VenueID,
		RaceThreadID:    r.RaceThreadID,
		SpoilerThreadID: r.SpoilerThreadID,
		Name:            r.Name,
		OwnerID:         r.Owner.ID,
		OwnerName:       r.Owner.DisplayName,
		Flags:           r.Flags,
		Role:            r.Role,
		State:           r.State(),
		Participants:    r.Participants(),
	}
	if r.StartTime != nil {
		t := *r.StartTime
		v.StartTime = &t
	}
	if r.EndTime != nil {
		t := *r.EndTime
		v.EndTime = &t
	}
	return v
}

// LiveView is a read-only snapshot of a live race.
type LiveView struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Flags     string              `json:"flags"`
	ChannelID int64               `json:"channel_id"`
	OwnerID   int64               `json:"owner_id"`
	Started   bool                `json:"started"`
	Runners   []races.RunnerEntry `json:"-"`
}

func liveViewOf(r *races.LiveRace) LiveView {
	return LiveView{
		ID:        r.ID,
		Name:      r.Name,
		Flags:     r.Flags,
		ChannelID: r.ChannelID,
		OwnerID:   r.OwnerID,
		Started:   r.Started(),
		Runners:   r.Runners(),
	}
}
