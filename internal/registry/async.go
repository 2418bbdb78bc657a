package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"racebot/internal/archive"
	"racebot/internal/chat"
	"racebot/internal/models"
	"racebot/internal/races"
	"racebot/internal/racetime"
)

const spoilerPrefix = "[Spoiler] - "

// CreateRequest describes a new async race.
type CreateRequest struct {
	VenueID int64
	Name    string
	Owner   models.User
	Flags   string
	Start   *time.Time
	End     *time.Time
	// Role is the name of the role whose members are invited to the race
	// thread and mentioned when it opens.
	Role string
}

// CreateAsyncRace opens the race and spoiler threads in the venue. A race
// without a start time is started at once; otherwise a scheduled notice is
// posted and the scheduler starts it later.
func (r *Registry) CreateAsyncRace(ctx context.Context, req CreateRequest) (RaceView, error) {
	if err := r.reserve(req.VenueID); err != nil {
		return RaceView{}, err
	}
	race, err := r.initRace(ctx, req)
	if err != nil {
		r.release(req.VenueID)
		return RaceView{}, err
	}
	s, err := r.insertSlot(race, true)
	if err != nil {
		return RaceView{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if race.StartTime == nil {
		if err := r.startLocked(ctx, s); err != nil {
			// The race stays scheduled without a start time; startrace retries.
			r.report(ctx, s.race, "start race", err)
			r.persist(ctx, s.race)
			return viewOf(s.race), err
		}
	}
	r.persist(ctx, s.race)
	r.log.Info().Int64("race", race.ID).Str("name", race.Name).Int64("venue", race.VenueID).Msg("async race created")
	return viewOf(s.race), nil
}

func (r *Registry) initRace(ctx context.Context, req CreateRequest) (*races.AsyncRace, error) {
	race := races.NewAsyncRace(req.VenueID, req.Name, req.Owner, req.Flags, req.Start, req.End, req.Role)

	raceThread, err := r.platform.CreateThread(ctx, req.VenueID, req.Name, false)
	if err != nil {
		return nil, fmt.Errorf("create race thread: %w", err)
	}
	spoiler, err := r.platform.CreateThread(ctx, req.VenueID, spoilerPrefix+req.Name, true)
	if err != nil {
		r.dropThread(ctx, raceThread)
		return nil, fmt.Errorf("create spoiler thread: %w", err)
	}
	race.ID = raceThread
	race.RaceThreadID = raceThread
	race.SpoilerThreadID = spoiler

	for _, th := range []int64{raceThread, spoiler} {
		if err := r.platform.AddThreadMember(ctx, th, req.Owner.ID); err != nil {
			r.dropThread(ctx, raceThread)
			r.dropThread(ctx, spoiler)
			return nil, fmt.Errorf("add owner to thread: %w", err)
		}
	}
	if req.Role != "" {
		r.inviteRole(ctx, race)
	}

	if race.StartTime != nil {
		text := race.ScheduledText(r.platform.Timestamp(*race.StartTime))
		id, err := r.platform.Send(ctx, raceThread, text)
		if err != nil {
			r.dropThread(ctx, raceThread)
			r.dropThread(ctx, spoiler)
			return nil, fmt.Errorf("post scheduled notice: %w", err)
		}
		race.AnnouncementMsgID = id
	}
	return race, nil
}

func (r *Registry) inviteRole(ctx context.Context, race *races.AsyncRace) {
	role, err := r.platform.ResolveRole(ctx, race.Role)
	if err != nil {
		r.log.Warn().Err(err).Str("role", race.Role).Msg("resolve race role")
		return
	}
	members, err := r.platform.RoleMembers(ctx, role.ID)
	if err != nil {
		r.log.Warn().Err(err).Str("role", race.Role).Msg("list race role members")
		return
	}
	for _, m := range members {
		if err := r.platform.AddThreadMember(ctx, race.RaceThreadID, m.ID); err != nil {
			r.log.Warn().Err(err).Int64("user", m.ID).Msg("invite role member")
		}
	}
}

func (r *Registry) dropThread(ctx context.Context, threadID int64) {
	if err := r.platform.DeleteThread(ctx, threadID); err != nil && !errors.Is(err, chat.ErrNotFound) {
		r.log.Warn().Err(err).Int64("thread", threadID).Msg("delete thread")
	}
}

// ---------- Transitions ----------

func (r *Registry) StartRace(ctx context.Context, raceID int64) error {
	s, err := r.acquire(raceID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	if err := r.startLocked(ctx, s); err != nil {
		return err
	}
	r.persist(ctx, s.race)
	return nil
}

// startLocked activates the race and publishes it. When publishing fails
// the race goes back to its previous state, keeping any message ids
// already obtained, so a later attempt edits instead of reposting.
func (r *Registry) startLocked(ctx context.Context, s *slot) error {
	prev := s.race.Clone()
	race := s.race
	if err := race.Start(r.seeds); err != nil {
		return err
	}
	if err := r.publishStart(ctx, race); err != nil {
		prev.AnnouncementMsgID = race.AnnouncementMsgID
		prev.CounterMsgID = race.CounterMsgID
		prev.SpoilerBoardMsgID = race.SpoilerBoardMsgID
		s.race = prev
		return fmt.Errorf("start race %s: %w", race.Name, err)
	}
	r.log.Info().Int64("race", race.ID).Str("name", race.Name).Msg("async race started")
	return nil
}

func (r *Registry) publishStart(ctx context.Context, race *races.AsyncRace) error {
	endStamp := ""
	if race.EndTime != nil {
		endStamp = r.platform.Timestamp(*race.EndTime)
	}
	if err := r.upsert(ctx, race.RaceThreadID, &race.AnnouncementMsgID, race.AnnouncementText(endStamp)); err != nil {
		return fmt.Errorf("announcement: %w", err)
	}
	if race.Role != "" {
		if role, err := r.platform.ResolveRole(ctx, race.Role); err == nil {
			if _, err := r.platform.Send(ctx, race.RaceThreadID, r.platform.RoleMention(role)); err != nil {
				return fmt.Errorf("role mention: %w", err)
			}
		} else {
			r.log.Warn().Err(err).Str("role", race.Role).Msg("resolve race role")
		}
	}
	if err := r.upsert(ctx, race.RaceThreadID, &race.CounterMsgID, race.CounterText()); err != nil {
		return fmt.Errorf("participant counter: %w", err)
	}
	if err := r.upsert(ctx, race.SpoilerThreadID, &race.SpoilerBoardMsgID, race.SpoilerBoardText()); err != nil {
		return fmt.Errorf("spoiler leaderboard: %w", err)
	}
	if err := r.platform.Pin(ctx, race.SpoilerThreadID, race.SpoilerBoardMsgID); err != nil && !errors.Is(err, chat.ErrUnsupported) {
		return fmt.Errorf("pin spoiler leaderboard: %w", err)
	}
	return nil
}

// EndRace closes submissions, posts the final standings, sends the owner
// the CSV export, archives the results and removes the race.
func (r *Registry) EndRace(ctx context.Context, raceID int64) error {
	s, err := r.acquire(raceID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	return r.endLocked(ctx, s)
}

func (r *Registry) endLocked(ctx context.Context, s *slot) error {
	prev := s.race.Clone()
	race := s.race
	if err := race.End(); err != nil {
		return err
	}
	final := race.FinalBoardText()
	if _, err := r.platform.Send(ctx, race.SpoilerThreadID, final); err != nil {
		s.race = prev
		return fmt.Errorf("end race %s: post final leaderboard: %w", race.Name, err)
	}
	if _, err := r.platform.Send(ctx, race.RaceThreadID, final); err != nil {
		r.report(ctx, race, "post final leaderboard", err)
	}

	csv, err := race.ExportCSV(false)
	if err == nil {
		err = r.platform.SendDirectFile(ctx, race.Owner.ID,
			"Here is the CSV export of the final leaderboard for "+race.Name+":", race.ExportFilename(), csv)
	}
	r.report(ctx, race, "send final export", err)

	r.report(ctx, race, "archive results", r.archiver.Archive(ctx, archive.Result{
		RaceID:     race.ID,
		Name:       race.Name,
		FinishedAt: r.now().UTC(),
		Standings:  race.Standings(),
		Forfeits:   races.Forfeits(race.Entries()),
		CSV:        csv,
		Filename:   race.ExportFilename(),
	}))

	if r.resultsChannel != 0 {
		_, err := r.platform.Send(ctx, r.resultsChannel, "**"+race.Name+"**\n"+final)
		r.report(ctx, race, "post results", err)
	}

	r.log.Info().Int64("race", race.ID).Str("name", race.Name).Int("participants", race.Participants()).Msg("async race finished")
	return r.removeLocked(ctx, s)
}

// CancelRace calls off a race that has not started.
func (r *Registry) CancelRace(ctx context.Context, raceID int64) error {
	s, err := r.acquire(raceID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	prev := s.race.Clone()
	race := s.race
	if err := race.Cancel(); err != nil {
		return err
	}
	if err := r.platform.DeleteThread(ctx, race.SpoilerThreadID); err != nil && !errors.Is(err, chat.ErrNotFound) {
		s.race = prev
		return fmt.Errorf("cancel race %s: delete spoiler thread: %w", race.Name, err)
	}
	_, err = r.platform.Send(ctx, race.RaceThreadID, "This race has been cancelled.")
	r.report(ctx, race, "post cancel notice", err)

	r.log.Info().Int64("race", race.ID).Str("name", race.Name).Msg("async race cancelled")
	return r.removeLocked(ctx, s)
}

// ---------- Participation ----------

// Submit records a finish time. Input errors are answered with a DM to
// the runner and returned; races.IsUserError identifies them.
func (r *Registry) Submit(ctx context.Context, raceID int64, runner models.User, rawTime, proof string) error {
	s, err := r.acquire(raceID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	race := s.race

	e, err := race.Submit(runner, rawTime, proof)
	if err != nil {
		r.notifyRunner(ctx, race, runner, rawTime, err)
		return err
	}
	r.admitToSpoilers(ctx, race, runner)
	if _, err := r.platform.Send(ctx, race.SpoilerThreadID, "GG "+r.platform.Mention(runner.ID)); err != nil {
		r.report(ctx, race, "congratulate runner", err)
	}
	r.refreshBoards(ctx, race)
	if err := r.platform.SendDirect(ctx, race.Owner.ID, fmt.Sprintf("Time submitted for %s: %s", race.Name, e)); err != nil {
		r.report(ctx, race, "notify owner", err)
	}
	r.persist(ctx, race)
	return nil
}

func (r *Registry) Forfeit(ctx context.Context, raceID int64, runner models.User) error {
	s, err := r.acquire(raceID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	race := s.race

	e, err := race.Forfeit(runner)
	if err != nil {
		r.notifyRunner(ctx, race, runner, "", err)
		return err
	}
	r.admitToSpoilers(ctx, race, runner)
	r.refreshBoards(ctx, race)
	if err := r.platform.SendDirect(ctx, race.Owner.ID, fmt.Sprintf("Forfeit recorded for %s: %s", race.Name, e)); err != nil {
		r.report(ctx, race, "notify owner", err)
	}
	r.persist(ctx, race)
	return nil
}

// Spectate gives a user the spoiler thread without an entry in the
// standings. Spectating twice is a no-op.
func (r *Registry) Spectate(ctx context.Context, raceID int64, user models.User) error {
	s, err := r.acquire(raceID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	race := s.race

	_, added, err := race.Spectate(user)
	if err != nil {
		if dmErr := r.platform.SendDirect(ctx, user.ID, race.Name+" is not open for spectating"); dmErr != nil {
			r.log.Warn().Err(dmErr).Int64("user", user.ID).Msg("notify spectator")
		}
		return err
	}
	r.admitToSpoilers(ctx, race, user)
	if !added {
		return nil
	}
	if _, err := r.platform.Send(ctx, race.SpoilerThreadID, r.platform.Mention(user.ID)+" is now spectating!"); err != nil {
		r.report(ctx, race, "announce spectator", err)
	}
	r.persist(ctx, race)
	return nil
}

// Export renders the current standings of a running race, with bins.
func (r *Registry) Export(ctx context.Context, raceID int64) (data []byte, filename string, err error) {
	s, err := r.acquire(raceID)
	if err != nil {
		return nil, "", err
	}
	defer s.mu.Unlock()
	data, err = s.race.ExportCSV(true)
	if err != nil {
		return nil, "", fmt.Errorf("export race %d: %w", raceID, err)
	}
	return data, s.race.ExportFilename(), nil
}

func (r *Registry) admitToSpoilers(ctx context.Context, race *races.AsyncRace, user models.User) {
	if err := r.platform.AddThreadMember(ctx, race.SpoilerThreadID, user.ID); err != nil {
		r.report(ctx, race, "add to spoiler thread", err)
	}
}

func (r *Registry) refreshBoards(ctx context.Context, race *races.AsyncRace) {
	r.report(ctx, race, "update spoiler leaderboard",
		r.upsert(ctx, race.SpoilerThreadID, &race.SpoilerBoardMsgID, race.SpoilerBoardText()))
	r.report(ctx, race, "update participant counter",
		r.upsert(ctx, race.RaceThreadID, &race.CounterMsgID, race.CounterText()))
}

// notifyRunner answers a rejected submission privately. Other errors are
// left to the caller.
func (r *Registry) notifyRunner(ctx context.Context, race *races.AsyncRace, runner models.User, rawTime string, err error) {
	var text string
	switch {
	case errors.Is(err, races.ErrNotActive):
		text = race.Name + " is not open for time submissions"
	case errors.Is(err, races.ErrDuplicateSubmission):
		text = "You have already submitted a time for this race"
	case errors.Is(err, races.ErrMissingRequiredProof):
		text = "You must provide a VOD link when submitting a time"
	case errors.Is(err, racetime.ErrInvalidTimeFormat):
		text = fmt.Sprintf("The time you provided '%s' is not in the format HH:MM:SS", rawTime)
	default:
		return
	}
	if dmErr := r.platform.SendDirect(ctx, runner.ID, text); dmErr != nil {
		r.log.Warn().Err(dmErr).Int64("user", runner.ID).Msg("notify runner")
	}
}

// Now is the registry's wall clock.
func (r *Registry) Now() time.Time { return r.now() }
