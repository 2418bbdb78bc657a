package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/segmentio/ksuid"

	"racebot/internal/chat"
	"racebot/internal/models"
	"racebot/internal/races"
)

type liveSlot struct {
	mu      sync.Mutex
	race    *races.LiveRace
	removed bool
}

// LiveRequest describes a new live race.
type LiveRequest struct {
	VenueID int64
	Name    string
	Flags   string
	Owner   models.User
	// Role is granted to runners while they are entered.
	Role string
}

// CreateLiveRace opens a thread for the race in the venue. Live races are
// kept in memory only.
func (r *Registry) CreateLiveRace(ctx context.Context, req LiveRequest) (LiveView, error) {
	race := races.NewLiveRace(ksuid.New().String(), req.Name, req.Flags, r.clock)
	race.OwnerID = req.Owner.ID
	if req.Role != "" {
		role, err := r.platform.ResolveRole(ctx, req.Role)
		if err != nil {
			return LiveView{}, fmt.Errorf("race role %q: %w", req.Role, err)
		}
		race.RoleID = role.ID
	}

	channel, err := r.platform.CreateThread(ctx, req.VenueID, req.Name, false)
	if err != nil {
		return LiveView{}, fmt.Errorf("create race thread: %w", err)
	}
	race.ChannelID = channel
	if err := r.platform.AddThreadMember(ctx, channel, req.Owner.ID); err != nil {
		r.log.Warn().Err(err).Int64("user", req.Owner.ID).Msg("add owner to live race")
	}
	if _, err := r.platform.Send(ctx, channel, fmt.Sprintf(
		"Live race %s is open! Use `?join` to enter and `?ready` once you are set.", race.Name)); err != nil {
		r.log.Warn().Err(err).Str("race", race.ID).Msg("announce live race")
	}

	r.mu.Lock()
	r.live[channel] = &liveSlot{race: race}
	r.mu.Unlock()
	r.log.Info().Str("race", race.ID).Str("name", race.Name).Int64("channel", channel).Msg("live race created")
	return liveViewOf(race), nil
}

// LiveRace finds the live race run in channelID.
func (r *Registry) LiveRace(channelID int64) (LiveView, bool) {
	r.mu.RLock()
	s, ok := r.live[channelID]
	r.mu.RUnlock()
	if !ok {
		return LiveView{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed {
		return LiveView{}, false
	}
	return liveViewOf(s.race), true
}

// LiveRaces lists live races ordered by id.
func (r *Registry) LiveRaces() []LiveView {
	r.mu.RLock()
	slots := make([]*liveSlot, 0, len(r.live))
	for _, s := range r.live {
		slots = append(slots, s)
	}
	r.mu.RUnlock()

	out := make([]LiveView, 0, len(slots))
	for _, s := range slots {
		s.mu.Lock()
		if !s.removed {
			out = append(out, liveViewOf(s.race))
		}
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) acquireLive(channelID int64) (*liveSlot, error) {
	r.mu.RLock()
	s, ok := r.live[channelID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("live race in %d: %w", channelID, races.ErrUnknownRace)
	}
	s.mu.Lock()
	if s.removed {
		s.mu.Unlock()
		return nil, fmt.Errorf("live race in %d: %w", channelID, races.ErrUnknownRace)
	}
	return s, nil
}

func (r *Registry) JoinLive(ctx context.Context, channelID int64, user models.User) error {
	s, err := r.acquireLive(channelID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	race := s.race

	if err := race.AddRunner(user.ID, user.DisplayName); err != nil {
		return err
	}
	if race.RoleID != 0 {
		r.liveEffect(race, "grant race role", r.platform.GrantRole(ctx, user.ID, race.RoleID))
	}
	r.liveEffect(race, "add runner to thread", r.platform.AddThreadMember(ctx, race.ChannelID, user.ID))
	r.say(ctx, race, r.platform.Mention(user.ID)+" has joined the race.")
	return nil
}

func (r *Registry) QuitLive(ctx context.Context, channelID int64, user models.User) error {
	s, err := r.acquireLive(channelID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	race := s.race

	if err := race.RemoveRunner(user.ID); err != nil {
		return err
	}
	if race.RoleID != 0 {
		r.liveEffect(race, "revoke race role", r.platform.RevokeRole(ctx, user.ID, race.RoleID))
	}
	r.say(ctx, race, user.DisplayName+" has left the race.")
	return nil
}

func (r *Registry) SetReady(ctx context.Context, channelID int64, user models.User, ready bool) error {
	s, err := r.acquireLive(channelID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	race := s.race

	if err := race.SetReady(user.ID, ready); err != nil {
		return err
	}
	if !ready {
		r.say(ctx, race, user.DisplayName+" is not ready.")
		return nil
	}
	r.say(ctx, race, user.DisplayName+" is ready!")
	if race.AllReady() {
		r.say(ctx, race, "Everyone is ready. Start the race with `?go`.")
	}
	return nil
}

// SpectateLive adds a user to the race thread without entering them.
func (r *Registry) SpectateLive(ctx context.Context, channelID int64, user models.User) error {
	s, err := r.acquireLive(channelID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	race := s.race

	r.liveEffect(race, "add spectator to thread", r.platform.AddThreadMember(ctx, race.ChannelID, user.ID))
	r.say(ctx, race, user.DisplayName+" is now spectating!")
	return nil
}

// StartLive stamps every runner's start and posts the seed.
func (r *Registry) StartLive(ctx context.Context, channelID int64) error {
	s, err := r.acquireLive(channelID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	race := s.race

	if race.Started() {
		return races.ErrAlreadyStarted
	}
	seed, err := r.seeds(race.Flags)
	if err != nil {
		return fmt.Errorf("live race %s seed: %w", race.Name, err)
	}
	if err := race.Start(); err != nil {
		return err
	}
	r.say(ctx, race, "The race has started! GLHF\n"+seed)
	r.log.Info().Str("race", race.ID).Int("runners", len(race.Runners())).Msg("live race started")
	return nil
}

func (r *Registry) DoneLive(ctx context.Context, channelID int64, user models.User) error {
	return r.finishLive(ctx, channelID, user.ID, (*races.LiveRace).Done)
}

func (r *Registry) ForfeitLive(ctx context.Context, channelID int64, user models.User) error {
	return r.finishLive(ctx, channelID, user.ID, (*races.LiveRace).Forfeit)
}

func (r *Registry) finishLive(ctx context.Context, channelID, userID int64,
	stamp func(*races.LiveRace, int64) (string, bool, error)) error {
	s, err := r.acquireLive(channelID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	race := s.race

	text, finished, err := stamp(race, userID)
	if err != nil {
		return err
	}
	r.say(ctx, race, text)
	if finished {
		r.finalizeLive(ctx, s)
	}
	return nil
}

// finalizeLive publishes the results, takes the race role back and drops
// the race.
func (r *Registry) finalizeLive(ctx context.Context, s *liveSlot) {
	race := s.race
	if r.resultsChannel != 0 {
		_, err := r.platform.Send(ctx, r.resultsChannel, race.ResultsText())
		r.liveEffect(race, "post live results", err)
	}
	if race.RoleID != 0 {
		for _, e := range race.Runners() {
			r.liveEffect(race, "revoke race role", r.platform.RevokeRole(ctx, e.ID, race.RoleID))
		}
	}
	s.removed = true
	r.mu.Lock()
	delete(r.live, race.ChannelID)
	r.mu.Unlock()
	r.log.Info().Str("race", race.ID).Str("name", race.Name).Msg("live race finished")
}

func (r *Registry) say(ctx context.Context, race *races.LiveRace, text string) {
	_, err := r.platform.Send(ctx, race.ChannelID, text)
	r.liveEffect(race, "post to live race", err)
}

// liveEffect logs a failed side effect of a live race. Platforms without
// roles are not an error.
func (r *Registry) liveEffect(race *races.LiveRace, what string, err error) {
	if err == nil || errors.Is(err, chat.ErrUnsupported) {
		return
	}
	r.log.Warn().Err(err).Str("race", race.ID).Msg(what)
}
