package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"racebot/internal/app"
	"racebot/internal/archive"
	"racebot/internal/chat"
	"racebot/internal/races"
	"racebot/internal/racetime"
	"racebot/internal/store"
)

// slot guards one async race. Transitions hold mu across their side
// effects, so at most one transition per race is in flight.
type slot struct {
	mu      sync.Mutex
	race    *races.AsyncRace
	removed bool
}

// Registry owns every running race. Async races are keyed by race id, by
// both of their threads and by venue; live races by their channel id.
type Registry struct {
	platform       chat.Platform
	store          store.Store
	notifier       chat.Notifier
	archiver       archive.Archiver
	resultsChannel int64
	log            zerolog.Logger

	seeds races.SeedFunc
	clock racetime.Clock
	now   func() time.Time

	mu        sync.RWMutex
	byID      map[int64]*slot
	byChannel map[int64]*slot
	byVenue   map[int64]*slot
	pending   map[int64]bool
	live      map[int64]*liveSlot
}

type Option func(*Registry)

// WithSeeds replaces the seed generator used when a race starts.
func WithSeeds(f races.SeedFunc) Option { return func(r *Registry) { r.seeds = f } }

// WithClock replaces the monotonic clock of live races.
func WithClock(c racetime.Clock) Option { return func(r *Registry) { r.clock = c } }

// WithNow replaces the wall clock.
func WithNow(f func() time.Time) Option { return func(r *Registry) { r.now = f } }

func New(a *app.App, opts ...Option) *Registry {
	r := &Registry{
		platform:       a.Platform,
		store:          a.Races,
		notifier:       a.Notifier,
		archiver:       a.Archiver,
		resultsChannel: a.Config.ResultsChannelID,
		log:            a.Logger("registry"),
		seeds:          races.SeedURL,
		clock:          racetime.NewMonotonicClock(),
		now:            time.Now,
		byID:           map[int64]*slot{},
		byChannel:      map[int64]*slot{},
		byVenue:        map[int64]*slot{},
		pending:        map[int64]bool{},
		live:           map[int64]*liveSlot{},
	}
	if r.archiver == nil {
		r.archiver = archive.Nop{}
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// ---------- Lookup ----------

// Race finds the async race hosted in channelID, which may be the race
// thread, the spoiler thread or the venue.
func (r *Registry) Race(channelID int64) (RaceView, bool) {
	s, ok := r.lookup(channelID)
	if !ok {
		return RaceView{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed {
		return RaceView{}, false
	}
	return viewOf(s.race), true
}

func (r *Registry) lookup(channelID int64) (*slot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byChannel[channelID]; ok {
		return s, true
	}
	s, ok := r.byVenue[channelID]
	return s, ok
}

// Races returns views of every async race ordered by id.
func (r *Registry) Races() []RaceView {
	r.mu.RLock()
	slots := make([]*slot, 0, len(r.byID))
	for _, s := range r.byID {
		slots = append(slots, s)
	}
	r.mu.RUnlock()

	out := make([]RaceView, 0, len(slots))
	for _, s := range slots {
		s.mu.Lock()
		if !s.removed {
			out = append(out, viewOf(s.race))
		}
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// acquire locks the slot of raceID. The caller must unlock it.
func (r *Registry) acquire(raceID int64) (*slot, error) {
	r.mu.RLock()
	s, ok := r.byID[raceID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("race %d: %w", raceID, races.ErrUnknownRace)
	}
	s.mu.Lock()
	if s.removed {
		s.mu.Unlock()
		return nil, fmt.Errorf("race %d: %w", raceID, races.ErrUnknownRace)
	}
	return s, nil
}

// ---------- Persistence ----------

func storeKey(raceID int64) string { return strconv.FormatInt(raceID, 10) }

// save writes the snapshot and reads it back.
func (r *Registry) save(ctx context.Context, race *races.AsyncRace) error {
	blob, err := store.EncodeRace(race.Record())
	if err != nil {
		return err
	}
	key := storeKey(race.ID)
	if err := r.store.Save(ctx, key, blob); err != nil {
		return fmt.Errorf("save race %d: %w", race.ID, err)
	}
	got, err := r.store.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("verify race %d: %w", race.ID, err)
	}
	if !bytes.Equal(got, blob) {
		return fmt.Errorf("race %d: %w", race.ID, races.ErrPersistenceMismatch)
	}
	return nil
}

// persist saves the race. Failures reach the log and the operator and do
// not fail the calling operation.
func (r *Registry) persist(ctx context.Context, race *races.AsyncRace) {
	if err := r.save(ctx, race); err != nil {
		r.log.Error().Err(err).Int64("race", race.ID).Msg("persist race")
		r.notifier.NotifyOperator(ctx, fmt.Sprintf("Could not persist race %s: %v", race.Name, err))
	}
}

// RemoveRace drops a race from memory and from the store.
func (r *Registry) RemoveRace(ctx context.Context, raceID int64) error {
	s, err := r.acquire(raceID)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()
	return r.removeLocked(ctx, s)
}

func (r *Registry) removeLocked(ctx context.Context, s *slot) error {
	race := s.race
	s.removed = true
	r.mu.Lock()
	delete(r.byID, race.ID)
	delete(r.byChannel, race.RaceThreadID)
	delete(r.byChannel, race.SpoilerThreadID)
	if r.byVenue[race.VenueID] == s {
		delete(r.byVenue, race.VenueID)
	}
	r.mu.Unlock()
	if err := r.store.Delete(ctx, storeKey(race.ID)); err != nil {
		return fmt.Errorf("delete race %d: %w", race.ID, err)
	}
	return nil
}

// ---------- Recovery ----------

// Restore loads every persisted race and resolves its owner and threads
// through the platform. Races that cannot be rebuilt are reported and
// skipped; their records stay in the store.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	blobs, err := r.store.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load races: %w", err)
	}
	keys := make([]string, 0, len(blobs))
	for k := range blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	restored := 0
	for _, k := range keys {
		race, err := r.rebuild(ctx, blobs[k])
		if err == nil {
			err = r.insert(race, false)
		}
		if err != nil {
			r.log.Error().Err(err).Str("key", k).Msg("restore race")
			r.notifier.NotifyOperator(ctx, fmt.Sprintf("Could not restore race %s: %v", k, err))
			continue
		}
		restored++
		r.log.Info().Int64("race", race.ID).Str("name", race.Name).Str("state", string(race.State())).Msg("race restored")
	}
	return restored, nil
}

func (r *Registry) rebuild(ctx context.Context, blob []byte) (*races.AsyncRace, error) {
	rec, err := store.DecodeRace(blob)
	if err != nil {
		return nil, err
	}
	owner, err := r.platform.ResolveUser(ctx, rec.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("race %d owner: %w", rec.RaceID, err)
	}
	for _, id := range []int64{rec.RaceThreadID, rec.SpoilerThreadID} {
		if err := r.platform.ResolveChannel(ctx, id); err != nil {
			return nil, fmt.Errorf("race %d thread: %w", rec.RaceID, err)
		}
	}
	race, err := races.FromRecord(rec, owner)
	if err != nil {
		return nil, err
	}
	switch race.State() {
	case races.StateScheduled, races.StateActive:
		return race, nil
	default:
		return nil, fmt.Errorf("race %d is %s", race.ID, race.State())
	}
}

// reserve claims a venue while a race is being created in it.
func (r *Registry) reserve(venueID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.venueBusyLocked(venueID) {
		return fmt.Errorf("venue %d: %w", venueID, races.ErrVenueBusy)
	}
	r.pending[venueID] = true
	return nil
}

func (r *Registry) release(venueID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, venueID)
}

func (r *Registry) venueBusyLocked(venueID int64) bool {
	_, busy := r.byVenue[venueID]
	return busy || r.pending[venueID]
}

// insert adds a race. reserved is true when the caller holds the venue
// reservation, which is consumed.
func (r *Registry) insert(race *races.AsyncRace, reserved bool) error {
	_, err := r.insertSlot(race, reserved)
	return err
}

func (r *Registry) insertSlot(race *races.AsyncRace, reserved bool) (*slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reserved {
		delete(r.pending, race.VenueID)
	} else if r.venueBusyLocked(race.VenueID) {
		return nil, fmt.Errorf("venue %d: %w", race.VenueID, races.ErrVenueBusy)
	}
	s := &slot{race: race}
	r.byID[race.ID] = s
	r.byChannel[race.RaceThreadID] = s
	r.byChannel[race.SpoilerThreadID] = s
	r.byVenue[race.VenueID] = s
	return s, nil
}

// ---------- Effects ----------

// upsert edits the message at *msgID, or sends a new one when there is
// none or it is gone.
func (r *Registry) upsert(ctx context.Context, channelID int64, msgID *int64, text string) error {
	if *msgID != 0 {
		err := r.platform.Edit(ctx, channelID, *msgID, text)
		if err == nil {
			return nil
		}
		if !errors.Is(err, chat.ErrNotFound) {
			return err
		}
	}
	id, err := r.platform.Send(ctx, channelID, text)
	if err != nil {
		return err
	}
	*msgID = id
	return nil
}

// report logs an effect failure that does not undo a committed transition.
func (r *Registry) report(ctx context.Context, race *races.AsyncRace, what string, err error) {
	if err == nil {
		return
	}
	r.log.Error().Err(err).Int64("race", race.ID).Msg(what)
	r.notifier.NotifyOperator(ctx, fmt.Sprintf("%s for %s: %v", what, race.Name, err))
}
