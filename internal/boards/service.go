package boards

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"racebot/internal/app"
	"racebot/internal/chat"
	"racebot/internal/config"
	"racebot/internal/models"
	"racebot/internal/racetime"
	"racebot/internal/store"
)

// Place says which of a board's channels a message came from.
type Place int

const (
	PlaceNone Place = iota
	PlaceSubmissions
	PlaceLeaderboard
	PlaceSpoilers
)

type entry struct {
	cfg   config.Board
	board *Board
}

// Service runs the configured standing boards. Boards see little traffic,
// so one lock covers all of them.
type Service struct {
	platform chat.Platform
	store    store.Store
	notifier chat.Notifier
	log      zerolog.Logger

	mu     sync.Mutex
	boards map[string]*entry
}

func NewService(a *app.App, cfgs []config.Board) *Service {
	s := &Service{
		platform: a.Platform,
		store:    a.Boards,
		notifier: a.Notifier,
		log:      a.Logger("boards"),
		boards:   map[string]*entry{},
	}
	for _, c := range cfgs {
		s.boards[c.Key] = &entry{cfg: c}
	}
	return s
}

// Load restores persisted boards. Records of boards no longer configured
// are ignored.
func (s *Service) Load(ctx context.Context) error {
	blobs, err := s.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load boards: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, blob := range blobs {
		e, ok := s.boards[key]
		if !ok {
			continue
		}
		rec, err := store.DecodeBoard(blob)
		if err != nil {
			s.log.Error().Err(err).Str("board", key).Msg("decode board")
			continue
		}
		e.board = FromRecord(rec)
	}
	return nil
}

// ForChannel finds the board using channelID.
func (s *Service) ForChannel(channelID int64) (config.Board, Place, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.boards))
	for k := range s.boards {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c := s.boards[k].cfg
		switch channelID {
		case c.Channel:
			return c, PlaceSubmissions, true
		case c.LeaderboardChannel:
			return c, PlaceLeaderboard, true
		case c.SpoilerChannel:
			return c, PlaceSpoilers, true
		}
	}
	return config.Board{}, PlaceNone, false
}

// Board returns a copy of the current board.
func (s *Service) Board(key string) (*Board, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.boards[key]
	if !ok || e.board == nil {
		return nil, false
	}
	c := FromRecord(e.board.Record())
	return c, true
}

func (s *Service) get(key string) (*entry, error) {
	e, ok := s.boards[key]
	if !ok {
		return nil, fmt.Errorf("board %s: %w", key, ErrUnknownBoard)
	}
	return e, nil
}

func (s *Service) created(key string) (*entry, error) {
	e, err := s.get(key)
	if err != nil {
		return nil, err
	}
	if e.board == nil {
		return nil, fmt.Errorf("board %s: %w", key, ErrNotCreated)
	}
	return e, nil
}

// Create starts a fresh board with new leaderboard and counter posts.
func (s *Service) Create(ctx context.Context, key, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(key)
	if err != nil {
		return err
	}
	b := New(key, title)
	if b.BoardMsgID, err = s.platform.Send(ctx, e.cfg.LeaderboardChannel, b.Text()); err != nil {
		return fmt.Errorf("post leaderboard: %w", err)
	}
	if b.CounterMsgID, err = s.platform.Send(ctx, e.cfg.Channel, b.CounterText()); err != nil {
		return fmt.Errorf("post participant counter: %w", err)
	}
	e.board = b
	s.persist(ctx, b)
	s.log.Info().Str("board", key).Str("title", title).Msg("leaderboard created")
	return nil
}

// Submit adds a finish time. roles are the runner's role names, checked
// against the board's required role.
func (s *Service) Submit(ctx context.Context, key string, runner models.User, roles []string, rawTime string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.created(key)
	if err != nil {
		return err
	}
	if e.cfg.RequiredRole != "" && !contains(roles, e.cfg.RequiredRole) {
		s.dm(ctx, runner.ID, fmt.Sprintf("You need the %s role to submit here.", e.cfg.RequiredRole))
		return ErrRoleRequired
	}
	if e.board.Has(runner.ID) {
		s.dm(ctx, runner.ID, "You already have the relevant role.")
		return ErrAlreadyParticipated
	}
	d, err := racetime.Parse(rawTime)
	if err != nil {
		s.dm(ctx, runner.ID, fmt.Sprintf("The time you provided '%s' is not in the format HH:MM:SS", rawTime))
		return err
	}
	if err := e.board.Submit(runner, d); err != nil {
		return err
	}
	s.grant(ctx, e.cfg, runner.ID)
	if _, err := s.platform.Send(ctx, e.cfg.SpoilerChannel, "GG "+s.platform.Mention(runner.ID)); err != nil {
		s.log.Warn().Err(err).Str("board", key).Msg("congratulate runner")
	}
	s.render(ctx, e)
	return nil
}

func (s *Service) Forfeit(ctx context.Context, key string, runner models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.created(key)
	if err != nil {
		return err
	}
	if err := e.board.Forfeit(runner); err != nil {
		return err
	}
	s.grant(ctx, e.cfg, runner.ID)
	s.render(ctx, e)
	return nil
}

// Spectate grants the runner role without a result.
func (s *Service) Spectate(ctx context.Context, key string, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(key)
	if err != nil {
		return err
	}
	s.grant(ctx, e.cfg, user.ID)
	return nil
}

// Remove drops the results of users so they can submit again. It returns
// how many results were removed.
func (s *Service) Remove(ctx context.Context, key string, users []models.User) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.created(key)
	if err != nil {
		return 0, err
	}
	role, roleErr := s.platform.ResolveRole(ctx, e.cfg.RunnerRole)
	n := 0
	for _, u := range users {
		if !e.board.Remove(u.ID) {
			continue
		}
		n++
		if roleErr == nil {
			s.effect(key, "revoke runner role", s.platform.RevokeRole(ctx, u.ID, role.ID))
		}
	}
	if n > 0 {
		s.render(ctx, e)
	}
	return n, nil
}

// PurgeMembers takes the runner role from everyone holding it.
func (s *Service) PurgeMembers(ctx context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.get(key)
	if err != nil {
		return 0, err
	}
	role, err := s.platform.ResolveRole(ctx, e.cfg.RunnerRole)
	if err != nil {
		return 0, fmt.Errorf("runner role %q: %w", e.cfg.RunnerRole, err)
	}
	members, err := s.platform.RoleMembers(ctx, role.ID)
	if err != nil {
		return 0, fmt.Errorf("runner role members: %w", err)
	}
	n := 0
	for _, m := range members {
		if err := s.platform.RevokeRole(ctx, m.ID, role.ID); err != nil {
			s.effect(key, "revoke runner role", err)
			continue
		}
		n++
	}
	s.log.Info().Str("board", key).Int("members", n).Msg("runner role purged")
	return n, nil
}

func (s *Service) grant(ctx context.Context, cfg config.Board, userID int64) {
	role, err := s.platform.ResolveRole(ctx, cfg.RunnerRole)
	if err != nil {
		s.effect(cfg.Key, "resolve runner role", err)
		return
	}
	s.effect(cfg.Key, "grant runner role", s.platform.GrantRole(ctx, userID, role.ID))
}

// render refreshes both posts of the board and persists it.
func (s *Service) render(ctx context.Context, e *entry) {
	b := e.board
	s.effect(b.Key, "update leaderboard", s.upsert(ctx, e.cfg.LeaderboardChannel, &b.BoardMsgID, b.Text()))
	s.effect(b.Key, "update participant counter", s.upsert(ctx, e.cfg.Channel, &b.CounterMsgID, b.CounterText()))
	s.persist(ctx, b)
}

func (s *Service) upsert(ctx context.Context, channelID int64, msgID *int64, text string) error {
	if *msgID != 0 {
		err := s.platform.Edit(ctx, channelID, *msgID, text)
		if err == nil || !errors.Is(err, chat.ErrNotFound) {
			return err
		}
	}
	id, err := s.platform.Send(ctx, channelID, text)
	if err != nil {
		return err
	}
	*msgID = id
	return nil
}

func (s *Service) persist(ctx context.Context, b *Board) {
	blob, err := store.EncodeBoard(b.Record())
	if err == nil {
		err = s.store.Save(ctx, b.Key, blob)
	}
	if err != nil {
		s.log.Error().Err(err).Str("board", b.Key).Msg("persist board")
		s.notifier.NotifyOperator(ctx, fmt.Sprintf("Could not persist board %s: %v", b.Key, err))
	}
}

func (s *Service) dm(ctx context.Context, userID int64, text string) {
	if err := s.platform.SendDirect(ctx, userID, text); err != nil {
		s.log.Warn().Err(err).Int64("user", userID).Msg("notify user")
	}
}

func (s *Service) effect(key, what string, err error) {
	if err == nil || errors.Is(err, chat.ErrUnsupported) {
		return
	}
	s.log.Warn().Err(err).Str("board", key).Msg(what)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
