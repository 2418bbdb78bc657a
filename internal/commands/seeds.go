package commands

import (
	"context"
	"errors"

	"racebot/internal/chat"

	"racebot/internal/races"
)

// rollSeed posts the flags url with a fresh seed. Inside a race thread the
// seed is pinned.
func (rt *Router) rollSeed(ctx context.Context, c *call) error {
	args, err := parseURL(c.args)
	if err != nil {
		return noticef("You need to supply the url to roll a seed for.")
	}
	seed, err := races.SeedURL(args.URL)
	if err != nil {
		return noticef("Could not read that url: %v", err)
	}
	id, err := rt.app.Platform.Send(ctx, c.msg.ChannelID, seed)
	if err != nil {
		return err
	}
	_, live := rt.reg.LiveRace(c.msg.ChannelID)
	if !live && !rt.inRaceThread(c.msg.ChannelID) {
		return nil
	}
	if err := rt.app.Platform.Pin(ctx, c.msg.ChannelID, id); err != nil && !errors.Is(err, chat.ErrUnsupported) {
		rt.log.Warn().Err(err).Int64("channel", c.msg.ChannelID).Msg("pin seed")
	}
	return nil
}

func (rt *Router) hexSeed(ctx context.Context, c *call) error {
	return rt.send(ctx, c.msg.ChannelID, races.HexSeed())
}
