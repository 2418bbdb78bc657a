package commands

import (
	"context"

	"racebot/internal/registry"
)

func (rt *Router) liveRace(ctx context.Context, c *call) error {
	args, err := parseLiveRace(c.args)
	if err != nil {
		return noticef("Could not open the race: %v", err)
	}
	_, err = rt.reg.CreateLiveRace(ctx, registry.LiveRequest{
		VenueID: c.msg.ChannelID,
		Name:    args.Name,
		Flags:   args.Flags,
		Owner:   c.msg.Author,
		Role:    args.Role,
	})
	return err
}

// liveHere checks that the command was sent in a live race thread.
func (rt *Router) liveHere(c *call) (registry.LiveView, error) {
	v, ok := rt.reg.LiveRace(c.msg.ChannelID)
	if !ok {
		return v, noticef("The %s%s command must be used in a live race thread", rt.prefix, c.name)
	}
	return v, nil
}

func (rt *Router) join(ctx context.Context, c *call) error {
	if _, err := rt.liveHere(c); err != nil {
		return err
	}
	return rt.reg.JoinLive(ctx, c.msg.ChannelID, c.msg.Author)
}

func (rt *Router) quit(ctx context.Context, c *call) error {
	if _, err := rt.liveHere(c); err != nil {
		return err
	}
	return rt.reg.QuitLive(ctx, c.msg.ChannelID, c.msg.Author)
}

func (rt *Router) ready(ready bool) handlerFunc {
	return func(ctx context.Context, c *call) error {
		if _, err := rt.liveHere(c); err != nil {
			return err
		}
		return rt.reg.SetReady(ctx, c.msg.ChannelID, c.msg.Author, ready)
	}
}

func (rt *Router) goLive(ctx context.Context, c *call) error {
	v, err := rt.liveHere(c)
	if err != nil {
		return err
	}
	if v.OwnerID != c.msg.Author.ID && !rt.isAdmin(c) {
		return noticef("Only the race owner or admin can start the race")
	}
	return rt.reg.StartLive(ctx, c.msg.ChannelID)
}

func (rt *Router) done(ctx context.Context, c *call) error {
	if _, err := rt.liveHere(c); err != nil {
		return err
	}
	return rt.reg.DoneLive(ctx, c.msg.ChannelID, c.msg.Author)
}
