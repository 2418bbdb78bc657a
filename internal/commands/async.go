package commands

import (
	"context"
	"errors"
	"fmt"

	"racebot/internal/boards"
	"racebot/internal/registry"
	"racebot/internal/server"
)

// asyncHere finds the async race whose race or spoiler thread is channelID.
func (rt *Router) asyncHere(channelID int64) (registry.RaceView, bool) {
	v, ok := rt.reg.Race(channelID)
	if !ok || (v.RaceThreadID != channelID && v.SpoilerThreadID != channelID) {
		return registry.RaceView{}, false
	}
	return v, true
}

// ownedRace resolves the race of the current thread and checks that the
// author may manage it.
func (rt *Router) ownedRace(c *call, denied string) (registry.RaceView, error) {
	v, ok := rt.asyncHere(c.msg.ChannelID)
	if !ok {
		return v, noticef("The %s%s command must be used in an active async race thread", rt.prefix, c.name)
	}
	if v.OwnerID != c.msg.Author.ID && !rt.isAdmin(c) {
		return v, noticef("%s", denied)
	}
	return v, nil
}

func (rt *Router) createRace(ctx context.Context, c *call) error {
	if !rt.isAdmin(c) {
		return noticef("You do not have permission to create async races right now")
	}
	args, err := parseCreateRace(c.args)
	if errors.Is(err, ErrMissingArgument) && args.Name == "" {
		return noticef("You did not submit a name.")
	}
	if err != nil {
		return noticef("Could not create the race: %v", err)
	}
	_, err = rt.reg.CreateAsyncRace(ctx, registry.CreateRequest{
		VenueID: c.msg.ChannelID,
		Name:    args.Name,
		Owner:   c.msg.Author,
		Flags:   args.Flags,
		Start:   args.Start,
		End:     args.End,
		Role:    args.Role,
	})
	return err
}

func (rt *Router) startRace(ctx context.Context, c *call) error {
	v, err := rt.ownedRace(c, "Only the race owner or admin can start the async race ahead of the scheduled time")
	if err != nil {
		return err
	}
	return rt.reg.StartRace(ctx, v.ID)
}

func (rt *Router) endRace(ctx context.Context, c *call) error {
	v, err := rt.ownedRace(c, "Only the race owner or admin can end the async race ahead of the scheduled time")
	if err != nil {
		return err
	}
	return rt.reg.EndRace(ctx, v.ID)
}

func (rt *Router) cancelRace(ctx context.Context, c *call) error {
	v, err := rt.ownedRace(c, "Only the race owner or admin can cancel the async race")
	if err != nil {
		return err
	}
	return rt.reg.CancelRace(ctx, v.ID)
}

// export DMs the current standings as CSV, with a download link when the
// bot has a public address.
func (rt *Router) export(ctx context.Context, c *call) error {
	v, err := rt.ownedRace(c, "Only the race owner or admin can export the leaderboard")
	if err != nil {
		return err
	}
	data, filename, err := rt.reg.Export(ctx, v.ID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Current leaderboard for %s:", v.Name)
	if base := rt.app.Config.BasePublicURL; base != "" {
		text += "\n" + server.ExportURL(base, rt.app.Config.ExportSecret, v.ID)
	}
	return rt.app.Platform.SendDirectFile(ctx, c.msg.Author.ID, text, filename, data)
}

// The participation commands go to the live race of the channel, then the
// async race, then the board.

func (rt *Router) submit(ctx context.Context, c *call) error {
	ch := c.msg.ChannelID
	if _, ok := rt.reg.LiveRace(ch); ok {
		return noticef("Use %sdone to finish a live race.", rt.prefix)
	}
	args, err := parseSubmit(c.args)
	if err != nil {
		return noticef("You must include a time when you submit a time.")
	}
	if v, ok := rt.asyncHere(ch); ok {
		return answered(rt.reg.Submit(ctx, v.ID, c.msg.Author, args.Time, args.Proof))
	}
	if b, place, ok := rt.boards.ForChannel(ch); ok && place == boards.PlaceSubmissions {
		return answeredOnBoard(rt.boards.Submit(ctx, b.Key, c.msg.Author, c.msg.AuthorRoles, args.Time))
	}
	return noticef("There is no race here to submit a time to.")
}

func (rt *Router) forfeit(ctx context.Context, c *call) error {
	ch := c.msg.ChannelID
	if _, ok := rt.reg.LiveRace(ch); ok {
		return rt.reg.ForfeitLive(ctx, ch, c.msg.Author)
	}
	if v, ok := rt.asyncHere(ch); ok {
		return answered(rt.reg.Forfeit(ctx, v.ID, c.msg.Author))
	}
	if b, place, ok := rt.boards.ForChannel(ch); ok && place == boards.PlaceSubmissions {
		return rt.boards.Forfeit(ctx, b.Key, c.msg.Author)
	}
	return noticef("There is no race here to forfeit.")
}

func (rt *Router) spectate(ctx context.Context, c *call) error {
	ch := c.msg.ChannelID
	if _, ok := rt.reg.LiveRace(ch); ok {
		return rt.reg.SpectateLive(ctx, ch, c.msg.Author)
	}
	if v, ok := rt.asyncHere(ch); ok {
		return answered(rt.reg.Spectate(ctx, v.ID, c.msg.Author))
	}
	if b, place, ok := rt.boards.ForChannel(ch); ok && place == boards.PlaceSubmissions {
		return rt.boards.Spectate(ctx, b.Key, c.msg.Author)
	}
	return noticef("There is no race here to spectate.")
}
