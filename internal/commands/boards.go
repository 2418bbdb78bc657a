package commands

import (
	"context"
	"fmt"

	"racebot/internal/boards"
	"racebot/internal/config"
)

// boardAdmin resolves the board of the channel and checks the author holds
// its admin role. want limits the command to one of the board's channels.
func (rt *Router) boardAdmin(c *call, want boards.Place) (config.Board, error) {
	b, place, ok := rt.boards.ForChannel(c.msg.ChannelID)
	if !ok || (want != boards.PlaceNone && place != want) {
		return b, noticef("The %s%s command cannot be used in this channel", rt.prefix, c.name)
	}
	if !rt.isAdmin(c) && (b.AdminRole == "" || !hasRole(c.msg.AuthorRoles, b.AdminRole)) {
		return b, noticef("You do not have permission to manage this leaderboard")
	}
	return b, nil
}

func (rt *Router) createLeaderboard(ctx context.Context, c *call) error {
	b, err := rt.boardAdmin(c, boards.PlaceNone)
	if err != nil {
		return err
	}
	args, err := parseTitle(c.args)
	if err != nil {
		return noticef("You did not submit a title.")
	}
	return rt.boards.Create(ctx, b.Key, args.Title)
}

func (rt *Router) remove(ctx context.Context, c *call) error {
	b, err := rt.boardAdmin(c, boards.PlaceLeaderboard)
	if err != nil {
		return err
	}
	args, err := parseMentions(c.msg.Mentions)
	if err != nil {
		return noticef("Mention the runners whose results should be removed.")
	}
	n, err := rt.boards.Remove(ctx, b.Key, args.Users)
	if err != nil {
		return err
	}
	rt.dm(ctx, c.msg.Author.ID, fmt.Sprintf("Removed %d result(s) from the leaderboard.", n))
	return nil
}

func (rt *Router) purgeMembers(ctx context.Context, c *call) error {
	b, err := rt.boardAdmin(c, boards.PlaceSpoilers)
	if err != nil {
		return err
	}
	n, err := rt.boards.PurgeMembers(ctx, b.Key)
	if err != nil {
		return err
	}
	rt.dm(ctx, c.msg.Author.ID, fmt.Sprintf("Removed the %s role from %d member(s).", b.RunnerRole, n))
	return nil
}

func hasRole(roles []string, want string) bool {
	for _, r := range roles {
		if r == want {
			return true
		}
	}
	return false
}
