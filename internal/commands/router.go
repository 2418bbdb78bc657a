package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"racebot/internal/app"
	"racebot/internal/boards"
	"racebot/internal/chat"
	"racebot/internal/registry"
)

// call is one command invocation.
type call struct {
	msg  chat.Message
	name string
	args []string
}

type handlerFunc func(ctx context.Context, c *call) error

type command struct {
	name    string
	aliases []string
	usage   string
	run     handlerFunc
	// deleteAfter removes the command message wherever it was posted.
	deleteAfter bool
}

// Router turns chat messages into registry and board calls.
type Router struct {
	app    *app.App
	reg    *registry.Registry
	boards *boards.Service
	prefix string
	log    zerolog.Logger

	table    []*command
	commands map[string]*command
}

func NewRouter(a *app.App, reg *registry.Registry, b *boards.Service) *Router {
	rt := &Router{
		app:      a,
		reg:      reg,
		boards:   b,
		prefix:   a.Config.CommandPrefix,
		log:      a.Logger("commands"),
		commands: map[string]*command{},
	}
	rt.table = []*command{
		{name: "createrace", aliases: []string{"createasync", "ca"}, usage: "name= flags= [role=] [start=] [end=]", run: rt.createRace, deleteAfter: true},
		{name: "startrace", aliases: []string{"startasync"}, run: rt.startRace},
		{name: "endrace", aliases: []string{"endasync"}, run: rt.endRace},
		{name: "cancelrace", aliases: []string{"cancelasync"}, run: rt.cancelRace},
		{name: "export", aliases: []string{"exportleaderboard"}, run: rt.export},
		{name: "submit", usage: "<time> [proof]", run: rt.submit},
		{name: "forfeit", aliases: []string{"ff", "dnf"}, run: rt.forfeit},
		{name: "spectate", aliases: []string{"spec", "s"}, run: rt.spectate},

		{name: "race", usage: "name= [flags=] [role=]", run: rt.liveRace},
		{name: "join", aliases: []string{"enter"}, run: rt.join},
		{name: "quit", aliases: []string{"unjoin"}, run: rt.quit},
		{name: "ready", run: rt.ready(true)},
		{name: "unready", run: rt.ready(false)},
		{name: "go", run: rt.goLive},
		{name: "done", run: rt.done},

		{name: "createleaderboard", usage: "<title>", run: rt.createLeaderboard},
		{name: "remove", usage: "@runner...", run: rt.remove},
		{name: "purgemembers", run: rt.purgeMembers},

		{name: "rollseed", aliases: []string{"ffrurl", "ff1url", "ff1roll", "ffrroll", "rollseedurl", "roll_ffr_url_seed"}, usage: "<url>", run: rt.rollSeed},
		{name: "ff1seed", run: rt.hexSeed},
		{name: "help", run: rt.help},
	}
	for _, cmd := range rt.table {
		rt.commands[cmd.name] = cmd
		for _, a := range cmd.aliases {
			rt.commands[a] = cmd
		}
	}
	return rt
}

// Handle is the chat.Handler of the bot.
func (rt *Router) Handle(ctx context.Context, m chat.Message) {
	inv, ok, err := Parse(rt.prefix, m.Content)
	if !ok {
		rt.filterChatter(ctx, m)
		return
	}
	if err != nil {
		rt.dm(ctx, m.Author.ID, "Could not read that command: "+err.Error())
		return
	}
	cmd, ok := rt.commands[inv.Name]
	if !ok {
		return
	}

	// Looked up first, the command may end the race.
	inThread := rt.inRaceThread(m.ChannelID)
	c := &call{msg: m, name: inv.Name, args: inv.Args}
	if err := cmd.run(ctx, c); err != nil {
		rt.fail(ctx, c, err)
	}
	if cmd.deleteAfter || inThread {
		rt.deleteMessage(ctx, m)
	}
}

// filterChatter keeps async race threads clear of anything but commands
// and the owner's messages.
func (rt *Router) filterChatter(ctx context.Context, m chat.Message) {
	v, ok := rt.reg.Race(m.ChannelID)
	if !ok || v.RaceThreadID != m.ChannelID || v.OwnerID == m.Author.ID {
		return
	}
	rt.deleteMessage(ctx, m)
}

func (rt *Router) inRaceThread(channelID int64) bool {
	v, ok := rt.reg.Race(channelID)
	return ok && v.RaceThreadID == channelID
}

func (rt *Router) deleteMessage(ctx context.Context, m chat.Message) {
	err := rt.app.Platform.DeleteMessage(ctx, m.ChannelID, m.ID)
	if err != nil && !errors.Is(err, chat.ErrUnsupported) && !errors.Is(err, chat.ErrNotFound) {
		rt.log.Warn().Err(err).Int64("channel", m.ChannelID).Msg("delete command message")
	}
}

// fail answers a failed command with a DM to its author.
func (rt *Router) fail(ctx context.Context, c *call, err error) {
	var n *notice
	if errors.As(err, &n) {
		rt.log.Debug().Str("command", c.name).Int64("user", c.msg.Author.ID).Msg(n.text)
		rt.dm(ctx, c.msg.Author.ID, n.text)
		return
	}
	text, known := explain(err)
	if known {
		rt.log.Info().Err(err).Str("command", c.name).Int64("user", c.msg.Author.ID).Msg("command rejected")
	} else {
		rt.log.Error().Err(err).Str("command", c.name).Int64("channel", c.msg.ChannelID).Msg("command failed")
		rt.app.Notifier.NotifyOperator(ctx, fmt.Sprintf("Command %s%s failed: %v", rt.prefix, c.name, err))
	}
	rt.dm(ctx, c.msg.Author.ID, text)
}

func (rt *Router) dm(ctx context.Context, userID int64, text string) {
	if err := rt.app.Platform.SendDirect(ctx, userID, text); err != nil {
		rt.log.Warn().Err(err).Int64("user", userID).Msg("notify user")
	}
}

func (rt *Router) send(ctx context.Context, channelID int64, text string) error {
	_, err := rt.app.Platform.Send(ctx, channelID, text)
	return err
}

func (rt *Router) isAdmin(c *call) bool {
	return rt.app.IsAdmin(c.msg.Author.ID, c.msg.AuthorRoles)
}

// help lists the commands with their aliases.
func (rt *Router) help(ctx context.Context, c *call) error {
	cmds := append([]*command(nil), rt.table...)
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].name < cmds[j].name })
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, cmd := range cmds {
		b.WriteString(rt.prefix + cmd.name)
		if cmd.usage != "" {
			b.WriteString(" " + cmd.usage)
		}
		if len(cmd.aliases) > 0 {
			b.WriteString(" (" + strings.Join(cmd.aliases, ", ") + ")")
		}
		b.WriteString("\n")
	}
	rt.dm(ctx, c.msg.Author.ID, b.String())
	return nil
}
