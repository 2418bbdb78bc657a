package discordbot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"racebot/internal/chat"
	"racebot/internal/models"
)

// threadArchiveMinutes keeps race threads open for a week of inactivity.
const threadArchiveMinutes = 10080

// Platform runs the bot on one Discord guild.
type Platform struct {
	s       *discordgo.Session
	guildID string
	log     zerolog.Logger

	mu    sync.Mutex
	roles map[string]*discordgo.Role // by id
}

var _ chat.Platform = (*Platform)(nil)

func New(token string, guildID int64, log zerolog.Logger) (*Platform, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent
	return &Platform{
		s:       s,
		guildID: id(guildID),
		log:     log.With().Str("component", "discord").Logger(),
		roles:   map[string]*discordgo.Role{},
	}, nil
}

func (p *Platform) Name() string { return "discord" }

// Listen opens the gateway and hands every message from a human to h.
// discordgo runs handlers on their own goroutines.
func (p *Platform) Listen(ctx context.Context, h chat.Handler) error {
	remove := p.s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot || m.GuildID != p.guildID {
			return
		}
		h(ctx, p.message(ctx, m))
	})
	defer remove()

	if err := p.s.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	p.log.Info().Str("guild", p.guildID).Msg("discord gateway open")
	<-ctx.Done()
	if err := p.s.Close(); err != nil {
		p.log.Warn().Err(err).Msg("close discord gateway")
	}
	return ctx.Err()
}

func (p *Platform) message(ctx context.Context, m *discordgo.MessageCreate) chat.Message {
	msg := chat.Message{
		ID:        num(m.ID),
		ChannelID: num(m.ChannelID),
		Author:    user(m.Author, m.Member),
		Content:   m.Content,
	}
	if m.Member != nil {
		msg.AuthorRoles = p.roleNames(ctx, m.Member.Roles)
	}
	for _, u := range m.Mentions {
		msg.Mentions = append(msg.Mentions, user(u, nil))
	}
	return msg
}

// ---------- Threads ----------

func (p *Platform) CreateThread(ctx context.Context, parentID int64, name string, private bool) (int64, error) {
	kind := discordgo.ChannelTypeGuildPublicThread
	if private {
		kind = discordgo.ChannelTypeGuildPrivateThread
	}
	ch, err := p.s.ThreadStartComplex(id(parentID), &discordgo.ThreadStart{
		Name:                name,
		AutoArchiveDuration: threadArchiveMinutes,
		Type:                kind,
		Invitable:           false,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return 0, wrap("create thread", err)
	}
	return num(ch.ID), nil
}

func (p *Platform) DeleteThread(ctx context.Context, threadID int64) error {
	_, err := p.s.ChannelDelete(id(threadID), discordgo.WithContext(ctx))
	return wrap("delete thread", err)
}

func (p *Platform) AddThreadMember(ctx context.Context, threadID, userID int64) error {
	return wrap("add thread member", p.s.ThreadMemberAdd(id(threadID), id(userID), discordgo.WithContext(ctx)))
}

// ---------- Messages ----------

func (p *Platform) Send(ctx context.Context, channelID int64, text string) (int64, error) {
	m, err := p.s.ChannelMessageSend(id(channelID), text, discordgo.WithContext(ctx))
	if err != nil {
		return 0, wrap("send message", err)
	}
	return num(m.ID), nil
}

func (p *Platform) Edit(ctx context.Context, channelID, messageID int64, text string) error {
	_, err := p.s.ChannelMessageEdit(id(channelID), id(messageID), text, discordgo.WithContext(ctx))
	return wrap("edit message", err)
}

func (p *Platform) Pin(ctx context.Context, channelID, messageID int64) error {
	return wrap("pin message", p.s.ChannelMessagePin(id(channelID), id(messageID), discordgo.WithContext(ctx)))
}

func (p *Platform) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	return wrap("delete message", p.s.ChannelMessageDelete(id(channelID), id(messageID), discordgo.WithContext(ctx)))
}

func (p *Platform) SendDirect(ctx context.Context, userID int64, text string) error {
	return p.SendDirectFile(ctx, userID, text, "", nil)
}

func (p *Platform) SendDirectFile(ctx context.Context, userID int64, text, filename string, data []byte) error {
	dm, err := p.s.UserChannelCreate(id(userID), discordgo.WithContext(ctx))
	if err != nil {
		return wrap("open dm", err)
	}
	send := &discordgo.MessageSend{Content: text}
	if filename != "" {
		send.Files = []*discordgo.File{{Name: filename, ContentType: "text/csv", Reader: bytes.NewReader(data)}}
	}
	_, err = p.s.ChannelMessageSendComplex(dm.ID, send, discordgo.WithContext(ctx))
	return wrap("send dm", err)
}

// ---------- Lookups ----------

func (p *Platform) ResolveUser(ctx context.Context, userID int64) (models.User, error) {
	m, err := p.s.GuildMember(p.guildID, id(userID), discordgo.WithContext(ctx))
	if err != nil {
		return models.User{}, wrap("resolve user", err)
	}
	return user(m.User, m), nil
}

func (p *Platform) ResolveChannel(ctx context.Context, channelID int64) error {
	_, err := p.s.Channel(id(channelID), discordgo.WithContext(ctx))
	return wrap("resolve channel", err)
}

func (p *Platform) ResolveRole(ctx context.Context, name string) (models.Role, error) {
	if err := p.loadRoles(ctx); err != nil {
		return models.Role{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.roles {
		if r.Name == name {
			return models.Role{ID: num(r.ID), Name: r.Name}, nil
		}
	}
	return models.Role{}, fmt.Errorf("role %q: %w", name, chat.ErrNotFound)
}

func (p *Platform) RoleMembers(ctx context.Context, roleID int64) ([]models.User, error) {
	want := id(roleID)
	var out []models.User
	after := ""
	for {
		page, err := p.s.GuildMembers(p.guildID, after, 1000, discordgo.WithContext(ctx))
		if err != nil {
			return nil, wrap("list members", err)
		}
		for _, m := range page {
			for _, r := range m.Roles {
				if r == want {
					out = append(out, user(m.User, m))
					break
				}
			}
		}
		if len(page) < 1000 {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (p *Platform) GrantRole(ctx context.Context, userID, roleID int64) error {
	return wrap("grant role", p.s.GuildMemberRoleAdd(p.guildID, id(userID), id(roleID), discordgo.WithContext(ctx)))
}

func (p *Platform) RevokeRole(ctx context.Context, userID, roleID int64) error {
	return wrap("revoke role", p.s.GuildMemberRoleRemove(p.guildID, id(userID), id(roleID), discordgo.WithContext(ctx)))
}

func (p *Platform) Mention(userID int64) string { return fmt.Sprintf("<@%d>", userID) }

func (p *Platform) RoleMention(role models.Role) string { return fmt.Sprintf("<@&%d>", role.ID) }

// Timestamp renders in each reader's own timezone.
func (p *Platform) Timestamp(t time.Time) string { return fmt.Sprintf("<t:%d:F>", t.Unix()) }

// roleNames maps member role ids to names, reloading the guild roles when
// an id is unknown.
func (p *Platform) roleNames(ctx context.Context, ids []string) []string {
	if p.missingRole(ids) {
		if err := p.loadRoles(ctx); err != nil {
			p.log.Warn().Err(err).Msg("load guild roles")
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(ids))
	for _, rid := range ids {
		if r, ok := p.roles[rid]; ok {
			names = append(names, r.Name)
		}
	}
	return names
}

func (p *Platform) missingRole(ids []string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, rid := range ids {
		if _, ok := p.roles[rid]; !ok {
			return true
		}
	}
	return false
}

func (p *Platform) loadRoles(ctx context.Context) error {
	roles, err := p.s.GuildRoles(p.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return wrap("load roles", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles = make(map[string]*discordgo.Role, len(roles))
	for _, r := range roles {
		p.roles[r.ID] = r
	}
	return nil
}

// ---------- Helpers ----------

func user(u *discordgo.User, m *discordgo.Member) models.User {
	if u == nil {
		return models.User{}
	}
	name := u.Username
	if u.GlobalName != "" {
		name = u.GlobalName
	}
	if m != nil && m.Nick != "" {
		name = m.Nick
	}
	return models.User{ID: num(u.ID), DisplayName: name}
}

func id(n int64) string { return strconv.FormatInt(n, 10) }

// num parses a snowflake. Discord only sends numeric ids.
func num(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

// wrap marks 404 responses as chat.ErrNotFound.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w: %v", op, chat.ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
