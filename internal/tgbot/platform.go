package tgbot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"racebot/internal/chat"
	"racebot/internal/models"
)

// AdminRole is the only role a Telegram group has: its administrators.
const AdminRole = "admin"

const (
	adminRoleID     = int64(1)
	pollTimeoutSecs = 30
	adminCacheTTL   = 5 * time.Minute
)

// Bot runs the race bot in one Telegram forum group. Channels are the
// group's forum topics; the group id itself stands for the General topic.
// Topics cannot be private, so spoiler threads are plain topics.
type Bot struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    zerolog.Logger

	mu       sync.Mutex
	names    map[int64]string // user id -> @username or first name
	admins   map[int64]bool
	adminsAt time.Time
}

var _ chat.Platform = (*Bot)(nil)

func New(token string, chatID int64, log zerolog.Logger) (*Bot, error) {
	b, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return newBot(b, chatID, log), nil
}

func newBot(b *tgbotapi.BotAPI, chatID int64, log zerolog.Logger) *Bot {
	b.Debug = false
	return &Bot{
		bot:    b,
		chatID: chatID,
		log:    log.With().Str("component", "telegram").Logger(),
		names:  map[int64]string{},
	}
}

func (b *Bot) Name() string { return "telegram" }

// ---------- Updates ----------

// topicMessage adds the forum fields the library's Message lacks.
type topicMessage struct {
	tgbotapi.Message
	MessageThreadID int64 `json:"message_thread_id"`
	IsTopicMessage  bool  `json:"is_topic_message"`
}

type update struct {
	UpdateID int           `json:"update_id"`
	Message  *topicMessage `json:"message"`
}

// Listen long-polls for group messages until ctx is done.
func (b *Bot) Listen(ctx context.Context, h chat.Handler) error {
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		updates, err := b.poll(offset)
		if err != nil {
			b.log.Warn().Err(err).Msg("get updates")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}
		for _, u := range updates {
			offset = u.UpdateID + 1
			m := u.Message
			if m == nil || m.From == nil || m.From.IsBot || m.Chat == nil || m.Chat.ID != b.chatID {
				continue
			}
			h(ctx, b.message(m))
		}
	}
}

func (b *Bot) poll(offset int) ([]update, error) {
	params := tgbotapi.Params{}
	params.AddNonZero("offset", offset)
	params.AddNonZero("timeout", pollTimeoutSecs)
	params["allowed_updates"] = `["message"]`
	resp, err := b.bot.MakeRequest("getUpdates", params)
	if err != nil {
		return nil, err
	}
	var out []update
	if err := json.Unmarshal(resp.Result, &out); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return out, nil
}

func (b *Bot) message(m *topicMessage) chat.Message {
	author := b.remember(m.From)
	msg := chat.Message{
		ID:        int64(m.MessageID),
		ChannelID: b.chatID,
		Author:    author,
		Content:   strings.TrimSpace(m.Text),
	}
	if m.IsTopicMessage && m.MessageThreadID != 0 {
		msg.ChannelID = m.MessageThreadID
	}
	if b.isAdmin(author.ID) {
		msg.AuthorRoles = []string{AdminRole}
	}
	for _, e := range m.Entities {
		if e.Type == "text_mention" && e.User != nil {
			msg.Mentions = append(msg.Mentions, b.remember(e.User))
		}
	}
	// Replying to someone counts as mentioning them.
	if r := m.ReplyToMessage; r != nil && r.From != nil && !r.From.IsBot {
		msg.Mentions = append(msg.Mentions, b.remember(r.From))
	}
	return msg
}

func (b *Bot) remember(u *tgbotapi.User) models.User {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	b.mu.Lock()
	if u.UserName != "" {
		b.names[u.ID] = "@" + u.UserName
	} else {
		b.names[u.ID] = name
	}
	b.mu.Unlock()
	return models.User{ID: u.ID, DisplayName: name}
}

// ---------- Threads ----------

func (b *Bot) CreateThread(ctx context.Context, parentID int64, name string, private bool) (int64, error) {
	params := b.chatParams()
	params["name"] = name
	resp, err := b.bot.MakeRequest("createForumTopic", params)
	if err != nil {
		return 0, wrap("create topic", err)
	}
	var topic struct {
		MessageThreadID int64 `json:"message_thread_id"`
	}
	if err := json.Unmarshal(resp.Result, &topic); err != nil {
		return 0, fmt.Errorf("decode topic: %w", err)
	}
	return topic.MessageThreadID, nil
}

func (b *Bot) DeleteThread(ctx context.Context, threadID int64) error {
	params := b.chatParams()
	params.AddNonZero64("message_thread_id", threadID)
	_, err := b.bot.MakeRequest("deleteForumTopic", params)
	return wrap("delete topic", err)
}

// AddThreadMember is a no-op: every group member sees every topic.
func (b *Bot) AddThreadMember(ctx context.Context, threadID, userID int64) error { return nil }

// ---------- Messages ----------

func (b *Bot) Send(ctx context.Context, channelID int64, text string) (int64, error) {
	params := b.chatParams()
	if channelID != b.chatID {
		params.AddNonZero64("message_thread_id", channelID)
	}
	params["text"] = text
	resp, err := b.bot.MakeRequest("sendMessage", params)
	if err != nil {
		return 0, wrap("send message", err)
	}
	var m tgbotapi.Message
	if err := json.Unmarshal(resp.Result, &m); err != nil {
		return 0, fmt.Errorf("decode message: %w", err)
	}
	return int64(m.MessageID), nil
}

// Message ids are unique per group, so the topic is not needed to edit,
// pin or delete.

func (b *Bot) Edit(ctx context.Context, channelID, messageID int64, text string) error {
	_, err := b.bot.Request(tgbotapi.NewEditMessageText(b.chatID, int(messageID), text))
	return wrap("edit message", err)
}

func (b *Bot) Pin(ctx context.Context, channelID, messageID int64) error {
	_, err := b.bot.Request(tgbotapi.PinChatMessageConfig{
		ChatID:              b.chatID,
		MessageID:           int(messageID),
		DisableNotification: true,
	})
	return wrap("pin message", err)
}

func (b *Bot) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	_, err := b.bot.Request(tgbotapi.NewDeleteMessage(b.chatID, int(messageID)))
	return wrap("delete message", err)
}

// SendDirect only reaches users who have started a chat with the bot.
func (b *Bot) SendDirect(ctx context.Context, userID int64, text string) error {
	_, err := b.bot.Send(tgbotapi.NewMessage(userID, text))
	return wrap("send dm", err)
}

func (b *Bot) SendDirectFile(ctx context.Context, userID int64, text, filename string, data []byte) error {
	doc := tgbotapi.NewDocument(userID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	doc.Caption = text
	_, err := b.bot.Send(doc)
	return wrap("send dm file", err)
}

// ---------- Lookups ----------

func (b *Bot) ResolveUser(ctx context.Context, userID int64) (models.User, error) {
	m, err := b.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: b.chatID, UserID: userID},
	})
	if err != nil {
		return models.User{}, wrap("resolve user", err)
	}
	if m.User == nil || m.HasLeft() || m.WasKicked() {
		return models.User{}, fmt.Errorf("user %d: %w", userID, chat.ErrNotFound)
	}
	return b.remember(m.User), nil
}

// ResolveChannel accepts any topic. The Bot API cannot look a topic up;
// a deleted one surfaces as ErrNotFound on the next send.
func (b *Bot) ResolveChannel(ctx context.Context, channelID int64) error {
	if channelID == 0 {
		return fmt.Errorf("channel 0: %w", chat.ErrNotFound)
	}
	return nil
}

func (b *Bot) ResolveRole(ctx context.Context, name string) (models.Role, error) {
	if name != AdminRole {
		return models.Role{}, fmt.Errorf("role %q: %w", name, chat.ErrUnsupported)
	}
	return models.Role{ID: adminRoleID, Name: AdminRole}, nil
}

func (b *Bot) RoleMembers(ctx context.Context, roleID int64) ([]models.User, error) {
	if roleID != adminRoleID {
		return nil, chat.ErrUnsupported
	}
	admins, err := b.bot.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: b.chatID},
	})
	if err != nil {
		return nil, wrap("list administrators", err)
	}
	out := make([]models.User, 0, len(admins))
	for _, a := range admins {
		if a.User != nil && !a.User.IsBot {
			out = append(out, b.remember(a.User))
		}
	}
	return out, nil
}

func (b *Bot) GrantRole(ctx context.Context, userID, roleID int64) error { return chat.ErrUnsupported }

func (b *Bot) RevokeRole(ctx context.Context, userID, roleID int64) error { return chat.ErrUnsupported }

func (b *Bot) Mention(userID int64) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n, ok := b.names[userID]; ok && n != "" {
		return n
	}
	return "user " + strconv.FormatInt(userID, 10)
}

func (b *Bot) RoleMention(role models.Role) string { return "@" + role.Name }

func (b *Bot) Timestamp(t time.Time) string { return t.UTC().Format("Mon 2 Jan 2006 15:04 UTC") }

// isAdmin reads the group's administrators, cached for a few minutes.
func (b *Bot) isAdmin(userID int64) bool {
	b.mu.Lock()
	fresh := b.admins != nil && time.Since(b.adminsAt) < adminCacheTTL
	b.mu.Unlock()
	if !fresh {
		members, err := b.RoleMembers(context.Background(), adminRoleID)
		if err != nil {
			b.log.Warn().Err(err).Msg("load administrators")
		} else {
			admins := make(map[int64]bool, len(members))
			for _, m := range members {
				admins[m.ID] = true
			}
			b.mu.Lock()
			b.admins, b.adminsAt = admins, time.Now()
			b.mu.Unlock()
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.admins[userID]
}

func (b *Bot) chatParams() tgbotapi.Params {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", b.chatID)
	return params
}

// wrap marks "not found" answers as chat.ErrNotFound.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		desc := strings.ToLower(apiErr.Message)
		if strings.Contains(desc, "not found") || strings.Contains(desc, "topic_id_invalid") {
			return fmt.Errorf("%s: %w: %v", op, chat.ErrNotFound, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
