package chat

import (
	"context"
	"errors"
	"time"

	"racebot/internal/models"
)

var (
	ErrUnsupported = errors.New("not supported by this chat platform")
	ErrNotFound    = errors.New("not found on chat platform")
)

// Message is an inbound chat message.
type Message struct {
	ID          int64
	ChannelID   int64
	Author      models.User
	AuthorRoles []string
	Mentions    []models.User
	Content     string
}

type Handler func(ctx context.Context, m Message)

// Platform is everything the bot needs from a chat service. Ids are the
// platform's numeric ids; text arguments are final, fully composed strings.
type Platform interface {
	Name() string

	// Listen delivers messages from other users until ctx is done.
	Listen(ctx context.Context, h Handler) error

	CreateThread(ctx context.Context, parentID int64, name string, private bool) (int64, error)
	DeleteThread(ctx context.Context, threadID int64) error
	AddThreadMember(ctx context.Context, threadID, userID int64) error

	Send(ctx context.Context, channelID int64, text string) (int64, error)
	Edit(ctx context.Context, channelID, messageID int64, text string) error
	Pin(ctx context.Context, channelID, messageID int64) error
	DeleteMessage(ctx context.Context, channelID, messageID int64) error

	SendDirect(ctx context.Context, userID int64, text string) error
	SendDirectFile(ctx context.Context, userID int64, text, filename string, data []byte) error

	ResolveUser(ctx context.Context, userID int64) (models.User, error)
	ResolveChannel(ctx context.Context, channelID int64) error
	ResolveRole(ctx context.Context, name string) (models.Role, error)
	RoleMembers(ctx context.Context, roleID int64) ([]models.User, error)
	GrantRole(ctx context.Context, userID, roleID int64) error
	RevokeRole(ctx context.Context, userID, roleID int64) error

	Mention(userID int64) string
	RoleMention(role models.Role) string
	Timestamp(t time.Time) string
}
