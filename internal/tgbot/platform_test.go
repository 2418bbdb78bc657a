package tgbot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"racebot/internal/chat"
)

const group = int64(-1001234)

type call struct {
	method string
	form   url.Values
}

// fakeAPI answers Bot API methods with canned results.
type fakeAPI struct {
	mu      sync.Mutex
	calls   []call
	answers map[string]string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseMultipartForm(1 << 20)
	method := r.URL.Path[len("/bottoken/"):]
	f.mu.Lock()
	f.calls = append(f.calls, call{method: method, form: r.Form})
	body, ok := f.answers[method]
	f.mu.Unlock()
	if !ok {
		body = `{"ok":true,"result":true}`
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

func (f *fakeAPI) last(method string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if f.calls[i].method == method {
			return f.calls[i].form
		}
	}
	return nil
}

func newTestBot(t *testing.T, answers map[string]string) (*Bot, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{answers: map[string]string{
		"getMe": `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Race","username":"racebot"}}`,
	}}
	for k, v := range answers {
		api.answers[k] = v
	}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	b, err := tgbotapi.NewBotAPIWithAPIEndpoint("token", srv.URL+"/bot%s/%s")
	require.NoError(t, err)
	return newBot(b, group, zerolog.Nop()), api
}

func TestSendToTopic(t *testing.T) {
	b, api := newTestBot(t, map[string]string{
		"sendMessage": `{"ok":true,"result":{"message_id":77,"date":0,"chat":{"id":-1001234,"type":"supergroup"}}}`,
	})
	ctx := context.Background()

	id, err := b.Send(ctx, 15, "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
	form := api.last("sendMessage")
	assert.Equal(t, "15", form.Get("message_thread_id"))
	assert.Equal(t, "-1001234", form.Get("chat_id"))

	_, err = b.Send(ctx, group, "general")
	require.NoError(t, err)
	assert.Empty(t, api.last("sendMessage").Get("message_thread_id"))
}

func TestCreateAndDeleteTopic(t *testing.T) {
	b, api := newTestBot(t, map[string]string{
		"createForumTopic": `{"ok":true,"result":{"message_thread_id":42,"name":"Weekly","icon_color":0}}`,
	})
	ctx := context.Background()

	id, err := b.CreateThread(ctx, group, "Weekly", true)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "Weekly", api.last("createForumTopic").Get("name"))

	require.NoError(t, b.DeleteThread(ctx, 42))
	assert.Equal(t, "42", api.last("deleteForumTopic").Get("message_thread_id"))
	assert.NoError(t, b.AddThreadMember(ctx, 42, 5))
}

func TestMissingMessageIsNotFound(t *testing.T) {
	b, _ := newTestBot(t, map[string]string{
		"editMessageText": `{"ok":false,"error_code":400,"description":"Bad Request: message to edit not found"}`,
	})
	err := b.Edit(context.Background(), 15, 9, "x")
	assert.ErrorIs(t, err, chat.ErrNotFound)
}

func TestRolesAreAdminsOnly(t *testing.T) {
	b, _ := newTestBot(t, map[string]string{
		"getChatAdministrators": `{"ok":true,"result":[{"status":"creator","user":{"id":5,"is_bot":false,"first_name":"Ada","username":"ada"}},{"status":"administrator","user":{"id":1,"is_bot":true,"first_name":"Race"}}]}`,
	})
	ctx := context.Background()

	_, err := b.ResolveRole(ctx, "runners")
	assert.ErrorIs(t, err, chat.ErrUnsupported)
	role, err := b.ResolveRole(ctx, AdminRole)
	require.NoError(t, err)
	members, err := b.RoleMembers(ctx, role.ID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, int64(5), members[0].ID)
	assert.ErrorIs(t, b.GrantRole(ctx, 5, role.ID), chat.ErrUnsupported)
	assert.Equal(t, "@ada", b.Mention(5))
}

func TestTopicMessageConversion(t *testing.T) {
	b, _ := newTestBot(t, map[string]string{
		"getChatAdministrators": `{"ok":true,"result":[{"status":"creator","user":{"id":5,"is_bot":false,"first_name":"Ada"}}]}`,
	})
	m := &topicMessage{
		Message: tgbotapi.Message{
			MessageID: 300,
			From:      &tgbotapi.User{ID: 5, FirstName: "Ada", LastName: "L"},
			Chat:      &tgbotapi.Chat{ID: group},
			Text:      " ?submit 1:02:03 ",
			ReplyToMessage: &tgbotapi.Message{
				From: &tgbotapi.User{ID: 6, FirstName: "Bob", UserName: "bob"},
			},
		},
		MessageThreadID: 15,
		IsTopicMessage:  true,
	}
	got := b.message(m)
	assert.Equal(t, int64(300), got.ID)
	assert.Equal(t, int64(15), got.ChannelID)
	assert.Equal(t, "Ada L", got.Author.DisplayName)
	assert.Equal(t, "?submit 1:02:03", got.Content)
	assert.Equal(t, []string{AdminRole}, got.AuthorRoles)
	require.Len(t, got.Mentions, 1)
	assert.Equal(t, int64(6), got.Mentions[0].ID)
	assert.Equal(t, "@bob", b.Mention(6))

	m.IsTopicMessage = false
	assert.Equal(t, group, b.message(m).ChannelID)
}
