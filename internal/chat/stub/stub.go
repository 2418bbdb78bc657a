package stub

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"racebot/internal/chat"
	"racebot/internal/models"
)

// Stub platform:
// - keeps threads, messages, DMs and roles in memory
// - Deliver feeds a message to the handler registered by Listen
// - Fail makes the next calls of a method return an error
// Used by tests and by CHAT_PLATFORM=stub for local runs.

type Thread struct {
	ID       int64
	ParentID int64
	Name     string
	Private  bool
	Members  []int64
	Deleted  bool
}

type Message struct {
	ID      int64
	Text    string
	Pinned  bool
	Deleted bool
}

type DM struct {
	Text     string
	Filename string
	Data     []byte
}

type Platform struct {
	mu       sync.Mutex
	nextID   int64
	channels map[int64]bool
	threads  map[int64]*Thread
	messages map[int64][]*Message
	dms      map[int64][]DM
	users    map[int64]models.User
	roles    map[string]models.Role
	members  map[int64][]int64
	failures map[string]error
	handler  chat.Handler
}

var _ chat.Platform = (*Platform)(nil)

func New() *Platform {
	return &Platform{
		nextID:   1000,
		channels: map[int64]bool{},
		threads:  map[int64]*Thread{},
		messages: map[int64][]*Message{},
		dms:      map[int64][]DM{},
		users:    map[int64]models.User{},
		roles:    map[string]models.Role{},
		members:  map[int64][]int64{},
		failures: map[string]error{},
	}
}

func (p *Platform) Name() string { return "stub" }

// ---------- Fixtures ----------

func (p *Platform) AddChannel(id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels[id] = true
}

func (p *Platform) AddUser(u models.User) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[u.ID] = u
}

// AddRole registers a role and its members, returning the role.
func (p *Platform) AddRole(name string, members ...int64) models.Role {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	r := models.Role{ID: p.nextID, Name: name}
	p.roles[name] = r
	p.members[r.ID] = append([]int64(nil), members...)
	return r
}

// Fail makes method (e.g. "Send") return err until cleared with a nil err.
func (p *Platform) Fail(method string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, method)
		return
	}
	p.failures[method] = err
}

func (p *Platform) fail(method string) error {
	return p.failures[method]
}

// ---------- Inspection ----------

func (p *Platform) Thread(id int64) (Thread, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.threads[id]
	if !ok {
		return Thread{}, false
	}
	c := *t
	c.Members = append([]int64(nil), t.Members...)
	return c, true
}

// Messages returns the non-deleted messages of a channel in send order.
func (p *Platform) Messages(channelID int64) []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Message
	for _, m := range p.messages[channelID] {
		if !m.Deleted {
			out = append(out, *m)
		}
	}
	return out
}

func (p *Platform) Texts(channelID int64) []string {
	var out []string
	for _, m := range p.Messages(channelID) {
		out = append(out, m.Text)
	}
	return out
}

func (p *Platform) MessageText(channelID, messageID int64) (string, bool) {
	for _, m := range p.Messages(channelID) {
		if m.ID == messageID {
			return m.Text, true
		}
	}
	return "", false
}

func (p *Platform) DMs(userID int64) []DM {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]DM(nil), p.dms[userID]...)
}

func (p *Platform) HasRole(userID, roleID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.members[roleID] {
		if id == userID {
			return true
		}
	}
	return false
}

// Deliver hands m to the Listen handler. It is a no-op before Listen.
func (p *Platform) Deliver(ctx context.Context, m chat.Message) {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h != nil {
		h(ctx, m)
	}
}

// Post stores a message from a user so tests can reference its id.
func (p *Platform) Post(channelID int64, text string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.appendLocked(channelID, text)
}

// ---------- chat.Platform ----------

func (p *Platform) Listen(ctx context.Context, h chat.Handler) error {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

// SetHandler registers h without blocking, for tests.
func (p *Platform) SetHandler(h chat.Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

func (p *Platform) CreateThread(ctx context.Context, parentID int64, name string, private bool) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("CreateThread"); err != nil {
		return 0, err
	}
	p.nextID++
	p.threads[p.nextID] = &Thread{ID: p.nextID, ParentID: parentID, Name: name, Private: private}
	return p.nextID, nil
}

func (p *Platform) DeleteThread(ctx context.Context, threadID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("DeleteThread"); err != nil {
		return err
	}
	t, ok := p.threads[threadID]
	if !ok || t.Deleted {
		return fmt.Errorf("thread %d: %w", threadID, chat.ErrNotFound)
	}
	t.Deleted = true
	return nil
}

func (p *Platform) AddThreadMember(ctx context.Context, threadID, userID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("AddThreadMember"); err != nil {
		return err
	}
	t, ok := p.threads[threadID]
	if !ok || t.Deleted {
		return fmt.Errorf("thread %d: %w", threadID, chat.ErrNotFound)
	}
	for _, id := range t.Members {
		if id == userID {
			return nil
		}
	}
	t.Members = append(t.Members, userID)
	return nil
}

func (p *Platform) Send(ctx context.Context, channelID int64, text string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("Send"); err != nil {
		return 0, err
	}
	return p.appendLocked(channelID, text), nil
}

func (p *Platform) appendLocked(channelID int64, text string) int64 {
	p.nextID++
	p.messages[channelID] = append(p.messages[channelID], &Message{ID: p.nextID, Text: text})
	return p.nextID
}

func (p *Platform) find(channelID, messageID int64) (*Message, error) {
	for _, m := range p.messages[channelID] {
		if m.ID == messageID && !m.Deleted {
			return m, nil
		}
	}
	return nil, fmt.Errorf("message %d in %d: %w", messageID, channelID, chat.ErrNotFound)
}

func (p *Platform) Edit(ctx context.Context, channelID, messageID int64, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("Edit"); err != nil {
		return err
	}
	m, err := p.find(channelID, messageID)
	if err != nil {
		return err
	}
	m.Text = text
	return nil
}

func (p *Platform) Pin(ctx context.Context, channelID, messageID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("Pin"); err != nil {
		return err
	}
	m, err := p.find(channelID, messageID)
	if err != nil {
		return err
	}
	m.Pinned = true
	return nil
}

func (p *Platform) DeleteMessage(ctx context.Context, channelID, messageID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("DeleteMessage"); err != nil {
		return err
	}
	m, err := p.find(channelID, messageID)
	if err != nil {
		return err
	}
	m.Deleted = true
	return nil
}

func (p *Platform) SendDirect(ctx context.Context, userID int64, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("SendDirect"); err != nil {
		return err
	}
	p.dms[userID] = append(p.dms[userID], DM{Text: text})
	return nil
}

func (p *Platform) SendDirectFile(ctx context.Context, userID int64, text, filename string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("SendDirectFile"); err != nil {
		return err
	}
	p.dms[userID] = append(p.dms[userID], DM{Text: text, Filename: filename, Data: append([]byte(nil), data...)})
	return nil
}

func (p *Platform) ResolveUser(ctx context.Context, userID int64) (models.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("ResolveUser"); err != nil {
		return models.User{}, err
	}
	u, ok := p.users[userID]
	if !ok {
		return models.User{}, fmt.Errorf("user %d: %w", userID, chat.ErrNotFound)
	}
	return u, nil
}

func (p *Platform) ResolveChannel(ctx context.Context, channelID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("ResolveChannel"); err != nil {
		return err
	}
	if p.channels[channelID] {
		return nil
	}
	if t, ok := p.threads[channelID]; ok && !t.Deleted {
		return nil
	}
	return fmt.Errorf("channel %d: %w", channelID, chat.ErrNotFound)
}

func (p *Platform) ResolveRole(ctx context.Context, name string) (models.Role, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.roles[name]
	if !ok {
		return models.Role{}, fmt.Errorf("role %q: %w", name, chat.ErrNotFound)
	}
	return r, nil
}

func (p *Platform) RoleMembers(ctx context.Context, roleID int64) ([]models.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.User
	for _, id := range p.members[roleID] {
		u, ok := p.users[id]
		if !ok {
			u = models.User{ID: id, DisplayName: strconv.FormatInt(id, 10)}
		}
		out = append(out, u)
	}
	return out, nil
}

func (p *Platform) GrantRole(ctx context.Context, userID, roleID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("GrantRole"); err != nil {
		return err
	}
	for _, id := range p.members[roleID] {
		if id == userID {
			return nil
		}
	}
	p.members[roleID] = append(p.members[roleID], userID)
	return nil
}

func (p *Platform) RevokeRole(ctx context.Context, userID, roleID int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fail("RevokeRole"); err != nil {
		return err
	}
	ids := p.members[roleID]
	for i, id := range ids {
		if id == userID {
			p.members[roleID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (p *Platform) Mention(userID int64) string { return fmt.Sprintf("<@%d>", userID) }

func (p *Platform) RoleMention(role models.Role) string { return fmt.Sprintf("<@&%d>", role.ID) }

func (p *Platform) Timestamp(t time.Time) string { return fmt.Sprintf("<t:%d:F>", t.Unix()) }
