package usecase

import (
	"context"
	"errors"
	"sync"

	"slack-roaster/internal/domain"
	"slack-roaster/internal/ratelimit"
)

type upload struct {
	channel  string
	comment  string
	filename string
	data     []byte
}

type mockMessenger struct {
	mu        sync.Mutex
	posts     []string
	channels  []string
	uploads   []upload
	postErr   error
	uploadErr error
}

func (m *mockMessenger) PostMessage(_ context.Context, channelID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, channelID)
	m.posts = append(m.posts, text)
	return m.postErr
}

func (m *mockMessenger) UploadImage(_ context.Context, channelID, comment, filename string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, upload{channel: channelID, comment: comment, filename: filename, data: data})
	return m.uploadErr
}

type mockUsers struct {
	user domain.SlackUser
	err  error
}

func (m *mockUsers) UserInfo(_ context.Context, _ string) (domain.SlackUser, error) {
	return m.user, m.err
}

type mockStore struct {
	profile    domain.UserProfile
	found      bool
	getErr     error
	tickets    []domain.Ticket
	ticketsErr error
	putErr     error

	gotScope    string
	gotTicketID string
	gotLimit    int
	puts        []domain.UserProfile
}

func (m *mockStore) GetProfile(_ context.Context, _ string, scope string) (domain.UserProfile, bool, error) {
	m.gotScope = scope
	return m.profile, m.found, m.getErr
}

func (m *mockStore) PutProfile(_ context.Context, p domain.UserProfile) error {
	m.puts = append(m.puts, p)
	return m.putErr
}

func (m *mockStore) ListTickets(_ context.Context, userID string, limit int) ([]domain.Ticket, error) {
	m.gotTicketID = userID
	m.gotLimit = limit
	return m.tickets, m.ticketsErr
}

type mockText struct {
	out    string
	err    error
	prompt string
}

func (m *mockText) GenerateText(_ context.Context, prompt string) (string, error) {
	m.prompt = prompt
	return m.out, m.err
}

type mockImages struct {
	img   []byte
	err   error
	calls int
}

func (m *mockImages) GenerateImage(_ context.Context, _ string) ([]byte, error) {
	m.calls++
	return m.img, m.err
}

type mockModerator struct {
	flagged bool
	err     error
}

func (m *mockModerator) Moderate(_ context.Context, _ string) (bool, error) {
	return m.flagged, m.err
}

type fixedGate struct {
	decision ratelimit.Decision
	err      error
	quota    int
	calls    int
}

func (g *fixedGate) TryConsume(_ context.Context, _ string) (ratelimit.Decision, error) {
	g.calls++
	return g.decision, g.err
}

func (g *fixedGate) Quota() int { return g.quota }

// memCounter is an atomic in-memory ratelimit.Counter.
type memCounter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (c *memCounter) IncrementIfBelow(_ context.Context, subjectID, day string, quota int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	key := subjectID + "|" + day
	if c.counts[key] >= quota {
		return 0, ratelimit.ErrQuotaExceeded
	}
	c.counts[key]++
	return c.counts[key], nil
}

var errBoom = errors.New("boom")
