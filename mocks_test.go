package auth_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	auth "github.com/goliatone/go-pwauth"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

// MockUserDirectory implements auth.UserDirectory
type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) FindByIdentifier(ctx context.Context, identifier string) (*auth.UserRecord, error) {
	args := m.Called(ctx, identifier)
	if rec, ok := args.Get(0).(*auth.UserRecord); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockEmailDirectory implements auth.UserDirectory and auth.EmailDirectory
type MockEmailDirectory struct {
	MockUserDirectory
}

func (m *MockEmailDirectory) FindByEmail(ctx context.Context, email string) (*auth.UserRecord, error) {
	args := m.Called(ctx, email)
	if rec, ok := args.Get(0).(*auth.UserRecord); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockLogger implements auth.Logger
type MockLogger struct {
	mu    sync.Mutex
	lines []string
}

func (m *MockLogger) record(level, format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, level+" "+fmt.Sprintf(format, args...))
}

func (m *MockLogger) Debug(format string, args ...any) { m.record("debug", format, args...) }
func (m *MockLogger) Info(format string, args ...any)  { m.record("info", format, args...) }
func (m *MockLogger) Warn(format string, args ...any)  { m.record("warn", format, args...) }
func (m *MockLogger) Error(format string, args ...any) { m.record("error", format, args...) }

// recordingSink collects activity events
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

// fakeClock is a settable clock for token tests
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// cheap parameters keep the suite fast
func testHasher() *auth.Hasher {
	return auth.NewHasher(
		auth.NewArgon2idStrategy(auth.Argon2Params{Time: 1, Memory: 1024, Threads: 1}),
		auth.NewBcryptStrategy(bcrypt.MinCost),
	)
}

func testSettings() *auth.Settings {
	return &auth.Settings{
		SigningKey:       testSigningKey,
		TokenTTL:         30 * time.Minute,
		MaxTokenTTL:      24 * time.Hour,
		DirectoryTimeout: time.Second,
		Argon2Time:       1,
		Argon2Memory:     1024,
		Argon2Threads:    1,
		BcryptCost:       bcrypt.MinCost,
		Directory:        auth.DirectoryMemory,
	}
}

func mustDigest(h *auth.Hasher, password string) string {
	d, err := h.Hash(password)
	if err != nil {
		panic(err)
	}
	return d
}
