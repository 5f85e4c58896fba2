package app

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/transfa/fund-service/internal/config"
	"github.com/transfa/fund-service/internal/domain"
	"github.com/transfa/fund-service/internal/store"
)

const (
	testPassword = "demo-password-1"
	testSecret   = "test-secret-0123456789"
)

type publishedEvent struct {
	exchange   string
	routingKey string
	body       interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{exchange: exchange, routingKey: routingKey, body: body})
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) count(routingKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.routingKey == routingKey {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	return config.Config{
		JWTSecret:            testSecret,
		JWTIssuer:            "fund-service-test",
		JWTTTLMinutes:        60,
		WizardIdleTTLMinutes: 30,
		BcryptCost:           4,
	}
}

type testEnv struct {
	container *Container
	publisher *recordingPublisher
	seed      SeedResult
	investor  domain.User
	fund      domain.Fund
}

func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	return newTestEnvWithRepo(t, cfg, store.NewMemoryRepository())
}

func newTestEnvWithRepo(t *testing.T, cfg config.Config, repo store.Repository) *testEnv {
	t.Helper()
	publisher := &recordingPublisher{}
	c := NewContainer(cfg, Deps{
		Repo:      repo,
		Mirror:    store.NewMemorySessionMirror(),
		Publisher: publisher,
		Limiter:   NewMemorySubmitRateLimiter(),
		Logger:    testLogger(),
	})
	seed, err := SeedDemo(context.Background(), c, testPassword)
	if err != nil {
		t.Fatalf("seed demo: %v", err)
	}
	return &testEnv{
		container: c,
		publisher: publisher,
		seed:      seed,
		investor:  seed.Users[0],
		fund:      seed.Funds[0],
	}
}
