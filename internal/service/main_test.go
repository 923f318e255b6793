package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"codeshare/internal/codegen"
	"codeshare/internal/memory"
	"codeshare/internal/models"
	"codeshare/internal/storage"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const testSecret = "test_secret_that_is_long_enough_0123456789"

type fixture struct {
	db       *memory.DB
	content  *storage.LocalStorage
	identity *IdentityService
	shares   *ShareService
	stats    *StatsService
	logs     *test.Hook
}

func newFixture(t *testing.T, codes codegen.Generator, opts ShareOptions) *fixture {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	content, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	if codes == nil {
		codes, err = codegen.New(codegen.DefaultLength)
		require.NoError(t, err)
	}

	db := memory.New()
	return &fixture{
		db:       db,
		content:  content,
		identity: NewIdentityService(db, testSecret, time.Hour, logger),
		shares:   NewShareService(db, content, codes, opts, logger),
		stats:    NewStatsService(db, db),
		logs:     hook,
	}
}

func (f *fixture) register(t *testing.T, username string) *models.User {
	t.Helper()
	res, err := f.identity.Register(context.Background(), username, username+"@example.com", "password123")
	require.NoError(t, err)
	return res.User
}

func (f *fixture) admin(t *testing.T, username string) *models.User {
	t.Helper()
	f.register(t, username)
	u, err := f.identity.Promote(context.Background(), username)
	require.NoError(t, err)
	return u
}

// sequenceGen replays codes in order and then repeats the last one.
type sequenceGen struct {
	mu    sync.Mutex
	codes []string
	i     int
}

func (g *sequenceGen) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := g.codes[g.i]
	if g.i < len(g.codes)-1 {
		g.i++
	}
	return c
}

// repeatingGen hands out every fresh code twice in a row, so every second
// draw collides with the share created just before it.
type repeatingGen struct {
	mu    sync.Mutex
	inner codegen.Generator
	last  string
	calls int
}

func (g *repeatingGen) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.calls%2 == 0 && g.last != "" {
		return g.last
	}
	g.last = g.inner.Generate()
	return g.last
}
