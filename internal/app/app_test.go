package app

import (
	"context"
	"flag"
	"io"
	"testing"
	"time"

	"github.com/dvloznov/finance-bot/internal/clock"
	"github.com/dvloznov/finance-bot/internal/config"
	"github.com/dvloznov/finance-bot/internal/jobs/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadConfig(t *testing.T, args ...string) *config.Config {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg, err := config.Load(fs, append([]string{"-db", ":memory:"}, args...), func(string) string { return "" })
	require.NoError(t, err)
	return cfg
}

func TestBuildWithoutOptionalBackends(t *testing.T) {
	ctx := context.Background()
	c := clock.NewFixed(time.Date(2026, 6, 3, 10, 0, 0, 0, time.UTC))

	a, err := Build(ctx, loadConfig(t), Options{Clock: c})
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Storage)
	assert.Nil(t, a.Warehouse)
	assert.False(t, a.Export.Publishing())
	require.NoError(t, a.DB.Ping(ctx))

	reply := a.Dispatcher.Handle(ctx, 5, "Sam", "/budget set food 200")
	assert.True(t, reply.OK, reply.Text())

	reply = a.Dispatcher.Handle(ctx, 5, "Sam", "/budget")
	assert.True(t, reply.OK)
	assert.Contains(t, reply.Text(), "food")

	users, err := a.DB.Users().List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, int64(5), users[0].ExternalID)
}

func TestSchedulerPublishesWeeklySummary(t *testing.T) {
	ctx := context.Background()
	c := clock.NewFixed(time.Date(2026, 6, 7, 20, 0, 0, 0, time.UTC))

	a, err := Build(ctx, loadConfig(t), Options{Clock: c})
	require.NoError(t, err)
	defer a.Close()

	a.Dispatcher.Handle(ctx, 5, "Sam", "/start")

	store := inmemory.NewStore()
	queue := inmemory.NewQueue(inmemory.Options{Store: store})
	defer queue.Close()

	sent, err := a.Scheduler(queue).RunWeeklySummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := Build(context.Background(), loadConfig(t), Options{})
	require.NoError(t, err)
	require.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}
