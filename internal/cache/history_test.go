package cache

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"medichat-server/internal/config"
	"medichat-server/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fetchOf(messages []models.ChatMessage, calls *int) func(context.Context) ([]models.ChatMessage, error) {
	return func(context.Context) ([]models.ChatMessage, error) {
		*calls++
		return messages, nil
	}
}

func newMiniCache(t *testing.T) (*HistoryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	h := New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour, zap.NewNop())
	t.Cleanup(func() { _ = h.Close() })
	return h, mr
}

func sampleHistory() []models.ChatMessage {
	q := "Can I take ibuprofen?"
	doctorID := "0b5f7f0a-2f4e-4a55-9a3e-0d8e2b1f7c10"
	ts := time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)

	first := models.ChatMessage{
		UserID:    "u1",
		Question:  &q,
		Answer:    "Take it with food.",
		FromRole:  models.SourceSystem,
		Context:   models.ChatContext{Medications: models.StringList{"ibuprofen"}, Conditions: models.StringList{"asthma", "gerd"}, Symptoms: "headache"},
		Timestamp: ts,
	}
	first.ID = "m1"
	note := models.ChatMessage{
		UserID:    "u1",
		Answer:    "Come in on Monday.",
		FromRole:  models.SourceDoctor,
		DoctorID:  &doctorID,
		Timestamp: ts.Add(time.Minute),
	}
	note.ID = "m2"
	return []models.ChatMessage{first, note}
}

func TestNilHistoryCache(t *testing.T) {
	var h *HistoryCache
	ctx := context.Background()

	calls := 0
	got, err := h.Load(ctx, "u1", fetchOf([]models.ChatMessage{{Answer: "hi"}}, &calls))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, calls)

	h.Invalidate(ctx, "u1")
	cached, ok := h.Get(ctx, "u1")
	assert.False(t, ok)
	assert.Nil(t, cached)
	assert.NoError(t, h.Close())
}

func TestHistoryCache_LoadRoundTrip(t *testing.T) {
	h, mr := newMiniCache(t)
	ctx := context.Background()
	want := sampleHistory()

	calls := 0
	got, err := h.Load(ctx, "u1", fetchOf(want, &calls))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, mr.Exists(historyKey("u1")))
	assert.Equal(t, time.Hour, mr.TTL(historyKey("u1")))

	got, err = h.Load(ctx, "u1", fetchOf(nil, &calls))
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second load is served from redis")

	require.Len(t, got, 2)
	require.NotNil(t, got[0].Question)
	assert.Equal(t, "Can I take ibuprofen?", *got[0].Question)
	assert.Equal(t, models.StringList{"asthma", "gerd"}, got[0].Context.Conditions)
	assert.True(t, want[0].Timestamp.Equal(got[0].Timestamp))
	assert.Nil(t, got[1].Question)
	require.NotNil(t, got[1].DoctorID)
	assert.Equal(t, *want[1].DoctorID, *got[1].DoctorID)
	assert.Equal(t, models.SourceDoctor, got[1].FromRole)
}

func TestHistoryCache_InvalidateRemovesEntry(t *testing.T) {
	h, mr := newMiniCache(t)
	ctx := context.Background()

	calls := 0
	_, err := h.Load(ctx, "u1", fetchOf(sampleHistory(), &calls))
	require.NoError(t, err)
	_, err = h.Load(ctx, "u2", fetchOf(sampleHistory(), &calls))
	require.NoError(t, err)

	h.Invalidate(ctx, "u1", "u2")
	assert.False(t, mr.Exists(historyKey("u1")))
	assert.False(t, mr.Exists(historyKey("u2")))
	_, ok := h.Get(ctx, "u1")
	assert.False(t, ok)

	fresh := []models.ChatMessage{{Answer: "fresh"}}
	got, err := h.Load(ctx, "u1", fetchOf(fresh, &calls))
	require.NoError(t, err)
	assert.Equal(t, fresh, got)
	cached, ok := h.Get(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, "fresh", cached[0].Answer)
}

func TestHistoryCache_WriteDuringLoadIsNotCached(t *testing.T) {
	h, mr := newMiniCache(t)
	ctx := context.Background()

	stale := []models.ChatMessage{{Answer: "before the write"}}
	got, err := h.Load(ctx, "u1", func(ctx context.Context) ([]models.ChatMessage, error) {
		// A concurrent writer commits and invalidates after the rows were read.
		h.Invalidate(ctx, "u1")
		return stale, nil
	})
	require.NoError(t, err)
	assert.Equal(t, stale, got)
	assert.False(t, mr.Exists(historyKey("u1")))

	fresh := []models.ChatMessage{{Answer: "before the write"}, {Answer: "the write"}}
	calls := 0
	got, err = h.Load(ctx, "u1", fetchOf(fresh, &calls))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Len(t, got, 2)
	assert.True(t, mr.Exists(historyKey("u1")))
}

func TestHistoryCache_FetchErrorIsReturned(t *testing.T) {
	h, mr := newMiniCache(t)

	boom := errors.New("db down")
	_, err := h.Load(context.Background(), "u1", func(context.Context) ([]models.ChatMessage, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(historyKey("u1")))
}

func TestHistoryCache_CorruptEntryIsAMiss(t *testing.T) {
	h, mr := newMiniCache(t)
	require.NoError(t, mr.Set(historyKey("u1"), "{not json"))

	_, ok := h.Get(context.Background(), "u1")
	assert.False(t, ok)
}

func TestConnect_Disabled(t *testing.T) {
	assert.Nil(t, Connect(context.Background(), config.RedisConfig{}, zap.NewNop()))
}

func TestConnect_Miniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)

	h := Connect(context.Background(), config.RedisConfig{Host: host, Port: port, TTL: time.Minute}, zap.NewNop())
	require.NotNil(t, h)
	assert.NoError(t, h.Close())
}

// unreachableAddr returns an address nothing listens on.
func unreachableAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestHistoryCache_UnreachableRedisFallsBackToFetch(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        unreachableAddr(t),
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	h := New(client, time.Minute, zap.NewNop())
	t.Cleanup(func() { _ = h.Close() })

	ctx := context.Background()
	calls := 0
	got, err := h.Load(ctx, "u1", fetchOf([]models.ChatMessage{{Answer: "hi"}}, &calls))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, calls)

	h.Invalidate(ctx, "u1")
	_, ok := h.Get(ctx, "u1")
	assert.False(t, ok)
}

func TestConnect_UnreachableReturnsNil(t *testing.T) {
	host, port, err := net.SplitHostPort(unreachableAddr(t))
	require.NoError(t, err)

	h := Connect(context.Background(), config.RedisConfig{Host: host, Port: port}, zap.NewNop())
	assert.Nil(t, h)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "history:abc", historyKey("abc"))
	assert.Equal(t, "history-gen:abc", generationKey("abc"))
}
