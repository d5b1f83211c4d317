// Package cache keeps per-user chat history in Redis. A nil *HistoryCache is
// valid and caches nothing.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"medichat-server/internal/config"
	"medichat-server/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// HistoryCache stores a user's chat history as one JSON document per user.
type HistoryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// Connect dials Redis when it is configured. It returns nil, without error,
// when Redis is disabled or unreachable so the server runs uncached.
func Connect(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *HistoryCache {
	if !cfg.Enabled() {
		logger.Info("redis not configured, chat history cache disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Username:     cfg.Username,
		Password:     cfg.Password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("failed to connect to redis, continuing without history cache",
			zap.String("addr", cfg.Addr()), zap.Error(err))
		_ = client.Close()
		return nil
	}

	logger.Info("connected to redis", zap.String("addr", cfg.Addr()))
	return New(client, cfg.TTL, logger)
}

// New wraps an existing client.
func New(client *redis.Client, ttl time.Duration, logger *zap.Logger) *HistoryCache {
	return &HistoryCache{client: client, ttl: ttl, logger: logger}
}

func historyKey(userID string) string {
	return "history:" + userID
}

// generationKey counts invalidations of a user's history. A read that started
// before an invalidation must not repopulate the cache.
func generationKey(userID string) string {
	return "history-gen:" + userID
}

// Get returns the cached history for userID. Any Redis or decoding failure is a miss.
func (h *HistoryCache) Get(ctx context.Context, userID string) ([]models.ChatMessage, bool) {
	if h == nil {
		return nil, false
	}

	raw, err := h.client.Get(ctx, historyKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			h.logger.Warn("history cache read failed", zap.String("user_id", userID), zap.Error(err))
		}
		return nil, false
	}

	var messages []models.ChatMessage
	if err := json.Unmarshal(raw, &messages); err != nil {
		h.logger.Warn("history cache entry is corrupt", zap.String("user_id", userID), zap.Error(err))
		return nil, false
	}
	return messages, true
}

// Load returns userID's history from the cache, or from fetch on a miss. The
// fetched list is cached only if no Invalidate for userID ran in the meantime.
func (h *HistoryCache) Load(ctx context.Context, userID string, fetch func(context.Context) ([]models.ChatMessage, error)) ([]models.ChatMessage, error) {
	if h == nil {
		return fetch(ctx)
	}
	if cached, ok := h.Get(ctx, userID); ok {
		return cached, nil
	}

	gen, genErr := h.generation(ctx, userID)
	messages, err := fetch(ctx)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		h.logger.Warn("history cache generation read failed", zap.String("user_id", userID), zap.Error(genErr))
		return messages, nil
	}
	h.store(ctx, userID, gen, messages)
	return messages, nil
}

func (h *HistoryCache) generation(ctx context.Context, userID string) (int64, error) {
	gen, err := h.client.Get(ctx, generationKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

var errStaleHistory = errors.New("history changed while loading")

// store writes messages unless the generation moved past gen.
func (h *HistoryCache) store(ctx context.Context, userID string, gen int64, messages []models.ChatMessage) {
	payload, err := json.Marshal(messages)
	if err != nil {
		h.logger.Warn("failed to encode history", zap.String("user_id", userID), zap.Error(err))
		return
	}

	genKey := generationKey(userID)
	err = h.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleHistory
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, historyKey(userID), payload, h.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleHistory), errors.Is(err, redis.TxFailedErr):
		h.logger.Debug("skipped caching stale history", zap.String("user_id", userID))
	default:
		h.logger.Warn("history cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// Invalidate drops the cached history of every given user and bumps their
// generation so in-flight loads discard what they read.
func (h *HistoryCache) Invalidate(ctx context.Context, userIDs ...string) {
	if h == nil || len(userIDs) == 0 {
		return
	}

	_, err := h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIDs {
			pipe.Incr(ctx, generationKey(id))
			pipe.Del(ctx, historyKey(id))
		}
		return nil
	})
	if err != nil {
		h.logger.Warn("history cache invalidation failed", zap.Strings("user_ids", userIDs), zap.Error(err))
	}
}

// Close releases the Redis connection pool.
func (h *HistoryCache) Close() error {
	if h == nil {
		return nil
	}
	return h.client.Close()
}
