package feishu

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kart-io/clawprobe/pkg/config"
	"github.com/kart-io/clawprobe/pkg/errors"
	"github.com/kart-io/clawprobe/pkg/logger"
)

// BotInfo is the cached identity of an app's bot. Either field may be empty
// when the API response carried no bot.
type BotInfo struct {
	BotName   string `json:"botName,omitempty"`
	BotOpenID string `json:"botOpenId,omitempty"`
}

// BotInfoStore keeps the last successfully probed BotInfo per app id.
// Implementations must be safe for concurrent use.
type BotInfoStore interface {
	Get(ctx context.Context, appID string) (BotInfo, bool, error)
	Set(ctx context.Context, appID string, info BotInfo) error
}

// MemoryBotInfoStore is a process-local store that never evicts
type MemoryBotInfoStore struct {
	mu      sync.RWMutex
	entries map[string]BotInfo
}

// NewMemoryBotInfoStore creates an empty in-memory store
func NewMemoryBotInfoStore() *MemoryBotInfoStore {
	return &MemoryBotInfoStore{entries: make(map[string]BotInfo)}
}

// Get returns the entry for appID
func (s *MemoryBotInfoStore) Get(_ context.Context, appID string) (BotInfo, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.entries[appID]
	return info, ok, nil
}

// Set stores info for appID, replacing any previous entry
func (s *MemoryBotInfoStore) Set(_ context.Context, appID string, info BotInfo) error {
	s.mu.Lock()
	s.entries[appID] = info
	s.mu.Unlock()
	return nil
}

// Len returns the number of cached apps
func (s *MemoryBotInfoStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

const (
	fieldBotName   = "bot_name"
	fieldBotOpenID = "bot_open_id"
)

// RedisBotInfoStore shares bot identities between replicas. Each app is a
// hash at keyPrefix+appID.
type RedisBotInfoStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisBotInfoStore creates a store on an existing client. A zero ttl keeps
// entries until Redis evicts them.
func NewRedisBotInfoStore(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisBotInfoStore {
	return &RedisBotInfoStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (s *RedisBotInfoStore) key(appID string) string {
	return s.keyPrefix + appID
}

// Get returns the entry for appID
func (s *RedisBotInfoStore) Get(ctx context.Context, appID string) (BotInfo, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key(appID)).Result()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return BotInfo{}, false, nil
		}
		return BotInfo{}, false, errors.Wrap(err, errors.ErrCache, "failed to read bot info").WithPlatform(platformName)
	}
	if len(fields) == 0 {
		return BotInfo{}, false, nil
	}

	return BotInfo{
		BotName:   fields[fieldBotName],
		BotOpenID: fields[fieldBotOpenID],
	}, true, nil
}

// Set stores info for appID, replacing any previous entry
func (s *RedisBotInfoStore) Set(ctx context.Context, appID string, info BotInfo) error {
	key := s.key(appID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldBotName, info.BotName, fieldBotOpenID, info.BotOpenID)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		} else {
			pipe.Persist(ctx, key)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCache, "failed to write bot info").WithPlatform(platformName)
	}
	return nil
}

// Client returns the underlying Redis client
func (s *RedisBotInfoStore) Client() redis.UniversalClient {
	return s.client
}

// Close closes the underlying Redis client
func (s *RedisBotInfoStore) Close() error {
	return s.client.Close()
}

// NewBotInfoStore builds the store selected by cfg. Redis stores are checked
// with a PING before being returned.
func NewBotInfoStore(cfg *config.CacheConfig, log logger.Logger) (BotInfoStore, error) {
	log = logger.OrDiscard(log)

	if cfg == nil || cfg.Type == "" || cfg.Type == config.CacheMemory {
		log.Debug("Using in-memory bot info store")
		return NewMemoryBotInfoStore(), nil
	}

	if cfg.Type != config.CacheRedis {
		return nil, errors.Newf(errors.ErrInvalidConfig, "unsupported cache type: %s", cfg.Type)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		log.Error("Failed to connect to Redis", "addr", cfg.Redis.Addr, "error", err)
		return nil, errors.Wrap(err, errors.ErrCache, fmt.Sprintf("failed to connect to Redis at %s", cfg.Redis.Addr))
	}

	log.Info("Using Redis bot info store", "addr", cfg.Redis.Addr, "keyPrefix", cfg.Redis.KeyPrefix)
	return NewRedisBotInfoStore(client, cfg.Redis.KeyPrefix, cfg.Redis.TTL), nil
}
