package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deepgram/chatroom/internal/domain/chat/models"
	"github.com/deepgram/chatroom/internal/infrastructure/redis"
	"github.com/deepgram/chatroom/pkg/logger"
)

// Store persists conversation transcripts and per-conversation slot values.
type Store interface {
	Append(ctx context.Context, cid string, entry models.Entry) error
	Entries(ctx context.Context, cid string) ([]models.Entry, error)
	Clear(ctx context.Context, cid string) error
	SetSlot(ctx context.Context, cid, name, value string) error
	Slots(ctx context.Context, cid string) (map[string]string, error)
}

type RedisStore struct {
	redisService *redis.Service
}

type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]models.Entry
	slots   map[string]map[string]string
}

type Service struct {
	store Store
	now   func() time.Time
}

// NewService picks Redis when it is reachable, then SQLite when a path is
// configured, and keeps transcripts in memory otherwise.
func NewService(redisService *redis.Service, sqlitePath string) (*Service, error) {
	var store Store
	switch {
	case redisService != nil && redisService.Ping(context.Background()) == nil:
		logger.Info(logger.STORE, "Using Redis transcript store")
		store = &RedisStore{redisService: redisService}
	case sqlitePath != "":
		sqliteStore, err := NewSQLiteStore(sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open transcript database: %w", err)
		}
		logger.Info(logger.STORE, "Using SQLite transcript store at %s", sqlitePath)
		store = sqliteStore
	default:
		logger.Info(logger.STORE, "Using in-memory transcript store")
		store = NewMemoryStore()
	}

	return NewServiceWithStore(store), nil
}

func NewServiceWithStore(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string][]models.Entry),
		slots:   make(map[string]map[string]string),
	}
}

// Log appends one message to the conversation. An empty id gets a fresh uuid.
func (s *Service) Log(ctx context.Context, cid, username string, content models.Content, id string) (models.Entry, error) {
	if id == "" {
		id = uuid.NewString()
	}
	entry := models.NewEntry(username, content, id, s.now())
	if err := s.store.Append(ctx, cid, entry); err != nil {
		return entry, fmt.Errorf("failed to log message: %w", err)
	}
	logger.Debug(logger.STORE, "Logged %s message %s for %s", content.Type, id, cid)
	return entry, nil
}

// Transcript returns the conversation log, oldest first. Unknown
// conversations have an empty log.
func (s *Service) Transcript(ctx context.Context, cid string) ([]models.Entry, error) {
	entries, err := s.store.Entries(ctx, cid)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	if entries == nil {
		entries = []models.Entry{}
	}
	return entries, nil
}

func (s *Service) Clear(ctx context.Context, cid string) error {
	if err := s.store.Clear(ctx, cid); err != nil {
		return fmt.Errorf("failed to clear transcript: %w", err)
	}
	logger.Info(logger.STORE, "Cleared transcript for %s", cid)
	return nil
}

func (s *Service) SetSlot(ctx context.Context, cid, name, value string) error {
	return s.store.SetSlot(ctx, cid, name, value)
}

func (s *Service) Slots(ctx context.Context, cid string) (map[string]string, error) {
	slots, err := s.store.Slots(ctx, cid)
	if err != nil {
		return nil, fmt.Errorf("failed to read slots: %w", err)
	}
	if slots == nil {
		slots = map[string]string{}
	}
	return slots, nil
}

// Close releases the underlying store when it holds resources.
func (s *Service) Close() error {
	if c, ok := s.store.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Redis Store implementation
func logKey(cid string) string {
	return "chatroom:conversation:" + cid + ":log"
}

func slotsKey(cid string) string {
	return "chatroom:conversation:" + cid + ":slots"
}

func (rs *RedisStore) Append(ctx context.Context, cid string, entry models.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return rs.redisService.RPush(ctx, logKey(cid), string(data))
}

func (rs *RedisStore) Entries(ctx context.Context, cid string) ([]models.Entry, error) {
	raw, err := rs.redisService.LRange(ctx, logKey(cid))
	if err != nil {
		return nil, err
	}

	entries := make([]models.Entry, 0, len(raw))
	for _, r := range raw {
		var e models.Entry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("corrupt transcript entry for %s: %w", cid, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (rs *RedisStore) Clear(ctx context.Context, cid string) error {
	return rs.redisService.Delete(ctx, logKey(cid))
}

func (rs *RedisStore) SetSlot(ctx context.Context, cid, name, value string) error {
	return rs.redisService.HSet(ctx, slotsKey(cid), name, value)
}

func (rs *RedisStore) Slots(ctx context.Context, cid string) (map[string]string, error) {
	return rs.redisService.HGetAll(ctx, slotsKey(cid))
}

func (rs *RedisStore) Close() error {
	return rs.redisService.Close()
}

// Memory Store implementation
func (ms *MemoryStore) Append(ctx context.Context, cid string, entry models.Entry) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.entries[cid] = append(ms.entries[cid], entry)
	return nil
}

func (ms *MemoryStore) Entries(ctx context.Context, cid string) ([]models.Entry, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return append([]models.Entry(nil), ms.entries[cid]...), nil
}

func (ms *MemoryStore) Clear(ctx context.Context, cid string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.entries, cid)
	return nil
}

func (ms *MemoryStore) SetSlot(ctx context.Context, cid, name, value string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.slots[cid] == nil {
		ms.slots[cid] = make(map[string]string)
	}
	ms.slots[cid][name] = value
	return nil
}

func (ms *MemoryStore) Slots(ctx context.Context, cid string) (map[string]string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	out := make(map[string]string, len(ms.slots[cid]))
	for k, v := range ms.slots[cid] {
		out[k] = v
	}
	return out, nil
}
