// Package history persists completed training sessions as a single JSON
// array under one key of a durable key/value store.
package history

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/zulandar/trainer/internal/analysis"
	"github.com/zulandar/trainer/internal/dialogue"
	"github.com/zulandar/trainer/internal/kv"
	"github.com/zulandar/trainer/internal/logging"
)

// DefaultKey is the storage key of the history collection.
const DefaultKey = "ai-trainer-history"

// Entry is an immutable record of one completed session.
type Entry struct {
	ID            string             `json:"id"`
	TopicID       string             `json:"topicId"`
	TopicName     string             `json:"topicNameRu"`
	CompletedAt   time.Time          `json:"completedAt"`
	Transcription []dialogue.Message `json:"transcription"`
	Result        analysis.Result    `json:"result"`
}

// NewID returns a ULID string for a history entry completed at now.
func NewID(now time.Time) (string, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return "", fmt.Errorf("history: generate ID: %w", err)
	}
	return id.String(), nil
}

// StoreOpts holds parameters for creating a Store.
type StoreOpts struct {
	KV     kv.Store
	Key    string // defaults to DefaultKey
	Logger *zap.Logger
}

// Store reads and appends history entries. Writes within one process are
// serialized; separate processes sharing a key are last-write-wins.
type Store struct {
	mu  sync.Mutex
	kv  kv.Store
	key string
	log *zap.Logger
}

// NewStore creates a Store over opts.KV.
func NewStore(opts StoreOpts) (*Store, error) {
	if opts.KV == nil {
		return nil, fmt.Errorf("history: kv store is required")
	}
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	return &Store{kv: opts.KV, key: opts.Key, log: logging.OrNop(opts.Logger)}, nil
}

// Save appends entry to the stored collection. Storage failures, including
// quota errors, are logged and swallowed. When the stored collection cannot
// be read the entry is dropped rather than overwriting existing entries.
func (s *Store) Save(ctx context.Context, entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readRaw(ctx)
	if err != nil {
		s.log.Error("history: entry not saved, read failed",
			zap.String("id", entry.ID), zap.Error(err))
		return
	}
	data, err := json.Marshal(toWire(entry))
	if err != nil {
		s.log.Error("history: encode entry", zap.String("id", entry.ID), zap.Error(err))
		return
	}
	raw = append(raw, data)
	blob, err := json.Marshal(raw)
	if err != nil {
		s.log.Error("history: encode collection", zap.Error(err))
		return
	}
	if err := s.kv.Set(ctx, s.key, string(blob)); err != nil {
		fields := []zap.Field{zap.String("id", entry.ID), zap.Int("bytes", len(blob)), zap.Error(err)}
		if errors.Is(err, kv.ErrQuotaExceeded) {
			s.log.Warn("history: entry not saved, storage quota exceeded", fields...)
			return
		}
		s.log.Error("history: entry not saved", fields...)
	}
}

// LoadAll returns every decodable entry, most recently completed first.
// Entries with equal completion times keep no guaranteed order.
func (s *Store) LoadAll(ctx context.Context) []Entry {
	s.mu.Lock()
	raw := s.loadRaw(ctx)
	s.mu.Unlock()

	entries := make([]Entry, 0, len(raw))
	for i, item := range raw {
		e, err := decodeEntry(item)
		if err != nil {
			s.log.Warn("history: skipping malformed entry", zap.Int("index", i), zap.Error(err))
			continue
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CompletedAt.After(entries[j].CompletedAt)
	})
	return entries
}

// Get returns the entry with the given id.
func (s *Store) Get(ctx context.Context, id string) (Entry, bool) {
	s.mu.Lock()
	raw := s.loadRaw(ctx)
	s.mu.Unlock()

	for _, item := range raw {
		var head struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(item, &head) != nil || head.ID != id {
			continue
		}
		e, err := decodeEntry(item)
		if err != nil {
			s.log.Warn("history: malformed entry", zap.String("id", id), zap.Error(err))
			return Entry{}, false
		}
		return e, true
	}
	return Entry{}, false
}

// loadRaw returns the stored array elements. Read failures degrade to an
// empty collection.
func (s *Store) loadRaw(ctx context.Context) []json.RawMessage {
	raw, err := s.readRaw(ctx)
	if err != nil {
		s.log.Warn("history: read failed, treating as empty", zap.Error(err))
		return nil
	}
	return raw
}

// readRaw returns the stored array elements. Missing, non-JSON or non-array
// data yields an empty collection; backend errors are returned.
func (s *Store) readRaw(ctx context.Context) ([]json.RawMessage, error) {
	value, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: read %s: %w", s.key, err)
	}
	if value == "" {
		return nil, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		s.log.Warn("history: stored data is not a JSON array, treating as empty", zap.Error(err))
		return nil, nil
	}
	return raw, nil
}
