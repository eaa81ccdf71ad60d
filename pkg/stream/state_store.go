package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smilemakc/ruleforge/pkg/value"
)

// StateStore persists the stream subsystem's key->Value map across
// restarts (spec.md §6 "Persisted state layout"). Implementations keep
// their own notion of TTL; a zero ttl means "no expiration".
type StateStore interface {
	Put(ctx context.Context, key string, v value.Value, ttl time.Duration) error
	Get(ctx context.Context, key string) (value.Value, bool, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// MemoryStateStore keeps state only in-memory metadata, matching "Memory
// backend keeps only in-memory metadata" (spec.md §6).
type MemoryStateStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     value.Value
	expiresAt time.Time // zero means no expiration
}

// NewMemoryStateStore constructs an empty in-memory store.
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{entries: make(map[string]memoryEntry)}
}

func (m *MemoryStateStore) Put(_ context.Context, key string, v value.Value, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memoryEntry{value: v}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

func (m *MemoryStateStore) Get(_ context.Context, key string) (value.Value, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryStateStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryStateStore) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.entries))
	for k := range m.entries {
		out = append(out, k)
	}
	return out, nil
}

// RedisStateStore stores each key as "{prefix}:{key}" with a JSON-encoded
// Value, using native Redis expiration for TTL (spec.md §6 "Redis
// backend"). Adapted from the cache package's RedisCache wrapper, scoped
// down to the get/set/delete/scan surface the state store needs.
type RedisStateStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStateStore wraps an existing Redis client, namespacing every key
// under prefix.
func NewRedisStateStore(client *redis.Client, prefix string) *RedisStateStore {
	return &RedisStateStore{client: client, prefix: prefix}
}

func (r *RedisStateStore) namespaced(key string) string {
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

func (r *RedisStateStore) Put(ctx context.Context, key string, v value.Value, ttl time.Duration) error {
	encoded, err := json.Marshal(valueEnvelope{Kind: v.Kind().String(), Literal: value.AsString(v)})
	if err != nil {
		return fmt.Errorf("encode state value: %w", err)
	}
	return r.client.Set(ctx, r.namespaced(key), encoded, ttl).Err()
}

func (r *RedisStateStore) Get(ctx context.Context, key string) (value.Value, bool, error) {
	raw, err := r.client.Get(ctx, r.namespaced(key)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get state value: %w", err)
	}
	var env valueEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, false, fmt.Errorf("decode state value: %w", err)
	}
	return env.toValue(), true, nil
}

func (r *RedisStateStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.namespaced(key)).Err()
}

func (r *RedisStateStore) Keys(ctx context.Context) ([]string, error) {
	pattern := r.prefix + ":*"
	var out []string
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val()[len(r.prefix)+1:])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan state keys: %w", err)
	}
	return out, nil
}

// valueEnvelope is the JSON shape a Value round-trips through on the wire;
// literal is its string projection, re-parsed by kind on the way back.
type valueEnvelope struct {
	Kind    string `json:"kind"`
	Literal string `json:"literal"`
}

func (e valueEnvelope) toValue() value.Value {
	switch e.Kind {
	case "int":
		var i int64
		fmt.Sscanf(e.Literal, "%d", &i)
		return value.Int(i)
	case "float":
		var f float64
		fmt.Sscanf(e.Literal, "%g", &f)
		return value.Float(f)
	case "bool":
		return value.Bool(e.Literal == "true")
	case "null":
		return value.Null{}
	default:
		return value.Str(e.Literal)
	}
}

// FileStateStore writes the checkpoint layout "{backend_root}/{checkpoint_id}/state.json"
// literally (spec.md §6 "Persisted state layout"): one JSON document per
// checkpoint containing the whole key->Value map, TTLs tracked alongside
// since plain files have no native expiration.
type FileStateStore struct {
	mu           sync.Mutex
	backendRoot  string
	checkpointID string
}

type fileStateEntry struct {
	Kind      string    `json:"kind"`
	Literal   string    `json:"literal"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// NewFileStateStore targets {backendRoot}/{checkpointID}/state.json.
func NewFileStateStore(backendRoot, checkpointID string) *FileStateStore {
	return &FileStateStore{backendRoot: backendRoot, checkpointID: checkpointID}
}

func (f *FileStateStore) path() string {
	return filepath.Join(f.backendRoot, f.checkpointID, "state.json")
}

func (f *FileStateStore) load() (map[string]fileStateEntry, error) {
	raw, err := os.ReadFile(f.path())
	if os.IsNotExist(err) {
		return make(map[string]fileStateEntry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	var doc map[string]fileStateEntry
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}
	return doc, nil
}

func (f *FileStateStore) save(doc map[string]fileStateEntry) error {
	if err := os.MkdirAll(filepath.Dir(f.path()), 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}
	return os.WriteFile(f.path(), raw, 0o644)
}

func (f *FileStateStore) Put(_ context.Context, key string, v value.Value, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	entry := fileStateEntry{Kind: v.Kind().String(), Literal: value.AsString(v)}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl)
	}
	doc[key] = entry
	return f.save(doc)
}

func (f *FileStateStore) Get(_ context.Context, key string) (value.Value, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, false, err
	}
	entry, ok := doc[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.ExpiresAt.IsZero() && time.Now().After(entry.ExpiresAt) {
		delete(doc, key)
		if err := f.save(doc); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	return valueEnvelope{Kind: entry.Kind, Literal: entry.Literal}.toValue(), true, nil
}

func (f *FileStateStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	delete(doc, key)
	return f.save(doc)
}

func (f *FileStateStore) Keys(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(doc))
	for k := range doc {
		out = append(out, k)
	}
	return out, nil
}
