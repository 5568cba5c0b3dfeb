package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Record est une configuration nommée.
type Record struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
	Snapshot    json.RawMessage `json:"snapshot,omitempty"`
}

// Store conserve les configurations nommées.
type Store interface {
	// Save crée (ID vide) ou remplace un enregistrement et retourne la version stockée.
	Save(ctx context.Context, r Record) (Record, error)
	// List retourne les enregistrements du plus récent au plus ancien, sans le contenu.
	List(ctx context.Context) ([]Record, error)
	// Search filtre List sur le nom ou la description (insensible à la casse).
	Search(ctx context.Context, query string) ([]Record, error)
	Load(ctx context.Context, id string) (Record, error)
	Delete(ctx context.Context, id string) error
}

func prepare(r Record, now time.Time) (Record, error) {
	if strings.TrimSpace(r.Name) == "" {
		return Record{}, fmt.Errorf("%w: nom obligatoire", ErrInvalidSnapshot)
	}
	if _, err := Decode(r.Snapshot); err != nil {
		return Record{}, err
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Timestamp = now.UTC()
	return r, nil
}

func matches(r Record, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	return q == "" ||
		strings.Contains(strings.ToLower(r.Name), q) ||
		strings.Contains(strings.ToLower(r.Description), q)
}

func sortRecent(out []Record) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
}

/*
MÉMOIRE
*/

// MemoryStore garde les enregistrements en mémoire (tests, mode CLI).
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

// NewMemoryStore retourne un store vide.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]Record{}, now: time.Now}
}

// Save attribue un identifiant si besoin et horodate l'enregistrement.
func (m *MemoryStore) Save(_ context.Context, r Record) (Record, error) {
	r, err := prepare(r, m.now())
	if err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.ID] = r
	return r, nil
}

// List retourne tous les enregistrements, les plus récents d'abord.
func (m *MemoryStore) List(ctx context.Context) ([]Record, error) {
	return m.Search(ctx, "")
}

// Search filtre sur le nom et la description, sans tenir compte de la casse.
func (m *MemoryStore) Search(_ context.Context, query string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		if matches(r, query) {
			r.Snapshot = nil
			out = append(out, r)
		}
	}
	sortRecent(out)
	return out, nil
}

// Load retourne ErrNotFound si l'identifiant est inconnu.
func (m *MemoryStore) Load(_ context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r, nil
}

// Delete retourne ErrNotFound si l'identifiant est inconnu.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}

/*
REDIS → un hash par enregistrement + un set d'index
*/

// Connect initialise un client Redis depuis une URL redis:// ou un host:port.
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisStore stocke chaque enregistrement dans le hash <prefix>:<id>.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore range les clés sous prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(id string) string { return s.prefix + ":" + id }
func (s *RedisStore) index() string        { return s.prefix + ":index" }

// Save écrit le hash et l'ajoute à l'index.
func (s *RedisStore) Save(ctx context.Context, r Record) (Record, error) {
	r, err := prepare(r, s.now())
	if err != nil {
		return Record{}, err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.key(r.ID), map[string]any{
			"name":        r.Name,
			"description": r.Description,
			"timestamp":   r.Timestamp.Format(time.RFC3339Nano),
			"snapshot":    string(r.Snapshot),
		})
		p.SAdd(ctx, s.index(), r.ID)
		return nil
	})
	if err != nil {
		return Record{}, fmt.Errorf("redis save %s: %w", r.ID, err)
	}
	return r, nil
}

// List lit tous les enregistrements de l'index.
func (s *RedisStore) List(ctx context.Context) ([]Record, error) {
	return s.Search(ctx, "")
}

// Search applique le même filtre que MemoryStore.Search.
func (s *RedisStore) Search(ctx context.Context, query string) ([]Record, error) {
	ids, err := s.client.SMembers(ctx, s.index()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		r, err := s.Load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if matches(r, query) {
			r.Snapshot = nil
			out = append(out, r)
		}
	}
	sortRecent(out)
	return out, nil
}

// Load retourne ErrNotFound si le hash est absent.
func (s *RedisStore) Load(ctx context.Context, id string) (Record, error) {
	data, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return Record{}, fmt.Errorf("redis load %s: %w", id, err)
	}
	if len(data) == 0 {
		return Record{}, ErrNotFound
	}
	r := Record{
		ID:          id,
		Name:        data["name"],
		Description: data["description"],
		Snapshot:    json.RawMessage(data["snapshot"]),
	}
	if ts, err := time.Parse(time.RFC3339Nano, data["timestamp"]); err == nil {
		r.Timestamp = ts
	}
	return r, nil
}

// Delete supprime le hash et son entrée d'index.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, s.key(id)).Result()
	if err != nil {
		return fmt.Errorf("redis delete %s: %w", id, err)
	}
	_ = s.client.SRem(ctx, s.index(), id).Err()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
