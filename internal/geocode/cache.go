package geocode

import (
	"container/list"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/woozymasta/parcelmap/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Store keeps geocoding results keyed by normalized query.
type Store interface {
	Get(ctx context.Context, key string) ([]Result, bool, error)
	Set(ctx context.Context, key string, results []Result, ttl time.Duration) error
}

// Cached wraps a Geocoder with a result store.
// Identical lookups in flight at the same time share one upstream call.
type Cached struct {
	next  Geocoder
	store Store
	group singleflight.Group
	ttl   time.Duration
}

// NewCached creates a caching geocoder.
func NewCached(next Geocoder, store Store, ttl time.Duration) *Cached {
	return &Cached{next: next, store: store, ttl: ttl}
}

// Search serves from the store when possible and fills it otherwise.
// Store failures are logged and bypassed.
func (c *Cached) Search(ctx context.Context, query string) ([]Result, error) {
	key := normalize(query)

	if res, ok, err := c.store.Get(ctx, key); err != nil {
		log.Warn().Err(err).Msg("Geocode cache read failed")
	} else if ok {
		metrics.GeocodeRequestsTotal.WithLabelValues("cache_hit").Inc()
		return res, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		res, err := c.next.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(ctx, key, res, c.ttl); err != nil {
			log.Warn().Err(err).Msg("Geocode cache write failed")
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}

	return v.([]Result), nil
}

func normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// MemoryStore is an in-process LRU with per-entry expiry.
type MemoryStore struct {
	lst  *list.List
	dict map[string]*list.Element
	mu   sync.Mutex
	cap  int
}

type memEntry struct {
	exp time.Time
	k   string
	v   []Result
}

// NewMemoryStore creates an LRU holding at most capacity entries.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 256
	}

	return &MemoryStore{cap: capacity, lst: list.New(), dict: make(map[string]*list.Element)}
}

// Get returns a live entry and refreshes its recency.
func (m *MemoryStore) Get(_ context.Context, key string) ([]Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.dict[key]
	if !ok {
		return nil, false, nil
	}

	it := e.Value.(memEntry)
	if time.Now().After(it.exp) {
		m.lst.Remove(e)
		delete(m.dict, key)
		return nil, false, nil
	}

	m.lst.MoveToFront(e)
	return it.v, true, nil
}

// Set stores results and evicts the least recently used entries over capacity.
func (m *MemoryStore) Set(_ context.Context, key string, results []Result, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memEntry{k: key, v: results, exp: time.Now().Add(ttl)}
	if e, ok := m.dict[key]; ok {
		e.Value = entry
		m.lst.MoveToFront(e)
		return nil
	}

	m.dict[key] = m.lst.PushFront(entry)
	for m.lst.Len() > m.cap {
		back := m.lst.Back()
		delete(m.dict, back.Value.(memEntry).k)
		m.lst.Remove(back)
	}

	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lst.Len()
}

// RedisStore shares geocoding results between server instances.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore creates a store using keys under prefix.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// Get reads a JSON encoded result list.
func (r *RedisStore) Get(ctx context.Context, key string) ([]Result, bool, error) {
	data, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var res []Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false, err
	}

	return res, true, nil
}

// Set writes a JSON encoded result list with expiry.
func (r *RedisStore) Set(ctx context.Context, key string, results []Result, ttl time.Duration) error {
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}

	return r.rdb.Set(ctx, r.prefix+key, data, ttl).Err()
}
