// Package routecache memoizes RouteResponses behind a two-tier cache: a
// bounded in-process LRU in front of an optional BadgerDB-backed
// persistent tier (§4.10). Safe to disable entirely: the engine always
// falls through to a real search on a miss, so caching only ever affects
// latency, never search outcomes (licensed by the Determinism testable
// property, §8.2).
package routecache

import (
	"container/list"
	"encoding/binary"
	"encoding/json"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Options configures the cache. Grounded on the teacher's BadgerOptions
// shape (pkg/storage/badger.go), trimmed to what a read-through cache
// needs.
type Options struct {
	// Enabled turns the whole cache on or off.
	Enabled bool

	// DataDir is the BadgerDB directory for the persistent tier. Empty
	// means "in-memory LRU only, no persistent tier".
	DataDir string

	// LRUSize bounds the in-process tier's entry count.
	LRUSize int

	// TTL bounds how long an entry stays valid in either tier after it
	// is written; zero means entries never expire on their own (they
	// remain subject to LRU eviction and, in the persistent tier, to
	// BadgerDB's own garbage collection only if a TTL is set).
	TTL time.Duration

	// Logger routes BadgerDB's internal logging; nil uses badger's default.
	Logger badger.Logger
}

// Cache is the two-tier route-result cache.
type Cache struct {
	opts Options

	mu    sync.Mutex
	lru   *list.List
	index map[string]*list.Element

	db *badger.DB // nil when DataDir is empty
}

type lruEntry struct {
	key       string
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e *lruEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Open constructs a Cache. If opts.Enabled is false, the returned Cache is
// a valid no-op: Get always misses, Put is a no-op.
func Open(opts Options) (*Cache, error) {
	c := &Cache{opts: opts, lru: list.New(), index: make(map[string]*list.Element)}
	if !opts.Enabled || opts.DataDir == "" {
		return c, nil
	}
	bopts := badger.DefaultOptions(opts.DataDir)
	if opts.Logger != nil {
		bopts = bopts.WithLogger(opts.Logger)
	} else {
		bopts = bopts.WithLogger(nil)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}
	c.db = db
	return c, nil
}

// Close releases the persistent tier, if any.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns a cached, JSON-decoded value for key and reports whether it
// was found. value must be a pointer.
func (c *Cache) Get(key string, value any) bool {
	if !c.opts.Enabled {
		return false
	}
	if raw, ok := c.getLRU(key); ok {
		return json.Unmarshal(raw, value) == nil
	}
	if c.db == nil {
		return false
	}
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			raw = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return false
	}
	c.putLRU(key, raw)
	return json.Unmarshal(raw, value) == nil
}

// Put stores value (JSON-encoded) under key in both tiers. If opts.TTL is
// set, the entry expires from both tiers after that duration: the LRU
// tier checks expiresAt on lookup, and the persistent tier relies on
// BadgerDB's own TTL enforcement (it returns a miss for an expired key
// without our needing to check expiry on read ourselves).
func (c *Cache) Put(key string, value any) {
	if !c.opts.Enabled {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.putLRU(key, raw)
	if c.db == nil {
		return
	}
	_ = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), raw)
		if c.opts.TTL > 0 {
			entry = entry.WithTTL(c.opts.TTL)
		}
		return txn.SetEntry(entry)
	})
}

func (c *Cache) getLRU(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*lruEntry)
	if entry.expired(time.Now()) {
		c.lru.Remove(el)
		delete(c.index, key)
		return nil, false
	}
	c.lru.MoveToFront(el)
	return entry.value, true
}

func (c *Cache) putLRU(key string, raw []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var expiresAt time.Time
	if c.opts.TTL > 0 {
		expiresAt = time.Now().Add(c.opts.TTL)
	}
	if el, ok := c.index[key]; ok {
		entry := el.Value.(*lruEntry)
		entry.value = raw
		entry.expiresAt = expiresAt
		c.lru.MoveToFront(el)
		return
	}
	el := c.lru.PushFront(&lruEntry{key: key, value: raw, expiresAt: expiresAt})
	c.index[key] = el
	if c.opts.LRUSize > 0 {
		for c.lru.Len() > c.opts.LRUSize {
			back := c.lru.Back()
			if back == nil {
				break
			}
			c.lru.Remove(back)
			delete(c.index, back.Value.(*lruEntry).key)
		}
	}
}

// Key builds the cache key for a route request (§4.10): a fixed 38-byte
// string packing start, goal, the requirements fingerprint, the weight
// bits and the surge/dive enabled flags. The seed is excluded, since
// distinct seeds may legitimately diversify the path; the other options
// and the families' charges and cooldowns are not part of the key either.
func Key(startX, startY, startPlane, goalX, goalY, goalPlane int32, requirementsFingerprint uint64, weightBits uint32, surgeOn, diveOn bool) string {
	var buf [38]byte
	binary.LittleEndian.PutUint32(buf[0:], uint32(startX))
	binary.LittleEndian.PutUint32(buf[4:], uint32(startY))
	binary.LittleEndian.PutUint32(buf[8:], uint32(startPlane))
	binary.LittleEndian.PutUint32(buf[12:], uint32(goalX))
	binary.LittleEndian.PutUint32(buf[16:], uint32(goalY))
	binary.LittleEndian.PutUint32(buf[20:], uint32(goalPlane))
	binary.LittleEndian.PutUint64(buf[24:], requirementsFingerprint)
	binary.LittleEndian.PutUint32(buf[32:], weightBits)
	if surgeOn {
		buf[36] = 1
	}
	if diveOn {
		buf[37] = 1
	}
	return string(buf[:38])
}
