package routecache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fixture struct {
	CostMS uint32 `json:"cost_ms"`
}

func TestDisabledCacheAlwaysMisses(t *testing.T) {
	c, err := Open(Options{Enabled: false})
	assert.NoError(t, err)
	defer c.Close()

	c.Put("k", fixture{CostMS: 100})
	var out fixture
	assert.False(t, c.Get("k", &out))
}

func TestLRUOnlyHitsAfterPut(t *testing.T) {
	c, err := Open(Options{Enabled: true, LRUSize: 10})
	assert.NoError(t, err)
	defer c.Close()

	var out fixture
	assert.False(t, c.Get("missing", &out))

	c.Put("k1", fixture{CostMS: 1200})
	assert.True(t, c.Get("k1", &out))
	assert.Equal(t, uint32(1200), out.CostMS)
}

func TestLRUEvictsOldestBeyondCapacity(t *testing.T) {
	c, err := Open(Options{Enabled: true, LRUSize: 2})
	assert.NoError(t, err)
	defer c.Close()

	c.Put("a", fixture{CostMS: 1})
	c.Put("b", fixture{CostMS: 2})
	c.Put("c", fixture{CostMS: 3}) // evicts "a", the least recently used

	var out fixture
	assert.False(t, c.Get("a", &out))
	assert.True(t, c.Get("b", &out))
	assert.True(t, c.Get("c", &out))
}

func TestPersistentTierSurvivesLRUEviction(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(Options{Enabled: true, DataDir: filepath.Join(dir, "cache"), LRUSize: 1})
	assert.NoError(t, err)
	defer c.Close()

	c.Put("a", fixture{CostMS: 10})
	c.Put("b", fixture{CostMS: 20}) // evicts "a" from the LRU tier only

	var out fixture
	assert.True(t, c.Get("a", &out), "persistent tier must still serve an LRU-evicted key")
	assert.Equal(t, uint32(10), out.CostMS)
}

func TestLRUEntryExpiresAfterTTL(t *testing.T) {
	c, err := Open(Options{Enabled: true, LRUSize: 10, TTL: 10 * time.Millisecond})
	assert.NoError(t, err)
	defer c.Close()

	c.Put("a", fixture{CostMS: 1})
	var out fixture
	assert.True(t, c.Get("a", &out), "entry should still be fresh immediately after Put")

	time.Sleep(25 * time.Millisecond)
	assert.False(t, c.Get("a", &out), "entry must expire once its TTL has elapsed")
}

func TestKeyExcludesSeedButIncludesQueryShape(t *testing.T) {
	k1 := Key(0, 0, 0, 10, 10, 0, 0xABCD, 0, true, false)
	k2 := Key(0, 0, 0, 10, 10, 0, 0xABCD, 0, true, false)
	assert.Equal(t, k1, k2, "identical queries must hash to the same key")

	k3 := Key(0, 0, 0, 10, 10, 0, 0xABCD, 0, false, false)
	assert.NotEqual(t, k1, k3, "differing surge flag must change the key")
}
