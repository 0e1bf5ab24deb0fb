package nametag

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	pcommon "github.com/ethpandaops/structlog-decoder/pkg/common"
)

// Unknown is cached for addresses whose lookup found no name, so the lookup
// is not repeated.
const Unknown = "unknown"

// Cache remembers resolved contract names. The zero value is not usable; use
// NewCache. A nil store keeps the cache in memory only.
type Cache struct {
	log   logrus.FieldLogger
	store Store

	mu    sync.RWMutex
	names map[common.Address]string
	// version counts changes; saved is the version last written to the store.
	version uint64
	saved   uint64
}

func NewCache(log logrus.FieldLogger, store Store) *Cache {
	return &Cache{
		log:   log.WithField("component", "nametag_cache"),
		store: store,
		names: make(map[common.Address]string),
	}
}

func (c *Cache) storeName() string {
	if c.store == nil {
		return "memory"
	}

	return c.store.Name()
}

// Load merges the persisted entries into the cache. Entries already held in
// memory win.
func (c *Cache) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	names, err := c.store.Load(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, name := range names {
		if !common.IsHexAddress(key) {
			c.log.WithField("key", key).Warn("Skipping invalid name cache entry")

			continue
		}

		addr := common.HexToAddress(key)
		if _, ok := c.names[addr]; !ok {
			c.names[addr] = name
		}
	}

	pcommon.NameCacheEntries.WithLabelValues(c.storeName()).Set(float64(len(c.names)))

	c.log.WithField("entries", len(c.names)).Debug("Loaded name cache")

	return nil
}

// Save writes the cache to its store when it changed since the last save.
func (c *Cache) Save(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	c.mu.RLock()

	if c.version == c.saved {
		c.mu.RUnlock()

		return nil
	}

	version := c.version

	names := make(map[string]string, len(c.names))
	for addr, name := range c.names {
		names[addr.Hex()] = name
	}

	c.mu.RUnlock()

	if err := c.store.Save(ctx, names); err != nil {
		pcommon.NameCacheFlushes.WithLabelValues(c.storeName(), "error").Inc()

		return err
	}

	c.mu.Lock()
	if version > c.saved {
		c.saved = version
	}
	c.mu.Unlock()

	pcommon.NameCacheFlushes.WithLabelValues(c.storeName(), "success").Inc()

	return nil
}

func (c *Cache) Get(addr common.Address) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	name, ok := c.names[addr]

	return name, ok
}

func (c *Cache) Set(addr common.Address, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.names[addr]; ok && existing == name {
		return
	}

	c.names[addr] = name
	c.version++

	pcommon.NameCacheEntries.WithLabelValues(c.storeName()).Set(float64(len(c.names)))
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.names)
}
