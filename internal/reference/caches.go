package reference

import (
	"strconv"
	"sync"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// Caches holds the reference data resolved during one migration run. Create
// one per run and share it between pages.
type Caches struct {
	mu          sync.RWMutex
	typeIDs     map[int64]string
	terms       []Term
	termsLoaded bool

	timelines *cache.Cache
	groups    *cache.Cache
	flight    singleflight.Group
}

// NewCaches returns empty caches. Entries never expire.
func NewCaches() *Caches {
	return &Caches{
		timelines: cache.New(cache.NoExpiration, 0),
		groups:    cache.New(cache.NoExpiration, 0),
	}
}

func (c *Caches) typeMapping() (map[int64]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.typeIDs, c.typeIDs != nil
}

func (c *Caches) setTypeMapping(m map[int64]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typeIDs = m
}

func (c *Caches) termList() ([]Term, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.terms, c.termsLoaded
}

func (c *Caches) setTerms(terms []Term) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.terms, c.termsLoaded = terms, true
}

func (c *Caches) timeline(typeID string) (Timeline, bool) {
	v, ok := c.timelines.Get(typeID)
	if !ok {
		return Timeline{}, false
	}
	return v.(Timeline), true
}

// group returns the cached new id of a legacy group. An empty id is a cached
// "not found" answer.
func (c *Caches) group(legacyID int64) (string, bool) {
	v, ok := c.groups.Get(groupKey(legacyID))
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (c *Caches) setGroup(legacyID int64, id string) {
	c.groups.Set(groupKey(legacyID), id, cache.NoExpiration)
}

func groupKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Stats reports cache sizes.
type Stats struct {
	Types     int
	Timelines int
	Terms     int
	Groups    int
}

// Stats returns the current cache sizes.
func (c *Caches) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Types:     len(c.typeIDs),
		Timelines: c.timelines.ItemCount(),
		Terms:     len(c.terms),
		Groups:    c.groups.ItemCount(),
	}
}
