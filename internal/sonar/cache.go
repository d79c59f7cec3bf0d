package sonar

import "sync"

// existsCache memoizes positive project-existence lookups for the run.
// Only presence is cached: absence flips to presence after a create, but
// presence never flips back.
type existsCache struct {
	data sync.Map
}

func newExistsCache() *existsCache {
	return &existsCache{}
}

func (c *existsCache) has(key string) bool {
	_, ok := c.data.Load(key)
	return ok
}

func (c *existsCache) put(key string) {
	c.data.Store(key, struct{}{})
}
