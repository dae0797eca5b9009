package main

import (
	"sync"

	"pprof-blame/internal/profile"
)

// profileCache holds decoded profiles by the path they were loaded from.
type profileCache struct {
	mu       sync.Mutex
	profiles map[string]*profile.Profile
}

func newProfileCache() *profileCache {
	return &profileCache{profiles: make(map[string]*profile.Profile)}
}

func (c *profileCache) put(path string, p *profile.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles[path] = p
}

func (c *profileCache) get(path string) (*profile.Profile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.profiles[path]
	return p, ok
}
