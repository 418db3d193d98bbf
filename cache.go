package storyengine

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/eringen/storyengine/compose"
)

// TemplateCache holds the parsed master template. The file is re-read after
// the TTL expires, and sooner when its modification time changes. An empty
// path serves the embedded default template.
type TemplateCache struct {
	mu      sync.RWMutex
	tmpl    *compose.Template
	modTime time.Time
	fetched time.Time
	ttl     time.Duration
	path    string
	now     func() time.Time
}

// NewTemplateCache creates a TemplateCache for the file at path.
func NewTemplateCache(path string, ttl time.Duration) *TemplateCache {
	return &TemplateCache{path: path, ttl: ttl, now: time.Now}
}

func (c *TemplateCache) valid() bool {
	if c.tmpl == nil {
		return false
	}
	if c.path == "" {
		return true
	}
	return c.now().Sub(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *TemplateCache) Invalidate() {
	c.mu.Lock()
	c.tmpl = nil
	c.mu.Unlock()
}

func (c *TemplateCache) load() error {
	if c.valid() {
		return nil
	}
	if c.path == "" {
		t, err := compose.Parse(DefaultTemplate())
		if err != nil {
			return fmt.Errorf("parse embedded template: %w", err)
		}
		c.tmpl = t
		c.fetched = c.now()
		return nil
	}

	info, err := os.Stat(c.path)
	if err != nil {
		return fmt.Errorf("stat template %s: %w", c.path, err)
	}
	if c.tmpl != nil && info.ModTime().Equal(c.modTime) {
		c.fetched = c.now()
		return nil
	}
	src, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read template %s: %w", c.path, err)
	}
	t, err := compose.Parse(string(src))
	if err != nil {
		return fmt.Errorf("parse template %s: %w", c.path, err)
	}
	c.tmpl = t
	c.modTime = info.ModTime()
	c.fetched = c.now()
	return nil
}

// Get returns the current template, loading it when the cache is stale.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *TemplateCache) Get() (*compose.Template, error) {
	c.mu.RLock()
	if c.valid() {
		t := c.tmpl
		c.mu.RUnlock()
		return t, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(); err != nil {
		return nil, err
	}
	return c.tmpl, nil
}
