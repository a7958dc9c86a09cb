package session

import (
	"sync"

	"github.com/scoboslor/player2/models"
)

// Cache maps lookup keys to parsed documents for the lifetime of the process.
// A nil document is a negative entry: looked up, confirmed absent.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*models.Document
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]*models.Document)}
}

// Get returns the cached document and whether the key was ever stored.
func (c *Cache) Get(key string) (*models.Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.entries[key]
	return doc, ok
}

func (c *Cache) Set(key string, doc *models.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = doc
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
