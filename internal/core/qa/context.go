package qa

import (
	"sync"
	"time"
)

// Context holds the merged text of the most recently completed batch.
// One writer (the batch aggregator) and any number of readers.
type Context struct {
	mu        sync.RWMutex
	text      string
	batchID   string
	version   uint64
	updatedAt time.Time
}

func NewContext() *Context { return &Context{} }

// Replace swaps in the merged text of batchID.
func (c *Context) Replace(batchID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
	c.batchID = batchID
	c.version++
	c.updatedAt = time.Now()
}

// Snapshot is a consistent copy of the context at one version.
type Snapshot struct {
	Text      string
	BatchID   string
	Version   uint64
	UpdatedAt time.Time
}

func (c *Context) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{Text: c.text, BatchID: c.batchID, Version: c.version, UpdatedAt: c.updatedAt}
}
