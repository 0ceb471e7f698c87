package imagecache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoryEntries bounds the memory tier when no size is configured.
const DefaultMemoryEntries = 512

// Memory is an LRU-bounded in-memory tier.
type Memory struct {
	entries *lru.Cache[string, []byte]
}

// NewMemory creates a memory tier holding at most size entries.
// A size <= 0 uses DefaultMemoryEntries.
func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	entries, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("creating memory cache: %w", err)
	}
	return &Memory{entries: entries}, nil
}

// Get returns the entry for key.
func (m *Memory) Get(key string) ([]byte, bool) {
	return m.entries.Get(key)
}

// Put stores data under key, evicting the least recently used entry when full.
func (m *Memory) Put(key string, data []byte) {
	if len(data) == 0 {
		return
	}
	m.entries.Add(key, data)
}

// ClearMemory drops every entry.
func (m *Memory) ClearMemory() {
	m.entries.Purge()
}

// Len returns the number of cached entries.
func (m *Memory) Len() int {
	return m.entries.Len()
}

var _ Cache = (*Memory)(nil)
