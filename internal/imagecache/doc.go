// Package imagecache stores rendered formula bitmaps by cache key.
//
// Three tiers are provided and can be stacked with Tiered:
//   - Memory: bounded LRU, dropped on memory pressure
//   - Disk: one file per key under a directory
//   - Redis: shared cache with a TTL
//
// Every tier is safe for concurrent use. Tier failures are logged and treated
// as misses; callers never see cache errors.
package imagecache

// Cache is the key to encoded-bitmap store consumed by the render manager.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte)
	// ClearMemory drops in-memory entries. Persistent tiers ignore it.
	ClearMemory()
}
