package imagecache

// Tiered reads through tiers in order and writes to all of them.
// A hit in a lower tier is copied into the tiers above it.
type Tiered struct {
	tiers []Cache
}

// NewTiered stacks tiers, fastest first. Nil tiers are skipped.
func NewTiered(tiers ...Cache) *Tiered {
	t := &Tiered{tiers: make([]Cache, 0, len(tiers))}
	for _, c := range tiers {
		if c != nil {
			t.tiers = append(t.tiers, c)
		}
	}
	return t
}

// Get returns the first hit and back-fills faster tiers.
func (t *Tiered) Get(key string) ([]byte, bool) {
	for i, c := range t.tiers {
		data, ok := c.Get(key)
		if !ok {
			continue
		}
		for j := 0; j < i; j++ {
			t.tiers[j].Put(key, data)
		}
		return data, true
	}
	return nil, false
}

// Put writes data to every tier.
func (t *Tiered) Put(key string, data []byte) {
	for _, c := range t.tiers {
		c.Put(key, data)
	}
}

// ClearMemory forwards to every tier.
func (t *Tiered) ClearMemory() {
	for _, c := range t.tiers {
		c.ClearMemory()
	}
}

// Len returns the number of tiers.
func (t *Tiered) Len() int {
	return len(t.tiers)
}

var _ Cache = (*Tiered)(nil)
