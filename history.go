package snapkv

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// history keeps recently committed versions reachable by id. Entries are
// not counted as references; a version only held here is not live.
type history struct {
	cache *lru.Cache
}

// newHistory returns nil when size is zero, which disables retention.
func newHistory(size int) (*history, error) {
	if size == 0 {
		return nil, nil
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("version history: %w", err)
	}
	return &history{cache: cache}, nil
}

func (h *history) add(v *version) {
	if h == nil {
		return
	}
	h.cache.Add(v.id, v)
}

func (h *history) get(id uint64) (*version, bool) {
	if h == nil {
		return nil, false
	}
	v, ok := h.cache.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*version), true
}

func (h *history) len() int {
	if h == nil {
		return 0
	}
	return h.cache.Len()
}

func (h *history) purge() {
	if h == nil {
		return
	}
	h.cache.Purge()
}
