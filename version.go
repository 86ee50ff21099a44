package snapkv

import (
	"sync/atomic"
	"time"

	"github.com/jrhy/snapkv/pmap"
)

// version is an immutable committed state. The parent is recorded by id
// so a version never keeps its predecessors reachable.
type version struct {
	id          uint64
	parent      uint64
	data        pmap.Map
	committedAt time.Time
	// refs counts the current-version slot plus open transactions.
	refs atomic.Int64
}

func newVersion(id, parent uint64, data pmap.Map) *version {
	return &version{
		id:          id,
		parent:      parent,
		data:        data,
		committedAt: time.Now(),
	}
}

func (v *version) acquire(live *atomic.Int64) {
	if v.refs.Add(1) == 1 {
		live.Add(1)
	}
}

func (v *version) release(live *atomic.Int64) {
	switch n := v.refs.Add(-1); {
	case n == 0:
		live.Add(-1)
	case n < 0:
		panic("snapkv: version released more times than acquired")
	}
}
