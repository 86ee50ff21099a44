package snapkv

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/jrhy/snapkv/changefeed"
	"github.com/jrhy/snapkv/pmap"
)

// DB is an in-memory multi-version key-value store. It is safe for
// concurrent use.
type DB struct {
	opts    options
	log     zerolog.Logger
	current atomic.Pointer[version]
	// gate admits one write transaction at a time.
	gate    chan struct{}
	history *history
	feed    *changefeed.Feed
	metrics *metrics
	closed  atomic.Bool

	nextTxID      atomic.Uint64
	commits       atomic.Uint64
	rollbacks     atomic.Uint64
	contention    atomic.Uint64
	feedErrors    atomic.Uint64
	activeReaders atomic.Int64
	activeWriters atomic.Int64
	liveVersions  atomic.Int64
}

// Stats is a point-in-time summary of a DB.
type Stats struct {
	CurrentVersion   uint64
	Size             int
	Commits          uint64
	Rollbacks        uint64
	WriteContention  uint64
	ChangeFeedErrors uint64
	ActiveReaders    int64
	ActiveWriters    int64
	LiveVersions     int64
	RetainedVersions int
}

// Open creates an empty database at version 0.
func Open(opts ...Option) (*DB, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db := &DB{
		opts: o,
		log:  o.logger,
		gate: make(chan struct{}, 1),
	}
	var err error
	if db.history, err = newHistory(o.retainVersions); err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	if o.feedPublisher != nil {
		if db.feed, err = changefeed.New(o.feedPublisher, o.feedTopic); err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
	}
	db.metrics = newMetrics(db)
	if o.registerer != nil {
		if err := db.metrics.register(o.registerer); err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
	}

	empty := pmap.New()
	if o.branchFactor != 0 {
		empty = pmap.NewWithOptions(&pmap.Options{BranchFactor: o.branchFactor})
	}
	v0 := newVersion(0, 0, empty)
	v0.acquire(&db.liveVersions)
	db.current.Store(v0)
	db.history.add(v0)
	db.log.Debug().
		Str("write_policy", o.writePolicy.String()).
		Uint("branch_factor", empty.BranchFactor()).
		Int("retain_versions", o.retainVersions).
		Msg("opened")
	return db, nil
}

// CurrentVersion returns the id of the most recently published version.
// Ids increase by one with every commit that changes the data.
func (db *DB) CurrentVersion() uint64 {
	return db.current.Load().id
}

// BeginRead starts a read-only transaction on the current version. It
// never blocks.
func (db *DB) BeginRead() (*Tx, error) {
	if db.closed.Load() {
		return nil, ErrDatabaseClosed
	}
	return db.beginRead(db.current.Load()), nil
}

// BeginReadAt starts a read-only transaction on a retained version.
func (db *DB) BeginReadAt(id uint64) (*Tx, error) {
	if db.closed.Load() {
		return nil, ErrDatabaseClosed
	}
	if cur := db.current.Load(); cur.id == id {
		return db.beginRead(cur), nil
	}
	v, ok := db.history.get(id)
	if !ok {
		return nil, fmt.Errorf("version %d: %w", id, ErrVersionUnavailable)
	}
	return db.beginRead(v), nil
}

func (db *DB) beginRead(v *version) *Tx {
	v.acquire(&db.liveVersions)
	db.activeReaders.Add(1)
	tx := &Tx{
		id:       db.nextTxID.Add(1),
		db:       db,
		snapshot: v,
		working:  v.data,
	}
	runtime.SetFinalizer(tx, (*Tx).abandoned)
	db.log.Debug().Uint64("tx", tx.id).Uint64("version", v.id).Str("mode", "read").Msg("begin")
	return tx
}

// BeginWrite starts the write transaction, waiting for the write gate as
// the WritePolicy dictates.
func (db *DB) BeginWrite(ctx context.Context) (*Tx, error) {
	if db.closed.Load() {
		return nil, ErrDatabaseClosed
	}
	start := time.Now()
	if err := db.acquireWriter(ctx); err != nil {
		db.contention.Add(1)
		db.log.Warn().Err(err).Str("write_policy", db.opts.writePolicy.String()).
			Dur("waited", time.Since(start)).Msg("write gate not acquired")
		return nil, err
	}
	db.metrics.writeWait.Observe(time.Since(start).Seconds())
	if db.closed.Load() {
		<-db.gate
		return nil, ErrDatabaseClosed
	}

	// Holding the gate, nobody else can publish, so current is stable.
	v := db.current.Load()
	v.acquire(&db.liveVersions)
	db.activeWriters.Add(1)
	tx := &Tx{
		id:       db.nextTxID.Add(1),
		db:       db,
		writable: true,
		snapshot: v,
		working:  v.data,
	}
	runtime.SetFinalizer(tx, (*Tx).abandoned)
	db.log.Debug().Uint64("tx", tx.id).Uint64("version", v.id).Str("mode", "write").Msg("begin")
	return tx, nil
}

func (db *DB) acquireWriter(ctx context.Context) error {
	select {
	case db.gate <- struct{}{}:
		return nil
	default:
	}
	switch db.opts.writePolicy {
	case FailFast:
		return ErrWriteContention
	case Timeout:
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, db.opts.writeTimeout)
		defer cancel()
	}
	select {
	case db.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrWriteContention, ctx.Err())
	}
}

// publish makes next the current version. The caller holds the gate and
// prev is the current version.
func (db *DB) publish(prev, next *version) {
	next.acquire(&db.liveVersions)
	db.current.Store(next)
	prev.release(&db.liveVersions)
	db.history.add(next)
	db.commits.Add(1)
	if db.feed != nil {
		db.publishChanges(prev, next)
	}
}

func (db *DB) publishChanges(prev, next *version) {
	ev := changefeed.Event{Version: next.id, Parent: prev.id}
	err := next.data.DiffIter(prev.data, func(added, removed bool, key, addedValue, removedValue []byte) (bool, error) {
		c := changefeed.Change{Key: key}
		if added {
			c.Op = changefeed.OpPut
			c.Value = addedValue
		} else {
			c.Op = changefeed.OpDelete
		}
		if removed {
			c.Previous = removedValue
		}
		ev.Changes = append(ev.Changes, c)
		return true, nil
	})
	if err == nil {
		err = db.feed.Publish(ev)
	}
	if err != nil {
		db.feedErrors.Add(1)
		db.log.Warn().Err(err).Uint64("version", next.id).Str("topic", db.feed.Topic()).
			Msg("change feed publish failed")
	}
}

// Stats returns counters describing the database.
func (db *DB) Stats() Stats {
	cur := db.current.Load()
	return Stats{
		CurrentVersion:   cur.id,
		Size:             cur.data.Len(),
		Commits:          db.commits.Load(),
		Rollbacks:        db.rollbacks.Load(),
		WriteContention:  db.contention.Load(),
		ChangeFeedErrors: db.feedErrors.Load(),
		ActiveReaders:    db.activeReaders.Load(),
		ActiveWriters:    db.activeWriters.Load(),
		LiveVersions:     db.liveVersions.Load(),
		RetainedVersions: db.history.len(),
	}
}

// Close prevents new transactions from starting. Open transactions remain
// usable until they end. The change feed publisher is not closed.
func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return ErrDatabaseClosed
	}
	db.history.purge()
	if db.opts.registerer != nil {
		db.metrics.unregister(db.opts.registerer)
	}
	db.log.Debug().Uint64("version", db.CurrentVersion()).Msg("closed")
	return nil
}

// View runs fn in a read-only transaction, which is always ended when fn
// returns.
func (db *DB) View(fn func(*Tx) error) error {
	tx, err := db.BeginRead()
	if err != nil {
		return err
	}
	defer func() {
		if !tx.Closed() {
			_ = tx.Commit()
		}
	}()
	return fn(tx)
}

// Update runs fn in a write transaction and commits it if fn returns nil.
// If fn fails or panics the transaction is rolled back.
func (db *DB) Update(ctx context.Context, fn func(*Tx) error) error {
	tx, err := db.BeginWrite(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if !tx.Closed() {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
