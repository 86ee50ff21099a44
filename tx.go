package snapkv

import (
	"bytes"
	"runtime"
	"sync/atomic"

	"github.com/jrhy/snapkv/pmap"
)

const (
	txActive uint32 = iota
	txCommitted
	txRolledBack
)

// Tx is a transaction. A read-only Tx sees the version that was current
// when it began; a writable Tx additionally sees its own changes. A Tx
// must not be used by multiple goroutines at once.
type Tx struct {
	id       uint64
	db       *DB
	writable bool
	snapshot *version
	working  pmap.Map
	state    atomic.Uint32
}

// KeyValue is one entry returned by Scan.
type KeyValue struct {
	Key   []byte
	Value []byte
}

// ID identifies the transaction in log output. It is unique per DB.
func (tx *Tx) ID() uint64 {
	return tx.id
}

// Version returns the id of the version the transaction started from.
func (tx *Tx) Version() uint64 {
	return tx.snapshot.id
}

// Writable reports whether the transaction was started by BeginWrite.
func (tx *Tx) Writable() bool {
	return tx.writable
}

// Closed reports whether Commit or Rollback has ended the transaction.
func (tx *Tx) Closed() bool {
	return tx.state.Load() != txActive
}

func (tx *Tx) check(write bool) error {
	if tx.Closed() {
		return ErrTxClosed
	}
	if write && !tx.writable {
		return ErrTxNotWritable
	}
	return nil
}

// Get returns a copy of the value stored under key.
func (tx *Tx) Get(key []byte) ([]byte, bool, error) {
	if err := tx.check(false); err != nil {
		return nil, false, err
	}
	v, ok := tx.working.Get(key)
	if !ok {
		return nil, false, nil
	}
	return copyBytes(v), true, nil
}

// Exists reports whether key is present.
func (tx *Tx) Exists(key []byte) (bool, error) {
	if err := tx.check(false); err != nil {
		return false, err
	}
	return tx.working.Has(key), nil
}

// Set stores value under key, replacing any previous value.
func (tx *Tx) Set(key, value []byte) error {
	if err := tx.check(true); err != nil {
		return err
	}
	tx.working = tx.working.Set(key, value)
	return nil
}

// Put stores value under key only if key is absent.
func (tx *Tx) Put(key, value []byte) error {
	if err := tx.check(true); err != nil {
		return err
	}
	if tx.working.Has(key) {
		return ErrKeyAlreadyExists
	}
	tx.working = tx.working.Set(key, value)
	return nil
}

// Putc stores value under key if the current value equals check. A nil
// check requires the key to be absent.
func (tx *Tx) Putc(key, value, check []byte) error {
	if err := tx.check(true); err != nil {
		return err
	}
	if !tx.matches(key, check) {
		return ErrValNotExpectedValue
	}
	tx.working = tx.working.Set(key, value)
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (tx *Tx) Delete(key []byte) error {
	if err := tx.check(true); err != nil {
		return err
	}
	tx.working, _ = tx.working.Delete(key)
	return nil
}

// Delc removes key if its value equals check. A nil check requires the
// key to be absent, which makes the call a no-op.
func (tx *Tx) Delc(key, check []byte) error {
	if err := tx.check(true); err != nil {
		return err
	}
	if !tx.matches(key, check) {
		return ErrValNotExpectedValue
	}
	tx.working, _ = tx.working.Delete(key)
	return nil
}

func (tx *Tx) matches(key, check []byte) bool {
	v, ok := tx.working.Get(key)
	if check == nil {
		return !ok
	}
	return ok && bytes.Equal(v, check)
}

// Scan returns copies of the entries in [lo, hi) in ascending key order,
// at most limit of them when limit is positive. A limit of zero or less
// means no limit, not an empty result. Nil bounds are open.
func (tx *Tx) Scan(lo, hi []byte, limit int) ([]KeyValue, error) {
	if err := tx.check(false); err != nil {
		return nil, err
	}
	var kvs []KeyValue
	for it := tx.working.Range(lo, hi); it.Next(); {
		if limit > 0 && len(kvs) == limit {
			break
		}
		kvs = append(kvs, KeyValue{Key: copyBytes(it.Key()), Value: copyBytes(it.Value())})
	}
	return kvs, nil
}

// Keys is like Scan but returns only the keys. As with Scan, a limit of
// zero or less means no limit.
func (tx *Tx) Keys(lo, hi []byte, limit int) ([][]byte, error) {
	if err := tx.check(false); err != nil {
		return nil, err
	}
	var keys [][]byte
	for it := tx.working.Range(lo, hi); it.Next(); {
		if limit > 0 && len(keys) == limit {
			break
		}
		keys = append(keys, copyBytes(it.Key()))
	}
	return keys, nil
}

// Iterator walks [lo, hi) of the transaction's current view. The iterator
// is unaffected by later writes in this or any other transaction. Keys and
// values it returns must not be modified.
func (tx *Tx) Iterator(lo, hi []byte) (*pmap.Iterator, error) {
	if err := tx.check(false); err != nil {
		return nil, err
	}
	return tx.working.Range(lo, hi), nil
}

// Commit ends the transaction. For a writable transaction with changes it
// publishes the working map as the next version; readers that began
// earlier keep their snapshot.
func (tx *Tx) Commit() error {
	if err := tx.check(false); err != nil {
		return err
	}
	db := tx.db
	if !tx.writable {
		if !tx.state.CompareAndSwap(txActive, txCommitted) {
			return ErrTxClosed
		}
		tx.release()
		db.log.Debug().Uint64("tx", tx.id).Uint64("version", tx.snapshot.id).Str("mode", "read").Msg("commit")
		return nil
	}
	if db.opts.paranoid {
		if err := tx.working.Validate(); err != nil {
			_ = tx.Rollback()
			db.log.Error().Err(err).Uint64("tx", tx.id).Msg("working map failed validation")
			return err
		}
	}
	if !tx.state.CompareAndSwap(txActive, txCommitted) {
		return ErrTxClosed
	}
	defer tx.release()

	prev := tx.snapshot
	if tx.working.SameRoot(prev.data) {
		db.log.Debug().Uint64("tx", tx.id).Uint64("version", prev.id).Msg("commit without changes")
		return nil
	}
	if cur := db.current.Load(); cur != prev {
		// Only the gate holder publishes.
		panic("snapkv: current version changed while the write gate was held")
	}
	next := newVersion(prev.id+1, prev.id, tx.working)
	db.publish(prev, next)
	db.log.Debug().Uint64("tx", tx.id).Uint64("version", next.id).Uint64("parent", prev.id).
		Int("size", next.data.Len()).Msg("commit")
	return nil
}

// Rollback discards the transaction's changes and ends it.
func (tx *Tx) Rollback() error {
	if !tx.state.CompareAndSwap(txActive, txRolledBack) {
		return ErrTxClosed
	}
	tx.release()
	if tx.writable {
		tx.db.rollbacks.Add(1)
	}
	tx.db.log.Debug().Uint64("tx", tx.id).Uint64("version", tx.snapshot.id).Bool("writable", tx.writable).Msg("rollback")
	return nil
}

func (tx *Tx) release() {
	runtime.SetFinalizer(tx, nil)
	db := tx.db
	tx.snapshot.release(&db.liveVersions)
	tx.working = pmap.Map{}
	if tx.writable {
		db.activeWriters.Add(-1)
		<-db.gate
	} else {
		db.activeReaders.Add(-1)
	}
}

// abandoned runs when an unreachable transaction was never ended.
func (tx *Tx) abandoned() {
	if tx.Closed() {
		return
	}
	if tx.writable {
		tx.db.log.Warn().Uint64("tx", tx.id).Uint64("version", tx.snapshot.id).
			Msg("write transaction abandoned without commit or rollback")
	}
	_ = tx.Rollback()
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
