// Package statecache is a bbolt-backed accelerator for wsv restarts: a
// transaction-hash-to-height index and a per-trigger inverse-mutation
// journal. It is never a source of truth — chain validity is always
// re-derived from kura on restart (§9 Design Notes) — it records commit
// heights and what a trigger's last action touched so they can be looked up
// without a live World. A node still replays the full chain on start.
//
// Adapted from the teacher's node/store bbolt bucket layout
// (bucketIndex/bucketUndo in node/store/db.go), generalised from its
// block-index/undo-record pair to a tx-height index and a trigger-mutation
// journal.
package statecache

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"kintsugi.dev/node/block"
	"kintsugi.dev/node/hash"
)

var (
	bucketTxHeight    = []byte("tx_height_by_hash")
	bucketTriggerUndo = []byte("trigger_undo_by_id")
)

// Path is the conventional statecache file location under a node's data
// directory.
func Path(dataDir string) string {
	return filepath.Join(dataDir, "statecache.db")
}

// DB is the opened cache handle.
type DB struct {
	db *bolt.DB
}

// Open opens (creating if absent) the cache database at path.
func Open(path string) (*DB, error) {
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("statecache: open: %w", err)
	}
	d := &DB{db: bdb}
	if err := d.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketTxHeight, bucketTriggerUndo} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("statecache: create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// PutTxHeight records that txHash committed at height.
func (d *DB) PutTxHeight(txHash hash.Hash[hash.Tx], height uint64) error {
	var val [8]byte
	binary.LittleEndian.PutUint64(val[:], height)
	key := txHash.Bytes()
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTxHeight).Put(key, val[:])
	})
}

// TxHeight looks up a previously recorded commit height.
func (d *DB) TxHeight(txHash hash.Hash[hash.Tx]) (uint64, bool, error) {
	var height uint64
	var ok bool
	key := txHash.Bytes()
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTxHeight).Get(key)
		if v == nil {
			return nil
		}
		if len(v) != 8 {
			return fmt.Errorf("statecache: corrupt tx height record for %x", key)
		}
		height = binary.LittleEndian.Uint64(v)
		ok = true
		return nil
	})
	return height, ok, err
}

// MutationLog is the inverse-mutation journal for one trigger firing:
// enough to know what a trigger's last successful action touched, without
// needing to replay block history to answer "what did trigger X last do."
// It is advisory only — World.restoreFrom already provides the actual
// correctness guarantee for same-block rollback; this just survives restart.
type MutationLog struct {
	TriggerId  block.TriggerId
	AtHeight   uint64
	Targets    []string // stringified entity ids the action mutated
}

func encodeMutationLog(m MutationLog) []byte {
	out := make([]byte, 0, 64)
	var heightBuf [8]byte
	binary.LittleEndian.PutUint64(heightBuf[:], m.AtHeight)
	out = append(out, heightBuf[:]...)
	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(m.Targets)))
	out = append(out, countBuf[:]...)
	for _, t := range m.Targets {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(t)))
		out = append(out, lenBuf[:]...)
		out = append(out, t...)
	}
	return out
}

func decodeMutationLog(id block.TriggerId, b []byte) (MutationLog, error) {
	if len(b) < 12 {
		return MutationLog{}, fmt.Errorf("statecache: truncated mutation log for %s", id)
	}
	height := binary.LittleEndian.Uint64(b[0:8])
	count := binary.LittleEndian.Uint32(b[8:12])
	off := 12
	targets := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		if off+4 > len(b) {
			return MutationLog{}, fmt.Errorf("statecache: truncated mutation log target length for %s", id)
		}
		n := int(binary.LittleEndian.Uint32(b[off : off+4]))
		off += 4
		if off+n > len(b) {
			return MutationLog{}, fmt.Errorf("statecache: truncated mutation log target for %s", id)
		}
		targets = append(targets, string(b[off:off+n]))
		off += n
	}
	return MutationLog{TriggerId: id, AtHeight: height, Targets: targets}, nil
}

// PutTriggerUndo records m, overwriting any prior entry for m.TriggerId —
// only the most recent firing's targets are kept.
func (d *DB) PutTriggerUndo(m MutationLog) error {
	val := encodeMutationLog(m)
	return d.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTriggerUndo).Put([]byte(m.TriggerId), val)
	})
}

// TriggerUndo looks up the most recently recorded mutation log for id.
func (d *DB) TriggerUndo(id block.TriggerId) (MutationLog, bool, error) {
	var out MutationLog
	var ok bool
	err := d.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketTriggerUndo).Get([]byte(id))
		if v == nil {
			return nil
		}
		m, err := decodeMutationLog(id, v)
		if err != nil {
			return err
		}
		out = m
		ok = true
		return nil
	})
	return out, ok, err
}
