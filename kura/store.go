// Package kura implements the append-only, crash-safe block store described
// in §4.2: three parallel files (data, index, hashes) in one directory plus
// a lock file, and the fast/strict recovery protocol that reconciles them
// after an unclean shutdown.
package kura

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"kintsugi.dev/node/block"
	"kintsugi.dev/node/hash"
)

const (
	indexRecordSize = 16 // start u64 LE + length u64 LE
	hashRecordSize  = hash.Size

	dataFileName   = "blocks.data"
	indexFileName  = "blocks.index"
	hashesFileName = "blocks.hashes"
	lockFileName   = "LOCK"
)

// StorePath is the conventional block-store directory under a node's data
// directory.
func StorePath(dataDir string) string {
	return filepath.Join(dataDir, "blockstore")
}

// Store is a single writer's handle on the on-disk block sequence. All file
// operations serialise behind mu — the single "store-io mutex" of §5.
type Store struct {
	dir string

	dataPath   string
	indexPath  string
	hashesPath string
	lockPath   string

	data   *os.File
	index  *os.File
	hashes *os.File
	lock   *os.File

	mu sync.Mutex

	// blockCount and dataEnd are the authoritative cursors used by Append:
	// Append always writes at blockCount (== len(hashes) after Init), never
	// at len(index)/16, so a stale index tail beyond a strict-recovered
	// prefix is simply never read again (see SPEC_FULL §9 open question 2).
	blockCount int
	dataEnd    uint64

	log zerolog.Logger
}

// Open acquires the store's lock file exclusively and opens (creating if
// absent) the three data files. It does not run recovery; call Init for
// that.
func Open(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, ioErr(dir, "mkdir", err)
	}

	lockPath := filepath.Join(dir, lockFileName)
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, &Error{Code: ErrLocked, Path: lockPath, Msg: "block store is locked by another writer"}
		}
		return nil, ioErr(lockPath, "create lock", err)
	}
	if _, err := lockFile.WriteString("kura\n"); err != nil {
		_ = lockFile.Close()
		_ = os.Remove(lockPath)
		return nil, ioErr(lockPath, "write lock contents", err)
	}

	s := &Store{
		dir:        dir,
		dataPath:   filepath.Join(dir, dataFileName),
		indexPath:  filepath.Join(dir, indexFileName),
		hashesPath: filepath.Join(dir, hashesFileName),
		lockPath:   lockPath,
		lock:       lockFile,
		log:        log,
	}

	if s.data, err = openRW(s.dataPath); err != nil {
		_ = s.dropLockLocked()
		return nil, err
	}
	if s.index, err = openRW(s.indexPath); err != nil {
		_ = s.dropLockLocked()
		return nil, err
	}
	if s.hashes, err = openRW(s.hashesPath); err != nil {
		_ = s.dropLockLocked()
		return nil, err
	}

	return s, nil
}

func openRW(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, ioErr(path, "open", err)
	}
	return f, nil
}

// Close releases file handles and removes the lock file (drop_lock, §4.2).
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropLockLocked()
}

func (s *Store) dropLockLocked() error {
	var firstErr error
	for _, f := range []*os.File{s.data, s.index, s.hashes} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.lock != nil {
		_ = s.lock.Close()
		if err := os.Remove(s.lockPath); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// writeAtGrow extends the file with Truncate when the write would run past
// the current end, then writes at offset — mirroring §4.2's "Each write
// extends the file by set_len when necessary, then seeks and writes."
func writeAtGrow(f *os.File, path string, offset uint64, data []byte) error {
	needed := offset + uint64(len(data))
	info, err := f.Stat()
	if err != nil {
		return ioErr(path, "stat", err)
	}
	if uint64(info.Size()) < needed {
		if err := f.Truncate(int64(needed)); err != nil {
			return ioErr(path, "extend", err)
		}
	}
	if _, err := f.WriteAt(data, int64(offset)); err != nil {
		return ioErr(path, "write", err)
	}
	return nil
}

func readAtExact(f *os.File, path string, offset uint64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := f.ReadAt(buf, int64(offset)); err != nil {
		return nil, ioErr(path, "read", err)
	}
	return buf, nil
}

// BlockCount is the authoritative chain height after Init/Append (§4.2: "the
// in-memory block count is the authoritative height after init").
func (s *Store) BlockCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockCount
}

// Append writes sb as the next block: data bytes, then its index record,
// then its hash record, in that order (§4.2 step order matters — a crash
// between steps can only ever leave the hashes file short or stale, never
// an indexed block missing its data).
func (s *Store) Append(sb block.SignedBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(sb)
}

func (s *Store) appendLocked(sb block.SignedBlock) error {
	encoded := block.EncodeSignedBlock(sb)
	start := s.dataEnd
	length := uint64(len(encoded))

	if err := writeAtGrow(s.data, s.dataPath, start, encoded); err != nil {
		return err
	}

	height := uint64(s.blockCount)
	if err := s.writeIndexRecord(height, start, length); err != nil {
		return err
	}
	blockHash := sb.Hash()
	if err := s.writeHashRecord(height, blockHash); err != nil {
		return err
	}

	s.dataEnd = start + length
	s.blockCount++
	return nil
}

func (s *Store) writeIndexRecord(height, start, length uint64) error {
	buf := make([]byte, indexRecordSize)
	putU64LE(buf[0:8], start)
	putU64LE(buf[8:16], length)
	return writeAtGrow(s.index, s.indexPath, height*indexRecordSize, buf)
}

func (s *Store) writeHashRecord(height uint64, h hash.Hash[hash.Block]) error {
	return writeAtGrow(s.hashes, s.hashesPath, height*hashRecordSize, h.Bytes())
}

// ReplaceTop overwrites the last index and hashes slots with sb and appends
// sb's encoded bytes at the current data-file end; the previous top block's
// bytes become dead space, never read again (§4.2).
func (s *Store) ReplaceTop(sb block.SignedBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blockCount == 0 {
		return invariantErr("replace_top called on an empty store")
	}

	encoded := block.EncodeSignedBlock(sb)
	start := s.dataEnd
	length := uint64(len(encoded))
	if err := writeAtGrow(s.data, s.dataPath, start, encoded); err != nil {
		return err
	}

	height := uint64(s.blockCount - 1)
	if err := s.writeIndexRecord(height, start, length); err != nil {
		return err
	}
	if err := s.writeHashRecord(height, sb.Hash()); err != nil {
		return err
	}

	s.dataEnd = start + length
	return nil
}

// ReadBlock reads and decodes the block at the given 1-based height.
func (s *Store) ReadBlock(height uint64) (block.SignedBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readBlockLocked(height)
}

func (s *Store) readBlockLocked(height uint64) (block.SignedBlock, error) {
	if height == 0 || height > uint64(s.blockCount) {
		return block.SignedBlock{}, rangeErr("height out of range")
	}
	idx := height - 1

	raw, err := readAtExact(s.index, s.indexPath, idx*indexRecordSize, indexRecordSize)
	if err != nil {
		return block.SignedBlock{}, err
	}
	start := getU64LE(raw[0:8])
	length := getU64LE(raw[8:16])

	dataBytes, err := readAtExact(s.data, s.dataPath, start, int(length))
	if err != nil {
		return block.SignedBlock{}, err
	}

	sb, err := block.DecodeSignedBlock(dataBytes)
	if err != nil {
		return block.SignedBlock{}, codecErr(s.dataPath, "decode block", err)
	}
	return sb, nil
}

// ReadBlockHashes reads count consecutive hash records starting at the
// given 0-based index.
func (s *Store) ReadBlockHashes(startIndex uint64, count uint64) ([]hash.Hash[hash.Block], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]hash.Hash[hash.Block], 0, count)
	for i := uint64(0); i < count; i++ {
		raw, err := readAtExact(s.hashes, s.hashesPath, (startIndex+i)*hashRecordSize, hashRecordSize)
		if err != nil {
			return nil, err
		}
		out = append(out, hash.MustFromBytes[hash.Block](raw))
	}
	return out, nil
}

// ReadIndexCount returns size(index)/16 as currently on disk, independent of
// s.blockCount (used by Init to detect fast/strict mismatch).
func (s *Store) ReadIndexCount() (uint64, error) {
	info, err := s.index.Stat()
	if err != nil {
		return 0, ioErr(s.indexPath, "stat", err)
	}
	return uint64(info.Size()) / indexRecordSize, nil
}

// ReadHashesCount returns size(hashes)/32 as currently on disk.
func (s *Store) ReadHashesCount() (uint64, error) {
	info, err := s.hashes.Stat()
	if err != nil {
		return 0, ioErr(s.hashesPath, "stat", err)
	}
	return uint64(info.Size()) / hashRecordSize, nil
}

func putU64LE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getU64LE(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
