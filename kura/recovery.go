package kura

import (
	"kintsugi.dev/node/block"
	"kintsugi.dev/node/hash"
)

// InitMode selects which recovery strategy Init runs after Open.
type InitMode string

const (
	// InitFast trusts the hashes file outright when it is the same length
	// as the index file, and falls back to strict recovery otherwise.
	InitFast InitMode = "fast"
	// InitStrict always decodes every indexed block and re-derives the
	// hash chain from scratch.
	InitStrict InitMode = "strict"
)

// Init reconciles the three files after an unclean shutdown and leaves the
// store positioned to append the next block. It must be called once, right
// after Open, before any Append/ReplaceTop/ReadBlock call.
func (s *Store) Init(mode InitMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	indexCount, err := s.ReadIndexCount()
	if err != nil {
		return err
	}

	if mode == InitFast {
		hashesCount, err := s.ReadHashesCount()
		if err != nil {
			return err
		}
		if hashesCount == indexCount {
			return s.fastAcceptLocked(indexCount)
		}
		s.log.Warn().
			Uint64("index_count", indexCount).
			Uint64("hashes_count", hashesCount).
			Msg("kura: fast init mismatch, falling back to strict recovery")
	}

	return s.strictRecoverLocked(indexCount)
}

// fastAcceptLocked trusts the on-disk files as-is: it just seeds the
// in-memory cursors from the last index record, if any.
func (s *Store) fastAcceptLocked(count uint64) error {
	s.blockCount = int(count)
	if count == 0 {
		s.dataEnd = 0
		return nil
	}
	raw, err := readAtExact(s.index, s.indexPath, (count-1)*indexRecordSize, indexRecordSize)
	if err != nil {
		return err
	}
	s.dataEnd = getU64LE(raw[0:8]) + getU64LE(raw[8:16])
	return nil
}

// strictRecoverLocked decodes every indexed block in order, verifying that
// each one's PrevBlockHash links to the previous accepted block's hash
// (genesis, at index 0, must carry no PrevBlockHash). Decoding stops at the
// first invalid or unlinked block; everything before it is the accepted
// prefix. The hashes file is then rewritten to exactly that prefix. The
// index file itself is left untouched — Append always writes the next
// record at s.blockCount, so any stale index tail past the accepted prefix
// is simply never read again (§9 open question 2).
func (s *Store) strictRecoverLocked(indexCount uint64) error {
	var (
		accepted []hash.Hash[hash.Block]
		dataEnd  uint64
	)

	for i := uint64(0); i < indexCount; i++ {
		raw, err := readAtExact(s.index, s.indexPath, i*indexRecordSize, indexRecordSize)
		if err != nil {
			return err
		}
		start := getU64LE(raw[0:8])
		length := getU64LE(raw[8:16])

		dataBytes, err := readAtExact(s.data, s.dataPath, start, int(length))
		if err != nil {
			s.log.Warn().Uint64("height", i+1).Err(err).Msg("kura: strict recovery stopped, unreadable block data")
			break
		}

		sb, err := block.DecodeSignedBlock(dataBytes)
		if err != nil {
			s.log.Warn().Uint64("height", i+1).Err(err).Msg("kura: strict recovery stopped, undecodable block")
			break
		}

		blockHash := sb.Hash()
		if i == 0 {
			if sb.Block.Header.PrevBlockHash != nil {
				s.log.Warn().Msg("kura: strict recovery stopped, genesis carries a prev hash")
				break
			}
		} else {
			prev := sb.Block.Header.PrevBlockHash
			if prev == nil || *prev != accepted[len(accepted)-1] {
				s.log.Warn().Uint64("height", i+1).Msg("kura: strict recovery stopped, broken chain linkage")
				break
			}
		}

		accepted = append(accepted, blockHash)
		dataEnd = start + length
	}

	if err := s.rewriteHashesFileLocked(accepted); err != nil {
		return err
	}

	s.blockCount = len(accepted)
	s.dataEnd = dataEnd
	return nil
}

func (s *Store) rewriteHashesFileLocked(hashes []hash.Hash[hash.Block]) error {
	if err := s.hashes.Truncate(int64(len(hashes) * hashRecordSize)); err != nil {
		return ioErr(s.hashesPath, "truncate", err)
	}
	for i, h := range hashes {
		if err := writeAtGrow(s.hashes, s.hashesPath, uint64(i)*hashRecordSize, h.Bytes()); err != nil {
			return err
		}
	}
	return nil
}
