package wsv

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"kintsugi.dev/node/block"
	"kintsugi.dev/node/hash"
	"kintsugi.dev/node/kura"
)

// BlockWindow is the bounded in-memory cache of recent blocks described in
// §4.4.5: most reads are satisfied from memory, with genesis pinned outside
// the LRU's eviction so height-1 lookups never touch the store, and any
// other evicted height reloaded from kura on demand.
type BlockWindow struct {
	store   *kura.Store
	cache   *lru.Cache[uint64, block.SignedBlock]
	genesis *block.SignedBlock
}

// NewBlockWindow builds a window backed by store, keeping at most size
// non-genesis blocks in memory.
func NewBlockWindow(store *kura.Store, size int) (*BlockWindow, error) {
	cache, err := lru.New[uint64, block.SignedBlock](size)
	if err != nil {
		return nil, invalidInstr("block window: " + err.Error())
	}
	return &BlockWindow{store: store, cache: cache}, nil
}

// Remember adds sb to the window, pinning it if it is genesis (height 1).
func (w *BlockWindow) Remember(sb block.SignedBlock) {
	height := sb.Block.Header.Height
	if height == 1 {
		cp := sb
		w.genesis = &cp
		return
	}
	w.cache.Add(height, sb)
}

// ByHeight returns the block at height, reloading it from the store on a
// cache miss (§4.4.5: eviction never loses data, only in-memory locality).
func (w *BlockWindow) ByHeight(height uint64) (block.SignedBlock, error) {
	if height == 1 && w.genesis != nil {
		return *w.genesis, nil
	}
	if sb, ok := w.cache.Get(height); ok {
		return sb, nil
	}
	sb, err := w.store.ReadBlock(height)
	if err != nil {
		return block.SignedBlock{}, err
	}
	w.cache.Add(height, sb)
	return sb, nil
}

// ByHash scans the window's in-memory entries only — it never falls back to
// a full store scan, since hash lookups are a convenience for recently seen
// blocks, not a substitute for the tx-height index in statecache.
func (w *BlockWindow) ByHash(h hash.Hash[hash.Block]) (block.SignedBlock, bool) {
	if w.genesis != nil && w.genesis.Hash() == h {
		return *w.genesis, true
	}
	for _, height := range w.cache.Keys() {
		sb, ok := w.cache.Peek(height)
		if ok && sb.Hash() == h {
			return sb, true
		}
	}
	return block.SignedBlock{}, false
}
