package node

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"kintsugi.dev/node/block"
	"kintsugi.dev/node/consensus"
	"kintsugi.dev/node/crypto"
	"kintsugi.dev/node/events"
	"kintsugi.dev/node/hash"
	"kintsugi.dev/node/kura"
	"kintsugi.dev/node/wsv"
	"kintsugi.dev/node/wsv/statecache"
)

// writeQueueDepth bounds how many pending store mutations CommitBlock and
// ReplaceTip may queue before blocking; the single background writer
// goroutine drains it in submission order.
const writeQueueDepth = 64

// Supervisor glues kura, wsv and consensus into one running node: it is the
// single place that knows both the on-disk block sequence and the live
// world state derived from it. Gossip, RPC and the leader/voting protocol
// proper are external collaborators that call into Supervisor, not
// reimplementations of it (§5).
type Supervisor struct {
	cfg Config
	log zerolog.Logger

	store  *kura.Store
	writer *kura.Writer
	window *wsv.BlockWindow
	cache  *statecache.DB

	// mu is the block-window lock of §5: it serialises access to world and
	// window, and is never held across the store-I/O call in CommitBlock —
	// the lock is released before Append and re-acquired only to apply the
	// now-durable block to the in-memory state.
	mu              sync.RWMutex
	world           *wsv.World
	lastCreatedAtMs uint64
}

// Open opens the block store, recovers it per cfg.InitMode, and rebuilds
// the world state by replaying every stored block (§9 Design Notes: wsv is
// never itself a source of truth — chain validity is always re-derived
// from kura on restart; statecache only accelerates, never replaces, this).
func Open(cfg Config) (*Supervisor, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("node: invalid config: %w", err)
	}

	log := newLogger(cfg.LogLevel)

	store, err := kura.Open(cfg.StoreDir, log.With().Str("component", "kura").Logger())
	if err != nil {
		return nil, fmt.Errorf("node: open store: %w", err)
	}
	if err := store.Init(kura.InitMode(cfg.InitMode)); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("node: init store: %w", err)
	}

	window, err := wsv.NewBlockWindow(store, cfg.BlocksInMemory)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("node: build block window: %w", err)
	}

	cache, err := statecache.Open(statecache.Path(cfg.DataDir))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("node: open statecache: %w", err)
	}

	s := &Supervisor{
		cfg:    cfg,
		log:    log,
		store:  store,
		window: window,
		cache:  cache,
	}

	// Every mutating store call goes through writer so that a write failure
	// is routed to fatalWrite instead of returned as an ordinary error: §4.2
	// and §5 require a fatal I/O error during append to abort the process
	// rather than be treated as a recoverable failure, since partial visible
	// state must never be mistaken for committed state.
	s.writer = kura.NewWriter(store, writeQueueDepth, s.fatalWrite)
	s.world = wsv.NewWorld(cfg.Network, wsv.Parameters{
		MaxAccountMetadataEntries:  cfg.Metadata.MaxAccountEntries,
		MaxAssetMetadataEntries:    cfg.Metadata.MaxAssetEntries,
		MaxDomainMetadataEntries:   cfg.Metadata.MaxDomainEntries,
		MaxTransactionInstructions: cfg.Transactions.MaxInstructions,
		MaxTransactionBytes:        cfg.Transactions.MaxBytes,
		WasmFuelLimit:              cfg.Wasm.FuelLimit,
		WasmMaxMemory:              cfg.Wasm.MaxMemory,
	})

	if err := s.replay(); err != nil {
		_ = cache.Close()
		_ = store.Close()
		return nil, fmt.Errorf("node: replay chain: %w", err)
	}

	return s, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}

// replay re-derives world from every block already on disk, oldest first.
// This is the startup-time cost statecache exists to reduce in a later
// iteration; it is never skipped for correctness's sake — world is always
// rebuilt from kura here, with statecache only refreshed alongside it, not
// consulted in its place.
func (s *Supervisor) replay() error {
	count := s.store.BlockCount()
	var prevCreatedAtMs uint64
	for height := uint64(1); height <= uint64(count); height++ {
		sb, err := s.store.ReadBlock(height)
		if err != nil {
			return fmt.Errorf("read block %d: %w", height, err)
		}
		cb := consensus.CommittedBlock{SignedBlock: sb}
		if err := s.world.ApplyBlock(cb, prevCreatedAtMs, nil); err != nil {
			return fmt.Errorf("apply block %d: %w", height, err)
		}
		s.window.Remember(sb)
		s.recordCommittedHeights(cb)
		prevCreatedAtMs = sb.Block.Header.CreatedAtMs
	}
	s.lastCreatedAtMs = prevCreatedAtMs
	return nil
}

// recordCommittedHeights refreshes the tx-height accelerator in statecache
// for every approved transaction in cb. A failure here is logged, not
// returned — the index is an accelerator, never a source of truth, so a
// caller able to query it directly (e.g. a CLI or RPC collaborator that
// does not want to hold the whole World in memory) may see a slightly
// stale index, but world and kura remain correct either way.
func (s *Supervisor) recordCommittedHeights(cb consensus.CommittedBlock) {
	height := cb.Block.Header.Height
	for _, tx := range cb.Block.Transactions {
		if !tx.Approved() {
			continue
		}
		if err := s.cache.PutTxHeight(tx.Signed.Hash(), height); err != nil {
			s.log.Warn().Err(err).Uint64("height", height).Msg("node: statecache tx-height write failed")
		}
	}
}

// Close drains and stops the writer, then releases the store's lock file
// and the statecache handle; the world state itself is in-memory only and
// is rebuilt by replay on the next Open.
func (s *Supervisor) Close() error {
	s.writer.Shutdown()
	_ = s.cache.Close()
	return s.store.Close()
}

// fatalWrite is the writer's FatalWriter: a queued append or replace-top
// that fails to reach disk is, per §4.2/§5/§7, not a recoverable error —
// the process must abort rather than let any caller treat a block as
// committed when its write may not actually be durable. zerolog's Fatal
// level logs and then calls os.Exit(1); it never returns.
func (s *Supervisor) fatalWrite(err error) {
	s.log.Fatal().Err(err).Msg("node: fatal block store write failure, aborting process")
}

// CommitBlock persists cb and applies it to the live world state, emitting
// every event ApplyBlock produces to sink (nil discards them). The append
// goes through writer, so a write failure aborts the process (see
// fatalWrite) instead of being returned here as an ordinary error.
func (s *Supervisor) CommitBlock(cb consensus.CommittedBlock, sink events.Sink) error {
	if err := s.writer.Append(cb.SignedBlock); err != nil {
		return fmt.Errorf("node: append block: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.world.ApplyBlock(cb, s.lastCreatedAtMs, sink); err != nil {
		s.log.Error().Err(err).Uint64("height", cb.Block.Header.Height).Msg("node: block accepted by consensus but failed re-application")
		return fmt.Errorf("node: apply block: %w", err)
	}
	s.window.Remember(cb.SignedBlock)
	s.recordCommittedHeights(cb)
	s.lastCreatedAtMs = cb.Block.Header.CreatedAtMs
	return nil
}

// TxHeightFromCache answers "was this transaction committed, and at what
// height" directly from the statecache accelerator, without requiring the
// caller to hold a live World — useful for an external query path (CLI,
// RPC) that only needs this one fact. World().Committed is the
// authoritative, always-correct answer; this is the fast, occasionally
// stale one, per §9 Design Notes.
func (s *Supervisor) TxHeightFromCache(txHash hash.Hash[hash.Tx]) (uint64, bool, error) {
	return s.cache.TxHeight(txHash)
}

// ReplaceTip persists a soft-fork replacement for the current tip — used
// when a view change supersedes an already-voted-on block before it
// committed (§4.3.4's replace-signatures path feeding a new top block).
func (s *Supervisor) ReplaceTip(sb block.SignedBlock) error {
	return s.writer.ReplaceTop(sb)
}

// Tip returns the chain tip as a consensus.Tip, or ok=false for an empty
// chain (the caller should then build a genesis PendingBlock).
func (s *Supervisor) Tip() (consensus.Tip, bool) {
	count := s.store.BlockCount()
	if count == 0 {
		return consensus.Tip{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sb, err := s.window.ByHeight(uint64(count))
	if err != nil {
		return consensus.Tip{}, false
	}
	return consensus.Tip{
		Height:      sb.Block.Header.Height,
		Hash:        sb.Hash(),
		CreatedAtMs: sb.Block.Header.CreatedAtMs,
	}, true
}

// World exposes the live state for read queries. Callers must not mutate
// the returned value's maps directly; use the query helpers in wsv.
func (s *Supervisor) World() *wsv.World {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.world
}

// Executor adapts the supervisor's world to consensus.TxExecutor without
// exposing mutation methods to the life-cycle layer.
func (s *Supervisor) Executor() consensus.TxExecutor {
	return s.world
}

// LoadGenesisKey parses cfg.GenesisPublicKey as the §6 multihash textual
// form. LoadGenesisKeyFile is the file-backed variant for deployments that
// keep the genesis key alongside the rest of DataDir rather than inline in
// config.
func LoadGenesisKey(cfg Config) (crypto.PublicKey, error) {
	if cfg.GenesisPublicKey == "" {
		return crypto.PublicKey{}, fmt.Errorf("node: genesis_public_key is required")
	}
	return crypto.ParsePublicKey(cfg.GenesisPublicKey)
}

// LoadGenesisKeyFile reads fileName from cfg.DataDir using the
// path-traversal-safe reader and parses its contents as a multihash public
// key, trimming a single trailing newline.
func LoadGenesisKeyFile(cfg Config, fileName string) (crypto.PublicKey, error) {
	b, err := readFileFromDir(cfg.DataDir, fileName)
	if err != nil {
		return crypto.PublicKey{}, fmt.Errorf("node: read genesis key file: %w", err)
	}
	s := string(b)
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return crypto.ParsePublicKey(s)
}
