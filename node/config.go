// Package node wires the block store, the life-cycle state machine and the
// world-state view into one running node. It owns the config surface named
// in §6 and the concurrency scaffolding described in §5; gossip/RPC/CLI
// proper remain external collaborators.
package node

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kintsugi.dev/node/kura"
)

// InitMode selects the block store's crash-recovery strategy (§4.2).
type InitMode string

const (
	InitFast   InitMode = "fast"
	InitStrict InitMode = "strict"
)

// TransactionLimits bounds a single transaction's instruction count and
// encoded size (§6).
type TransactionLimits struct {
	MaxInstructions int
	MaxBytes        int
}

// WasmRuntimeConfig bounds the sandboxed WASM runtime's resource usage
// (§4.4.2); the runtime itself is an external collaborator, the core only
// carries the caps it is configured with.
type WasmRuntimeConfig struct {
	FuelLimit uint64
	MaxMemory uint64
}

// MetadataLimits bounds arbitrary key-value metadata attached to accounts,
// assets, domains and asset definitions.
type MetadataLimits struct {
	MaxAccountEntries         int
	MaxAssetEntries           int
	MaxDomainEntries          int
	MaxAssetDefinitionEntries int
	MaxEntryKeyBytes          int
	MaxEntryValueBytes        int
}

// Config is the full configuration surface the core reads, per §6. Parsing
// a config file into this struct is explicitly out of scope (§1); the CLI
// entrypoint populates it from flags.
type Config struct {
	Network          string
	DataDir          string
	BindAddr         string
	LogLevel         string
	Peers            []string
	MaxPeers         int
	StoreDir         string
	InitMode         InitMode
	BlocksInMemory   int
	MaxClockDrift    time.Duration
	Transactions     TransactionLimits
	Wasm             WasmRuntimeConfig
	Metadata         MetadataLimits
	GenesisPublicKey string // multihash textual form, §6
}

var allowedLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".kintsugi"
	}
	return filepath.Join(home, ".kintsugi")
}

func DefaultConfig() Config {
	dataDir := DefaultDataDir()
	return Config{
		Network:        "devnet",
		DataDir:        dataDir,
		BindAddr:       "0.0.0.0:19011",
		Peers:          nil,
		LogLevel:       "info",
		MaxPeers:       64,
		StoreDir:       kura.StorePath(dataDir),
		InitMode:       InitStrict,
		BlocksInMemory: 256,
		MaxClockDrift:  2 * time.Second,
		Transactions: TransactionLimits{
			MaxInstructions: 4096,
			MaxBytes:        1 << 20,
		},
		Wasm: WasmRuntimeConfig{
			FuelLimit: 100_000_000,
			MaxMemory: 512 * 1024 * 1024,
		},
		Metadata: MetadataLimits{
			MaxAccountEntries:         1024,
			MaxAssetEntries:           1024,
			MaxDomainEntries:          1024,
			MaxAssetDefinitionEntries: 1024,
			MaxEntryKeyBytes:          256,
			MaxEntryValueBytes:        1 << 16,
		},
	}
}

func NormalizePeers(raw ...string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, token := range raw {
		for _, p := range strings.Split(token, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Network) == "" {
		return errors.New("network is required")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return errors.New("data_dir is required")
	}
	if strings.TrimSpace(cfg.StoreDir) == "" {
		return errors.New("store_dir is required")
	}
	if cfg.InitMode != InitFast && cfg.InitMode != InitStrict {
		return fmt.Errorf("invalid init_mode %q", cfg.InitMode)
	}
	if cfg.BlocksInMemory <= 0 {
		return errors.New("blocks_in_memory must be > 0")
	}
	if cfg.MaxClockDrift <= 0 {
		return errors.New("max_clock_drift must be > 0")
	}
	if err := validateAddr(cfg.BindAddr); err != nil {
		return fmt.Errorf("invalid bind_addr: %w", err)
	}
	for _, peer := range cfg.Peers {
		if err := validatePeerAddr(peer); err != nil {
			return fmt.Errorf("invalid peer %q: %w", peer, err)
		}
	}
	logLevel := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if _, ok := allowedLogLevels[logLevel]; !ok {
		return fmt.Errorf("invalid log_level %q", cfg.LogLevel)
	}
	if cfg.MaxPeers <= 0 {
		return errors.New("max_peers must be > 0")
	}
	if cfg.MaxPeers > 4096 {
		return errors.New("max_peers must be <= 4096")
	}
	return nil
}

func validateAddr(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty address")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if strings.TrimSpace(port) == "" {
		return errors.New("missing port")
	}
	if strings.Contains(host, " ") {
		return errors.New("invalid host")
	}
	return nil
}

func validatePeerAddr(addr string) error {
	if err := validateAddr(addr); err != nil {
		return err
	}
	host, _, _ := net.SplitHostPort(addr)
	if strings.TrimSpace(host) == "" {
		return errors.New("missing host")
	}
	return nil
}
