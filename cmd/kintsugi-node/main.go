package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"kintsugi.dev/node/node"
)

type multiStringFlag []string

func (m *multiStringFlag) String() string {
	if m == nil {
		return ""
	}
	return strings.Join(*m, ",")
}

func (m *multiStringFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	defaults := node.DefaultConfig()
	var peers multiStringFlag

	cfg := defaults
	fs := flag.NewFlagSet("kintsugi-node", flag.ContinueOnError)
	fs.SetOutput(stderr)

	peerCSV := fs.String("peers", "", "bootstrap peers, comma-separated host:port")
	fs.Var(&peers, "peer", "single bootstrap peer host:port (repeatable)")
	fs.StringVar(&cfg.Network, "network", defaults.Network, "chain id this node joins")
	fs.StringVar(&cfg.DataDir, "datadir", defaults.DataDir, "node data directory")
	fs.StringVar(&cfg.BindAddr, "bind", defaults.BindAddr, "bind address host:port")
	fs.StringVar(&cfg.LogLevel, "log-level", defaults.LogLevel, "log level: debug|info|warn|error")
	fs.IntVar(&cfg.MaxPeers, "max-peers", defaults.MaxPeers, "max connected peers")
	initMode := fs.String("init-mode", string(defaults.InitMode), "block store recovery mode: fast|strict")
	fs.IntVar(&cfg.BlocksInMemory, "blocks-in-memory", defaults.BlocksInMemory, "block window LRU size")
	maxClockDriftMs := fs.Int64("max-clock-drift-ms", defaults.MaxClockDrift.Milliseconds(), "max transaction clock drift in milliseconds")
	fs.StringVar(&cfg.GenesisPublicKey, "genesis-public-key", defaults.GenesisPublicKey, "multihash public key authorized to sign the genesis block")
	maxInstructions := fs.Int("max-tx-instructions", defaults.Transactions.MaxInstructions, "max instructions per transaction")
	maxTxBytes := fs.Int("max-tx-bytes", defaults.Transactions.MaxBytes, "max encoded transaction size in bytes")
	wasmFuel := fs.Uint64("wasm-fuel-limit", defaults.Wasm.FuelLimit, "wasm trigger fuel limit")
	wasmMemory := fs.Uint64("wasm-max-memory", defaults.Wasm.MaxMemory, "wasm trigger max memory in bytes")
	dryRun := fs.Bool("dry-run", false, "print effective config and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.Peers = node.NormalizePeers(append([]string{*peerCSV}, peers...)...)
	cfg.InitMode = node.InitMode(strings.ToLower(strings.TrimSpace(*initMode)))
	cfg.MaxClockDrift = msToDuration(*maxClockDriftMs)
	cfg.Transactions.MaxInstructions = *maxInstructions
	cfg.Transactions.MaxBytes = *maxTxBytes
	cfg.Wasm.FuelLimit = *wasmFuel
	cfg.Wasm.MaxMemory = *wasmMemory

	if err := node.ValidateConfig(cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		_, _ = fmt.Fprintf(stderr, "datadir create failed: %v\n", err)
		return 2
	}

	if err := printConfig(stdout, cfg); err != nil {
		_, _ = fmt.Fprintf(stderr, "config encode failed: %v\n", err)
		return 1
	}
	if *dryRun {
		return 0
	}

	sup, err := node.Open(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "node open failed: %v\n", err)
		return 2
	}
	defer func() { _ = sup.Close() }()

	if tip, ok := sup.Tip(); ok {
		_, _ = fmt.Fprintf(stdout, "chain: height=%d hash=%s\n", tip.Height, tip.Hash)
	} else {
		_, _ = fmt.Fprintln(stdout, "chain: empty, awaiting genesis")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, _ = fmt.Fprintln(stdout, "kintsugi-node running")
	<-ctx.Done()
	_, _ = fmt.Fprintln(stdout, "kintsugi-node stopped")
	return 0
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func printConfig(w io.Writer, cfg node.Config) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}
