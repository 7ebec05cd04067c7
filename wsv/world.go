package wsv

import (
	"kintsugi.dev/node/block"
	"kintsugi.dev/node/crypto"
	"kintsugi.dev/node/hash"
	"kintsugi.dev/node/permission"
)

// Domain is a namespace owning accounts and asset definitions.
type Domain struct {
	Id       block.DomainId
	Owner    block.AccountId
	Metadata map[string]string
}

// Account holds asset balances, metadata, roles, and direct grants.
type Account struct {
	Id        block.AccountId
	PublicKey crypto.PublicKey
	Metadata  map[string]string
	Roles     map[block.RoleId]struct{}
	Grants    map[permission.Token]struct{}
}

// AssetDefinition describes an asset kind registered in a domain.
type AssetDefinition struct {
	Id    block.AssetDefinitionId
	Owner block.AccountId
	Mintable bool
}

// Asset is one account's holding of an asset definition.
type Asset struct {
	Id       block.AssetId
	Quantity uint64
}

// Role is a named bundle of permission tokens.
type Role struct {
	Id     block.RoleId
	Tokens []permission.Token
}

// Trigger is a persistent filter + action pair owned by an account
// (§4.4.3). Execution itself is modelled as re-running the action's
// instruction list through the same executor as a transaction.
type Trigger struct {
	Id         block.TriggerId
	Owner      block.AccountId
	Filter     TriggerFilter
	Action     block.TransactionPayload
	Repeats    Repeats
	Version    uint64
}

// TriggerFilter selects which events a trigger reacts to.
type TriggerFilter struct {
	OnData    bool
	OnTime    bool
	OnExecute bool
	DataKind  *block.InstructionKind // nil matches any data event kind
}

// Repeats counts how many more times a trigger may fire; Forever means no
// decrement ever brings it to zero.
type Repeats struct {
	Forever bool
	Count   uint32
}

func (r Repeats) Exhausted() bool { return !r.Forever && r.Count == 0 }

func (r Repeats) decrement() Repeats {
	if r.Forever || r.Count == 0 {
		return r
	}
	r.Count--
	return r
}

// Parameters are on-chain-configurable resource caps re-read after every
// block apply (§4.4.1 step 6).
type Parameters struct {
	MaxAccountMetadataEntries int
	MaxAssetMetadataEntries   int
	MaxDomainMetadataEntries  int
	MaxTransactionInstructions int
	MaxTransactionBytes       int
	WasmFuelLimit             uint64
	WasmMaxMemory             uint64
}

// World is the live, mutable state a node maintains. Reads outside of
// ApplyBlock go through the query helpers in queries.go; World takes no lock
// of its own, and node.Supervisor's mutex guards it.
type World struct {
	ChainId          string
	Domains          map[block.DomainId]*Domain
	Accounts         map[block.AccountId]*Account
	AssetDefinitions map[block.AssetDefinitionId]*AssetDefinition
	Assets           map[block.AssetId]*Asset
	Roles            map[block.RoleId]*Role
	Peers            map[block.PeerId]struct{}
	Parameters       Parameters
	ExecutorCode     []byte

	Triggers *TriggerSet

	// committedHeights maps a committed transaction's hash to the height of
	// the block it was committed in; populated by ApplyBlock, consulted by
	// Committed to satisfy consensus.TxExecutor.
	committedHeights map[hash.Hash[hash.Tx]]uint64
}

// NewWorld returns an empty world ready for genesis application.
func NewWorld(chainId string, params Parameters) *World {
	return &World{
		ChainId:          chainId,
		Domains:          make(map[block.DomainId]*Domain),
		Accounts:         make(map[block.AccountId]*Account),
		AssetDefinitions: make(map[block.AssetDefinitionId]*AssetDefinition),
		Assets:           make(map[block.AssetId]*Asset),
		Roles:            make(map[block.RoleId]*Role),
		Peers:            make(map[block.PeerId]struct{}),
		Parameters:       params,
		Triggers:         NewTriggerSet(),
		committedHeights: make(map[hash.Hash[hash.Tx]]uint64),
	}
}

// Clone makes a deep-enough copy for snapshot/restore during trigger
// execution (§4.4.3) and for scratch re-execution during categorisation
// (§4.3.1). Map values are copied so mutations to the clone never alias the
// original's entries.
func (w *World) Clone() *World {
	out := &World{
		ChainId:          w.ChainId,
		Domains:          make(map[block.DomainId]*Domain, len(w.Domains)),
		Accounts:         make(map[block.AccountId]*Account, len(w.Accounts)),
		AssetDefinitions: make(map[block.AssetDefinitionId]*AssetDefinition, len(w.AssetDefinitions)),
		Assets:           make(map[block.AssetId]*Asset, len(w.Assets)),
		Roles:            make(map[block.RoleId]*Role, len(w.Roles)),
		Peers:            make(map[block.PeerId]struct{}, len(w.Peers)),
		Parameters:       w.Parameters,
		ExecutorCode:     append([]byte(nil), w.ExecutorCode...),
		Triggers:         w.Triggers.clone(),
		committedHeights: make(map[hash.Hash[hash.Tx]]uint64, len(w.committedHeights)),
	}
	for k, v := range w.committedHeights {
		out.committedHeights[k] = v
	}
	for k, v := range w.Domains {
		d := *v
		d.Metadata = cloneStringMap(v.Metadata)
		out.Domains[k] = &d
	}
	for k, v := range w.Accounts {
		a := *v
		a.Metadata = cloneStringMap(v.Metadata)
		a.Roles = make(map[block.RoleId]struct{}, len(v.Roles))
		for r := range v.Roles {
			a.Roles[r] = struct{}{}
		}
		a.Grants = make(map[permission.Token]struct{}, len(v.Grants))
		for g := range v.Grants {
			a.Grants[g] = struct{}{}
		}
		out.Accounts[k] = &a
	}
	for k, v := range w.AssetDefinitions {
		d := *v
		out.AssetDefinitions[k] = &d
	}
	for k, v := range w.Assets {
		a := *v
		out.Assets[k] = &a
	}
	for k, v := range w.Roles {
		r := *v
		r.Tokens = append([]permission.Token(nil), v.Tokens...)
		out.Roles[k] = &r
	}
	for k := range w.Peers {
		out.Peers[k] = struct{}{}
	}
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// restoreFrom overwrites w's fields with snapshot's, in place — used to
// implement the trigger snapshot/restore of §4.4.3 without reallocating
// the World the caller already holds a pointer to.
func (w *World) restoreFrom(snapshot *World) {
	*w = *snapshot
}
