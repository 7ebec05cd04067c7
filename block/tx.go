package block

import (
	"kintsugi.dev/node/crypto"
	"kintsugi.dev/node/hash"
)

// InstructionKind tags the opaque, kind-specific payload of an Instruction.
// block stays decoupled from the instruction interpreter (package wsv) by
// treating instructions as (kind, bytes) pairs; wsv owns decoding Payload
// into a concrete instruction struct and executing it.
type InstructionKind uint16

const (
	InstrRegisterDomain InstructionKind = iota
	InstrUnregisterDomain
	InstrRegisterAccount
	InstrUnregisterAccount
	InstrRegisterAssetDefinition
	InstrUnregisterAssetDefinition
	InstrMintAsset
	InstrBurnAsset
	InstrTransferAsset
	InstrSetKeyValue
	InstrRemoveKeyValue
	InstrGrantPermission
	InstrRevokePermission
	InstrRegisterRole
	InstrUnregisterRole
	InstrGrantRole
	InstrRevokeRole
	InstrRegisterTrigger
	InstrUnregisterTrigger
	InstrExecuteTrigger
	InstrSetParameter
	InstrUpgradeExecutor
)

type Instruction struct {
	Kind    InstructionKind
	Payload []byte
}

// TransactionPayload is either an ordered instruction list or a WASM blob;
// exactly one of the two fields is set.
type TransactionPayload struct {
	Instructions []Instruction
	Wasm         []byte
}

func (p TransactionPayload) isWasm() bool { return p.Wasm != nil }

// SignedTransaction is a transaction payload signed by its authority,
// time-stamped and chain-scoped for replay protection across networks.
type SignedTransaction struct {
	Authority   AccountId
	Payload     TransactionPayload
	CreatedAtMs uint64
	ChainId     string
	Signature   crypto.Signature
}

// Hash identifies a transaction by the content hash of its signed bytes.
func (t SignedTransaction) Hash() hash.Hash[hash.Tx] {
	return hash.Hash[hash.Tx](crypto.Sum256(t.signingBytes()))
}

// SigningBytes is the exact byte sequence a transaction's signature covers;
// callers outside this package (crypto verification call sites in consensus)
// sign and verify over exactly these bytes.
func (t SignedTransaction) SigningBytes() []byte {
	return t.signingBytes()
}

func (t SignedTransaction) signingBytes() []byte {
	out := make([]byte, 0, 256)
	out = appendLengthPrefixed(out, []byte(t.Authority.Name))
	out = appendLengthPrefixed(out, []byte(t.Authority.Domain))
	out = appendU64(out, t.CreatedAtMs)
	out = appendLengthPrefixed(out, []byte(t.ChainId))
	out = t.Payload.encode(out)
	return out
}

func (p TransactionPayload) encode(dst []byte) []byte {
	if p.isWasm() {
		dst = append(dst, 1)
		dst = appendLengthPrefixed(dst, p.Wasm)
		return dst
	}
	dst = append(dst, 0)
	dst = appendCompactSize(dst, uint64(len(p.Instructions)))
	for _, ins := range p.Instructions {
		dst = appendU32(dst, uint32(ins.Kind))
		dst = appendLengthPrefixed(dst, ins.Payload)
	}
	return dst
}

func decodeTransactionPayload(b []byte, off *int) (TransactionPayload, error) {
	tag, err := readBytes(b, off, 1)
	if err != nil {
		return TransactionPayload{}, err
	}
	if tag[0] == 1 {
		wasm, err := readLengthPrefixed(b, off)
		if err != nil {
			return TransactionPayload{}, err
		}
		return TransactionPayload{Wasm: wasm}, nil
	}
	n, err := readCompactSize(b, off)
	if err != nil {
		return TransactionPayload{}, err
	}
	instructions := make([]Instruction, 0, n)
	for i := uint64(0); i < n; i++ {
		kind, err := readU32(b, off)
		if err != nil {
			return TransactionPayload{}, err
		}
		payload, err := readLengthPrefixed(b, off)
		if err != nil {
			return TransactionPayload{}, err
		}
		instructions = append(instructions, Instruction{Kind: InstructionKind(kind), Payload: payload})
	}
	return TransactionPayload{Instructions: instructions}, nil
}

// RejectionReason records why a transaction was rejected. A categorised
// transaction with a nil reason is "approved" per §3.
type RejectionReason struct {
	Code    string
	Message string
}

// CategorizedTransaction is a signed transaction plus its optional
// rejection reason. Both approved and rejected transactions are durably
// recorded so all peers agree on the full ordered set.
type CategorizedTransaction struct {
	Signed SignedTransaction
	Reason *RejectionReason
}

func (c CategorizedTransaction) Approved() bool { return c.Reason == nil }
