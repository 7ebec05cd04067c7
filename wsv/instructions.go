package wsv

import (
	"fmt"

	"kintsugi.dev/node/block"
	"kintsugi.dev/node/permission"
)

// This file encodes/decodes each instruction kind's opaque payload and
// dispatches execution against a World. block treats Instruction.Payload as
// opaque bytes (§3); wsv owns turning it back into a concrete struct and
// running it.

func encodeAccountId(dst []byte, a block.AccountId) []byte {
	dst = appendStr(dst, a.Name)
	dst = appendStr(dst, string(a.Domain))
	return dst
}

func decodeAccountId(b []byte, off *int) (block.AccountId, error) {
	name, err := readStr(b, off)
	if err != nil {
		return block.AccountId{}, err
	}
	domain, err := readStr(b, off)
	if err != nil {
		return block.AccountId{}, err
	}
	return block.AccountId{Name: name, Domain: block.DomainId(domain)}, nil
}

func encodeAssetDefinitionId(dst []byte, a block.AssetDefinitionId) []byte {
	dst = appendStr(dst, a.Name)
	dst = appendStr(dst, string(a.Domain))
	return dst
}

func decodeAssetDefinitionId(b []byte, off *int) (block.AssetDefinitionId, error) {
	name, err := readStr(b, off)
	if err != nil {
		return block.AssetDefinitionId{}, err
	}
	domain, err := readStr(b, off)
	if err != nil {
		return block.AssetDefinitionId{}, err
	}
	return block.AssetDefinitionId{Name: name, Domain: block.DomainId(domain)}, nil
}

func encodeAssetId(dst []byte, a block.AssetId) []byte {
	dst = encodeAssetDefinitionId(dst, a.Definition)
	dst = encodeAccountId(dst, a.Account)
	return dst
}

func decodeAssetId(b []byte, off *int) (block.AssetId, error) {
	def, err := decodeAssetDefinitionId(b, off)
	if err != nil {
		return block.AssetId{}, err
	}
	acc, err := decodeAccountId(b, off)
	if err != nil {
		return block.AssetId{}, err
	}
	return block.AssetId{Definition: def, Account: acc}, nil
}

func encodeToken(dst []byte, t permission.Token) []byte {
	dst = append(dst, byte(t.Kind))
	dst = appendStr(dst, t.Target)
	return dst
}

func decodeToken(b []byte, off *int) (permission.Token, error) {
	if *off+1 > len(b) {
		return permission.Token{}, fmt.Errorf("wsv: truncated token kind")
	}
	kind := permission.TokenKind(b[*off])
	*off++
	target, err := readStr(b, off)
	if err != nil {
		return permission.Token{}, err
	}
	return permission.Token{Kind: kind, Target: target}, nil
}

// --- RegisterDomain / UnregisterDomain ---

func EncodeRegisterDomain(id block.DomainId, owner block.AccountId) []byte {
	dst := appendStr(nil, string(id))
	dst = encodeAccountId(dst, owner)
	return dst
}

func decodeRegisterDomain(b []byte) (block.DomainId, block.AccountId, error) {
	off := 0
	id, err := readStr(b, &off)
	if err != nil {
		return "", block.AccountId{}, err
	}
	owner, err := decodeAccountId(b, &off)
	if err != nil {
		return "", block.AccountId{}, err
	}
	return block.DomainId(id), owner, nil
}

func EncodeUnregisterDomain(id block.DomainId) []byte { return appendStr(nil, string(id)) }

func decodeDomainId(b []byte) (block.DomainId, error) {
	off := 0
	s, err := readStr(b, &off)
	return block.DomainId(s), err
}

// --- RegisterAccount / UnregisterAccount ---

func EncodeRegisterAccount(id block.AccountId) []byte { return encodeAccountId(nil, id) }

func decodeAccountIdPayload(b []byte) (block.AccountId, error) {
	off := 0
	return decodeAccountId(b, &off)
}

// --- RegisterAssetDefinition / UnregisterAssetDefinition ---

func EncodeRegisterAssetDefinition(id block.AssetDefinitionId, owner block.AccountId, mintable bool) []byte {
	dst := encodeAssetDefinitionId(nil, id)
	dst = encodeAccountId(dst, owner)
	if mintable {
		dst = append(dst, 1)
	} else {
		dst = append(dst, 0)
	}
	return dst
}

func decodeRegisterAssetDefinition(b []byte) (block.AssetDefinitionId, block.AccountId, bool, error) {
	off := 0
	id, err := decodeAssetDefinitionId(b, &off)
	if err != nil {
		return block.AssetDefinitionId{}, block.AccountId{}, false, err
	}
	owner, err := decodeAccountId(b, &off)
	if err != nil {
		return block.AssetDefinitionId{}, block.AccountId{}, false, err
	}
	if off >= len(b) {
		return block.AssetDefinitionId{}, block.AccountId{}, false, fmt.Errorf("wsv: truncated mintable flag")
	}
	return id, owner, b[off] != 0, nil
}

func decodeAssetDefinitionIdPayload(b []byte) (block.AssetDefinitionId, error) {
	off := 0
	return decodeAssetDefinitionId(b, &off)
}

// --- MintAsset / BurnAsset ---

func EncodeAssetQuantity(id block.AssetId, quantity uint64) []byte {
	dst := encodeAssetId(nil, id)
	dst = appendU64(dst, quantity)
	return dst
}

func decodeAssetQuantity(b []byte) (block.AssetId, uint64, error) {
	off := 0
	id, err := decodeAssetId(b, &off)
	if err != nil {
		return block.AssetId{}, 0, err
	}
	qty, err := readU64(b, &off)
	return id, qty, err
}

// --- TransferAsset ---

func EncodeTransferAsset(def block.AssetDefinitionId, from, to block.AccountId, quantity uint64) []byte {
	dst := encodeAssetDefinitionId(nil, def)
	dst = encodeAccountId(dst, from)
	dst = encodeAccountId(dst, to)
	dst = appendU64(dst, quantity)
	return dst
}

func decodeTransferAsset(b []byte) (block.AssetDefinitionId, block.AccountId, block.AccountId, uint64, error) {
	off := 0
	def, err := decodeAssetDefinitionId(b, &off)
	if err != nil {
		return block.AssetDefinitionId{}, block.AccountId{}, block.AccountId{}, 0, err
	}
	from, err := decodeAccountId(b, &off)
	if err != nil {
		return block.AssetDefinitionId{}, block.AccountId{}, block.AccountId{}, 0, err
	}
	to, err := decodeAccountId(b, &off)
	if err != nil {
		return block.AssetDefinitionId{}, block.AccountId{}, block.AccountId{}, 0, err
	}
	qty, err := readU64(b, &off)
	return def, from, to, qty, err
}

// --- SetKeyValue / RemoveKeyValue ---

func EncodeSetKeyValue(target, key, value string) []byte {
	dst := appendStr(nil, target)
	dst = appendStr(dst, key)
	dst = appendStr(dst, value)
	return dst
}

func decodeSetKeyValue(b []byte) (target, key, value string, err error) {
	off := 0
	if target, err = readStr(b, &off); err != nil {
		return
	}
	if key, err = readStr(b, &off); err != nil {
		return
	}
	value, err = readStr(b, &off)
	return
}

func EncodeRemoveKeyValue(target, key string) []byte {
	dst := appendStr(nil, target)
	dst = appendStr(dst, key)
	return dst
}

func decodeRemoveKeyValue(b []byte) (target, key string, err error) {
	off := 0
	if target, err = readStr(b, &off); err != nil {
		return
	}
	key, err = readStr(b, &off)
	return
}

// --- GrantPermission / RevokePermission ---

func EncodeAccountToken(acc block.AccountId, tok permission.Token) []byte {
	dst := encodeAccountId(nil, acc)
	dst = encodeToken(dst, tok)
	return dst
}

func decodeAccountToken(b []byte) (block.AccountId, permission.Token, error) {
	off := 0
	acc, err := decodeAccountId(b, &off)
	if err != nil {
		return block.AccountId{}, permission.Token{}, err
	}
	tok, err := decodeToken(b, &off)
	return acc, tok, err
}

// --- RegisterRole / UnregisterRole ---

func EncodeRegisterRole(id block.RoleId, tokens []permission.Token) []byte {
	dst := appendStr(nil, string(id))
	dst = appendU64(dst, uint64(len(tokens)))
	for _, t := range tokens {
		dst = encodeToken(dst, t)
	}
	return dst
}

func decodeRegisterRole(b []byte) (block.RoleId, []permission.Token, error) {
	off := 0
	id, err := readStr(b, &off)
	if err != nil {
		return "", nil, err
	}
	n, err := readU64(b, &off)
	if err != nil {
		return "", nil, err
	}
	tokens := make([]permission.Token, 0, n)
	for i := uint64(0); i < n; i++ {
		t, err := decodeToken(b, &off)
		if err != nil {
			return "", nil, err
		}
		tokens = append(tokens, t)
	}
	return block.RoleId(id), tokens, nil
}

func decodeRoleId(b []byte) (block.RoleId, error) {
	off := 0
	s, err := readStr(b, &off)
	return block.RoleId(s), err
}

// --- GrantRole / RevokeRole ---

func EncodeAccountRole(acc block.AccountId, role block.RoleId) []byte {
	dst := encodeAccountId(nil, acc)
	dst = appendStr(dst, string(role))
	return dst
}

func decodeAccountRole(b []byte) (block.AccountId, block.RoleId, error) {
	off := 0
	acc, err := decodeAccountId(b, &off)
	if err != nil {
		return block.AccountId{}, "", err
	}
	role, err := readStr(b, &off)
	return acc, block.RoleId(role), err
}

// --- RegisterTrigger / UnregisterTrigger / ExecuteTrigger ---

func EncodeRegisterTrigger(t Trigger) []byte {
	dst := appendStr(nil, string(t.Id))
	dst = encodeAccountId(dst, t.Owner)
	dst = encodeTriggerFilter(dst, t.Filter)
	dst = encodeTransactionPayload(dst, t.Action)
	dst = encodeRepeats(dst, t.Repeats)
	return dst
}

func decodeRegisterTrigger(b []byte) (Trigger, error) {
	off := 0
	id, err := readStr(b, &off)
	if err != nil {
		return Trigger{}, err
	}
	owner, err := decodeAccountId(b, &off)
	if err != nil {
		return Trigger{}, err
	}
	filter, err := decodeTriggerFilter(b, &off)
	if err != nil {
		return Trigger{}, err
	}
	action, err := decodeTransactionPayload(b, &off)
	if err != nil {
		return Trigger{}, err
	}
	repeats, err := decodeRepeats(b, &off)
	if err != nil {
		return Trigger{}, err
	}
	return Trigger{Id: block.TriggerId(id), Owner: owner, Filter: filter, Action: action, Repeats: repeats}, nil
}

func encodeTriggerFilter(dst []byte, f TriggerFilter) []byte {
	var flags byte
	if f.OnData {
		flags |= 1
	}
	if f.OnTime {
		flags |= 2
	}
	if f.OnExecute {
		flags |= 4
	}
	if f.DataKind != nil {
		flags |= 8
	}
	dst = append(dst, flags)
	if f.DataKind != nil {
		dst = append(dst, byte(*f.DataKind), byte(*f.DataKind>>8))
	}
	return dst
}

func decodeTriggerFilter(b []byte, off *int) (TriggerFilter, error) {
	if *off+1 > len(b) {
		return TriggerFilter{}, fmt.Errorf("wsv: truncated trigger filter")
	}
	flags := b[*off]
	*off++
	f := TriggerFilter{OnData: flags&1 != 0, OnTime: flags&2 != 0, OnExecute: flags&4 != 0}
	if flags&8 != 0 {
		if *off+2 > len(b) {
			return TriggerFilter{}, fmt.Errorf("wsv: truncated trigger data kind")
		}
		k := block.InstructionKind(uint16(b[*off]) | uint16(b[*off+1])<<8)
		*off += 2
		f.DataKind = &k
	}
	return f, nil
}

func encodeRepeats(dst []byte, r Repeats) []byte {
	if r.Forever {
		dst = append(dst, 1)
	} else {
		dst = append(dst, 0)
	}
	dst = append(dst, byte(r.Count), byte(r.Count>>8), byte(r.Count>>16), byte(r.Count>>24))
	return dst
}

func decodeRepeats(b []byte, off *int) (Repeats, error) {
	if *off+5 > len(b) {
		return Repeats{}, fmt.Errorf("wsv: truncated repeats")
	}
	forever := b[*off] != 0
	count := uint32(b[*off+1]) | uint32(b[*off+2])<<8 | uint32(b[*off+3])<<16 | uint32(b[*off+4])<<24
	*off += 5
	return Repeats{Forever: forever, Count: count}, nil
}

func encodeTransactionPayload(dst []byte, p block.TransactionPayload) []byte {
	dst = appendU64(dst, uint64(len(p.Instructions)))
	for _, ins := range p.Instructions {
		dst = append(dst, byte(ins.Kind), byte(ins.Kind>>8))
		dst = appendStr(dst, string(ins.Payload))
	}
	return dst
}

func decodeTransactionPayload(b []byte, off *int) (block.TransactionPayload, error) {
	n, err := readU64(b, off)
	if err != nil {
		return block.TransactionPayload{}, err
	}
	instrs := make([]block.Instruction, 0, n)
	for i := uint64(0); i < n; i++ {
		if *off+2 > len(b) {
			return block.TransactionPayload{}, fmt.Errorf("wsv: truncated instruction kind")
		}
		kind := block.InstructionKind(uint16(b[*off]) | uint16(b[*off+1])<<8)
		*off += 2
		payload, err := readStr(b, off)
		if err != nil {
			return block.TransactionPayload{}, err
		}
		instrs = append(instrs, block.Instruction{Kind: kind, Payload: []byte(payload)})
	}
	return block.TransactionPayload{Instructions: instrs}, nil
}

func decodeTriggerIdPayload(b []byte) (block.TriggerId, error) {
	off := 0
	s, err := readStr(b, &off)
	return block.TriggerId(s), err
}

func EncodeTriggerId(id block.TriggerId) []byte { return appendStr(nil, string(id)) }

// --- SetParameter ---

func EncodeSetParameter(name string, value uint64) []byte {
	dst := appendStr(nil, name)
	dst = appendU64(dst, value)
	return dst
}

func decodeSetParameter(b []byte) (string, uint64, error) {
	off := 0
	name, err := readStr(b, &off)
	if err != nil {
		return "", 0, err
	}
	value, err := readU64(b, &off)
	return name, value, err
}

// --- UpgradeExecutor ---

func EncodeUpgradeExecutor(code []byte) []byte { return appendStr(nil, string(code)) }

func decodeUpgradeExecutor(b []byte) ([]byte, error) {
	off := 0
	s, err := readStr(b, &off)
	return []byte(s), err
}
