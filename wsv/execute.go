package wsv

import (
	"kintsugi.dev/node/block"
	"kintsugi.dev/node/crypto"
	"kintsugi.dev/node/events"
	"kintsugi.dev/node/hash"
	"kintsugi.dev/node/permission"
)

// requiredToken maps an instruction kind to the permission token that gates
// it (§4.5). SetKeyValue, RemoveKeyValue, GrantPermission and
// RevokePermission map to no token and return ok=false: authorize lets them
// through, and GrantPermission/RevokePermission are checked by CanConfer
// instead.
func requiredToken(kind block.InstructionKind) (permission.TokenKind, bool) {
	switch kind {
	case block.InstrRegisterDomain:
		return permission.TokenRegisterDomain, true
	case block.InstrUnregisterDomain:
		return permission.TokenUnregisterDomain, true
	case block.InstrRegisterAccount:
		return permission.TokenRegisterAccount, true
	case block.InstrUnregisterAccount:
		return permission.TokenUnregisterAccount, true
	case block.InstrRegisterAssetDefinition:
		return permission.TokenRegisterAssetDefinition, true
	case block.InstrUnregisterAssetDefinition:
		return permission.TokenUnregisterAssetDefinition, true
	case block.InstrMintAsset:
		return permission.TokenMintAsset, true
	case block.InstrBurnAsset:
		return permission.TokenBurnAsset, true
	case block.InstrTransferAsset:
		return permission.TokenTransferAsset, true
	case block.InstrGrantRole, block.InstrRevokeRole, block.InstrRegisterRole, block.InstrUnregisterRole:
		return permission.TokenManageRoles, true
	case block.InstrRegisterTrigger, block.InstrUnregisterTrigger:
		return permission.TokenModifyTrigger, true
	case block.InstrExecuteTrigger:
		return permission.TokenExecuteTrigger, true
	case block.InstrSetParameter:
		return permission.TokenManageParameters, true
	case block.InstrUpgradeExecutor:
		return permission.TokenUpgradeExecutor, true
	default:
		return 0, false
	}
}

// authorize checks that authority holds the token requiredToken names for
// kind, scoped to target. GrantPermission/RevokePermission instructions are
// authorized separately by CanConfer in executeGrantPermission, since they
// gate conferring a token rather than exercising one.
func authorize(w *World, authority block.AccountId, kind block.InstructionKind, target string, genesis bool) error {
	if genesis {
		return nil
	}
	tokKind, ok := requiredToken(kind)
	if !ok {
		return nil
	}
	tok := permission.NewToken(tokKind, target)
	if !permission.IsGranted(w, authority, tok) {
		return permDenied("authority " + authority.String() + " lacks " + tokKind.String() + " on " + target)
	}
	return nil
}

// executeInstructions runs every instruction of payload against w in order,
// stopping at the first failure, and returns the rejection reason for that
// failure (nil if all instructions succeeded). Per §4.3.1/§4.4.2 a rejected
// transaction's earlier, already-applied instructions are NOT rolled back by
// this function alone — callers that need atomicity (ApplyBlock, trigger
// execution) run it against a World.Clone() and only adopt the result on
// success.
func executeInstructions(w *World, authority block.AccountId, payload block.TransactionPayload, genesis bool, sink events.Sink) *block.RejectionReason {
	if payload.Wasm != nil {
		return &block.RejectionReason{Code: "UNSUPPORTED", Message: "wasm payloads are not executable by this executor"}
	}
	for _, ins := range payload.Instructions {
		if err := executeInstruction(w, authority, ins, genesis, sink); err != nil {
			return &block.RejectionReason{Code: rejectionCode(err), Message: err.Error()}
		}
	}
	return nil
}

func rejectionCode(err error) string {
	if e, ok := err.(*Error); ok {
		return string(e.Code)
	}
	return string(ErrInvalidInstruction)
}

func executeInstruction(w *World, authority block.AccountId, ins block.Instruction, genesis bool, sink events.Sink) error {
	switch ins.Kind {
	case block.InstrRegisterDomain:
		id, owner, err := decodeRegisterDomain(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		if err := authorize(w, authority, ins.Kind, string(id), genesis); err != nil {
			return err
		}
		if _, exists := w.Domains[id]; exists {
			return alreadyExists("domain already registered: " + string(id))
		}
		w.Domains[id] = &Domain{Id: id, Owner: owner, Metadata: make(map[string]string)}
		emit(sink, events.DataDomainRegistered, string(id))
		return nil

	case block.InstrUnregisterDomain:
		id, err := decodeDomainId(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		if err := authorize(w, authority, ins.Kind, string(id), genesis); err != nil {
			return err
		}
		if _, exists := w.Domains[id]; !exists {
			return notFound("domain not found: " + string(id))
		}
		delete(w.Domains, id)
		emit(sink, events.DataDomainUnregistered, string(id))
		return nil

	case block.InstrRegisterAccount:
		id, err := decodeAccountIdPayload(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		if _, ok := w.Domains[id.Domain]; !ok {
			return notFound("domain not found: " + string(id.Domain))
		}
		if err := authorize(w, authority, ins.Kind, string(id.Domain), genesis); err != nil {
			return err
		}
		if _, exists := w.Accounts[id]; exists {
			return alreadyExists("account already registered: " + id.String())
		}
		w.Accounts[id] = &Account{
			Id:       id,
			Metadata: make(map[string]string),
			Roles:    make(map[block.RoleId]struct{}),
			Grants:   make(map[permission.Token]struct{}),
		}
		emit(sink, events.DataAccountRegistered, id.String())
		return nil

	case block.InstrUnregisterAccount:
		id, err := decodeAccountIdPayload(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		if err := authorize(w, authority, ins.Kind, string(id.Domain), genesis); err != nil {
			return err
		}
		if _, exists := w.Accounts[id]; !exists {
			return notFound("account not found: " + id.String())
		}
		delete(w.Accounts, id)
		emit(sink, events.DataAccountUnregistered, id.String())
		return nil

	case block.InstrRegisterAssetDefinition:
		id, owner, mintable, err := decodeRegisterAssetDefinition(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		if _, ok := w.Domains[id.Domain]; !ok {
			return notFound("domain not found: " + string(id.Domain))
		}
		if err := authorize(w, authority, ins.Kind, string(id.Domain), genesis); err != nil {
			return err
		}
		if _, exists := w.AssetDefinitions[id]; exists {
			return alreadyExists("asset definition already registered: " + id.String())
		}
		w.AssetDefinitions[id] = &AssetDefinition{Id: id, Owner: owner, Mintable: mintable}
		emit(sink, events.DataAssetDefinitionRegistered, id.String())
		return nil

	case block.InstrUnregisterAssetDefinition:
		id, err := decodeAssetDefinitionIdPayload(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		def, ok := w.AssetDefinitions[id]
		if !ok {
			return notFound("asset definition not found: " + id.String())
		}
		if err := authorize(w, authority, ins.Kind, def.Owner.String(), genesis); err != nil {
			return err
		}
		delete(w.AssetDefinitions, id)
		emit(sink, events.DataAssetDefinitionUnregistered, id.String())
		return nil

	case block.InstrMintAsset:
		id, qty, err := decodeAssetQuantity(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		def, ok := w.AssetDefinitions[id.Definition]
		if !ok {
			return notFound("asset definition not found: " + id.Definition.String())
		}
		if !def.Mintable {
			return invalidInstr("asset definition is not mintable: " + id.Definition.String())
		}
		if err := authorize(w, authority, ins.Kind, def.Owner.String(), genesis); err != nil {
			return err
		}
		asset := w.Assets[id]
		if asset == nil {
			asset = &Asset{Id: id}
			w.Assets[id] = asset
		}
		sum := asset.Quantity + qty
		if sum < asset.Quantity {
			return &Error{Code: ErrOverflow, Msg: "mint overflow on " + id.String()}
		}
		asset.Quantity = sum
		emit(sink, events.DataAssetMinted, id.String())
		return nil

	case block.InstrBurnAsset:
		id, qty, err := decodeAssetQuantity(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		def, ok := w.AssetDefinitions[id.Definition]
		if !ok {
			return notFound("asset definition not found: " + id.Definition.String())
		}
		if err := authorize(w, authority, ins.Kind, def.Owner.String(), genesis); err != nil {
			return err
		}
		asset, ok := w.Assets[id]
		if !ok || asset.Quantity < qty {
			return &Error{Code: ErrNotEnoughQuantity, Msg: "insufficient balance to burn from " + id.String()}
		}
		asset.Quantity -= qty
		emit(sink, events.DataAssetBurned, id.String())
		return nil

	case block.InstrTransferAsset:
		def, from, to, qty, err := decodeTransferAsset(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		if _, ok := w.AssetDefinitions[def]; !ok {
			return notFound("asset definition not found: " + def.String())
		}
		if _, ok := w.Accounts[to]; !ok {
			return notFound("destination account not found: " + to.String())
		}
		fromId := block.AssetId{Definition: def, Account: from}
		toId := block.AssetId{Definition: def, Account: to}
		if err := authorize(w, authority, ins.Kind, fromId.String(), genesis); err != nil {
			return err
		}
		fromAsset, ok := w.Assets[fromId]
		if !ok || fromAsset.Quantity < qty {
			return &Error{Code: ErrNotEnoughQuantity, Msg: "insufficient balance to transfer from " + fromId.String()}
		}
		toAsset := w.Assets[toId]
		if toAsset == nil {
			toAsset = &Asset{Id: toId}
			w.Assets[toId] = toAsset
		}
		sum := toAsset.Quantity + qty
		if sum < toAsset.Quantity {
			return &Error{Code: ErrOverflow, Msg: "transfer overflow on " + toId.String()}
		}
		fromAsset.Quantity -= qty
		toAsset.Quantity = sum
		emit(sink, events.DataAssetTransferred, fromId.String())
		return nil

	case block.InstrSetKeyValue:
		target, key, value, err := decodeSetKeyValue(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		if err := setMetadata(w, authority, target, key, value, genesis); err != nil {
			return err
		}
		emit(sink, events.DataMetadataSet, target)
		return nil

	case block.InstrRemoveKeyValue:
		target, key, err := decodeRemoveKeyValue(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		if err := removeMetadata(w, authority, target, key); err != nil {
			return err
		}
		emit(sink, events.DataMetadataRemoved, target)
		return nil

	case block.InstrGrantPermission:
		acc, tok, err := decodeAccountToken(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		if err := executeGrantPermission(w, authority, acc, tok, genesis); err != nil {
			return err
		}
		emit(sink, events.DataPermissionGranted, acc.String())
		return nil

	case block.InstrRevokePermission:
		acc, tok, err := decodeAccountToken(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		if err := executeRevokePermission(w, authority, acc, tok, genesis); err != nil {
			return err
		}
		emit(sink, events.DataPermissionRevoked, acc.String())
		return nil

	case block.InstrRegisterRole:
		id, tokens, err := decodeRegisterRole(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		if err := authorize(w, authority, ins.Kind, string(id), genesis); err != nil {
			return err
		}
		if _, exists := w.Roles[id]; exists {
			return alreadyExists("role already registered: " + string(id))
		}
		w.Roles[id] = &Role{Id: id, Tokens: tokens}
		emit(sink, events.DataRoleRegistered, string(id))
		return nil

	case block.InstrUnregisterRole:
		id, err := decodeRoleId(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		if err := authorize(w, authority, ins.Kind, string(id), genesis); err != nil {
			return err
		}
		if _, exists := w.Roles[id]; !exists {
			return notFound("role not found: " + string(id))
		}
		delete(w.Roles, id)
		for _, acc := range w.Accounts {
			delete(acc.Roles, id)
		}
		emit(sink, events.DataRoleUnregistered, string(id))
		return nil

	case block.InstrGrantRole:
		acc, role, err := decodeAccountRole(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		if err := authorize(w, authority, ins.Kind, string(role), genesis); err != nil {
			return err
		}
		if err := w.grantRole(acc, role); err != nil {
			return err
		}
		emit(sink, events.DataRoleGranted, acc.String())
		return nil

	case block.InstrRevokeRole:
		acc, role, err := decodeAccountRole(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		if err := authorize(w, authority, ins.Kind, string(role), genesis); err != nil {
			return err
		}
		if err := w.revokeRole(acc, role); err != nil {
			return err
		}
		emit(sink, events.DataRoleRevoked, acc.String())
		return nil

	case block.InstrRegisterTrigger:
		t, err := decodeRegisterTrigger(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		if err := authorize(w, authority, ins.Kind, t.Owner.String(), genesis); err != nil {
			return err
		}
		if err := w.Triggers.Register(t); err != nil {
			return err
		}
		emit(sink, events.DataTriggerRegistered, string(t.Id))
		return nil

	case block.InstrUnregisterTrigger:
		id, err := decodeTriggerIdPayload(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		t, ok := w.Triggers.Get(id)
		if !ok {
			return notFound("trigger not found: " + string(id))
		}
		if err := authorize(w, authority, ins.Kind, t.Owner.String(), genesis); err != nil {
			return err
		}
		if err := w.Triggers.Unregister(id); err != nil {
			return err
		}
		emit(sink, events.DataTriggerUnregistered, string(id))
		return nil

	case block.InstrExecuteTrigger:
		id, err := decodeTriggerIdPayload(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		t, ok := w.Triggers.Get(id)
		if !ok {
			return notFound("trigger not found: " + string(id))
		}
		if err := authorize(w, authority, ins.Kind, t.Owner.String(), genesis); err != nil {
			return err
		}
		w.Triggers.MatchExecute(id)
		return nil

	case block.InstrSetParameter:
		name, value, err := decodeSetParameter(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		if err := authorize(w, authority, ins.Kind, name, genesis); err != nil {
			return err
		}
		if err := applyParameter(w, name, value); err != nil {
			return err
		}
		emit(sink, events.DataParameterSet, name)
		return nil

	case block.InstrUpgradeExecutor:
		code, err := decodeUpgradeExecutor(ins.Payload)
		if err != nil {
			return invalidInstr(err.Error())
		}
		if err := authorize(w, authority, ins.Kind, "", genesis); err != nil {
			return err
		}
		w.ExecutorCode = code
		emit(sink, events.DataExecutorUpgraded, "")
		return nil

	default:
		return invalidInstr("unknown instruction kind")
	}
}

func emit(sink events.Sink, kind events.DataEventKind, target string) {
	if sink == nil {
		return
	}
	sink(events.NewDataEvent(kind, target))
}

func executeGrantPermission(w *World, authority, acc block.AccountId, tok permission.Token, genesis bool) error {
	if _, ok := w.Accounts[acc]; !ok {
		return notFound("account not found: " + acc.String())
	}
	ctx := conferContextFor(w, tok)
	ctx.Genesis = genesis
	if ok, reason := permission.CanConfer(authority, ctx, w, tok); !ok {
		return permDenied(reason)
	}
	return w.grant(acc, tok)
}

func executeRevokePermission(w *World, authority, acc block.AccountId, tok permission.Token, genesis bool) error {
	if _, ok := w.Accounts[acc]; !ok {
		return notFound("account not found: " + acc.String())
	}
	ctx := conferContextFor(w, tok)
	ctx.Genesis = genesis
	if ok, reason := permission.CanConfer(authority, ctx, w, tok); !ok {
		return permDenied(reason)
	}
	return w.revoke(acc, tok)
}

// conferContextFor resolves the entity/domain owner facts CanConfer needs
// from tok.Target, which is the stringified id of the entity the token
// applies to (empty for tokens with no natural single target).
func conferContextFor(w *World, tok permission.Token) permission.ConferContext {
	var ctx permission.ConferContext
	if tok.Target == "" {
		return ctx
	}
	for id, def := range w.AssetDefinitions {
		if id.String() == tok.Target {
			owner := def.Owner
			ctx.EntityOwner = &owner
			if dom, ok := w.Domains[id.Domain]; ok {
				domOwner := dom.Owner
				ctx.DomainOwner = &domOwner
			}
			return ctx
		}
	}
	for id, dom := range w.Domains {
		if string(id) == tok.Target {
			owner := dom.Owner
			ctx.DomainOwner = &owner
			ctx.EntityOwner = &owner
			return ctx
		}
	}
	return ctx
}

func setMetadata(w *World, authority block.AccountId, target, key, value string, genesis bool) error {
	for id, acc := range w.Accounts {
		if id.String() == target {
			if err := authorize(w, authority, block.InstrSetKeyValue, target, genesis); err != nil {
				return err
			}
			if acc.Metadata == nil {
				acc.Metadata = make(map[string]string)
			}
			acc.Metadata[key] = value
			return nil
		}
	}
	for id, dom := range w.Domains {
		if string(id) == target {
			if err := authorize(w, authority, block.InstrSetKeyValue, target, genesis); err != nil {
				return err
			}
			if dom.Metadata == nil {
				dom.Metadata = make(map[string]string)
			}
			dom.Metadata[key] = value
			return nil
		}
	}
	return notFound("metadata target not found: " + target)
}

func removeMetadata(w *World, authority block.AccountId, target, key string) error {
	for id, acc := range w.Accounts {
		if id.String() == target {
			delete(acc.Metadata, key)
			return nil
		}
	}
	for id, dom := range w.Domains {
		if string(id) == target {
			delete(dom.Metadata, key)
			return nil
		}
	}
	return notFound("metadata target not found: " + target)
}

func applyParameter(w *World, name string, value uint64) error {
	switch name {
	case "MaxAccountMetadataEntries":
		w.Parameters.MaxAccountMetadataEntries = int(value)
	case "MaxAssetMetadataEntries":
		w.Parameters.MaxAssetMetadataEntries = int(value)
	case "MaxDomainMetadataEntries":
		w.Parameters.MaxDomainMetadataEntries = int(value)
	case "MaxTransactionInstructions":
		w.Parameters.MaxTransactionInstructions = int(value)
	case "MaxTransactionBytes":
		w.Parameters.MaxTransactionBytes = int(value)
	case "WasmFuelLimit":
		w.Parameters.WasmFuelLimit = value
	case "WasmMaxMemory":
		w.Parameters.WasmMaxMemory = value
	default:
		return invalidInstr("unknown parameter: " + name)
	}
	return nil
}

// ExecuteScratch satisfies consensus.TxExecutor: it runs tx against a clone
// of w so a rejected transaction never mutates the live state (§4.3.1).
func (w *World) ExecuteScratch(tx block.SignedTransaction) *block.RejectionReason {
	scratch := w.Clone()
	return executeInstructions(scratch, tx.Authority, tx.Payload, false, nil)
}

// Accept runs the pre-execution checks of §4.3.3 step 6: chain scoping,
// clock drift, authority existence and signature, and per-transaction size
// limits. It does not execute the transaction's instructions.
func (w *World) Accept(tx block.SignedTransaction, nowMs uint64, maxClockDriftMs uint64) error {
	if tx.ChainId != w.ChainId {
		return invalidInstr("transaction chain id does not match this chain")
	}
	if tx.CreatedAtMs > nowMs && tx.CreatedAtMs-nowMs > maxClockDriftMs {
		return invalidInstr("transaction timestamp too far in the future")
	}
	if nowMs > tx.CreatedAtMs && nowMs-tx.CreatedAtMs > maxClockDriftMs {
		return invalidInstr("transaction timestamp too far in the past")
	}
	acc, ok := w.Accounts[tx.Authority]
	if !ok {
		return notFound("authority account not found: " + tx.Authority.String())
	}
	if !crypto.Verify(acc.PublicKey, tx.SigningBytes(), tx.Signature) {
		return permDenied("invalid transaction signature for " + tx.Authority.String())
	}
	if w.Parameters.MaxTransactionInstructions > 0 && tx.Payload.Wasm == nil &&
		len(tx.Payload.Instructions) > w.Parameters.MaxTransactionInstructions {
		return invalidInstr("transaction exceeds max instruction count")
	}
	if w.Parameters.MaxTransactionBytes > 0 && len(tx.SigningBytes()) > w.Parameters.MaxTransactionBytes {
		return invalidInstr("transaction exceeds max byte size")
	}
	return nil
}

// Committed satisfies consensus.TxExecutor by delegating to the
// tx-hash-to-height map maintained by ApplyBlock.
func (w *World) Committed(txHash hash.Hash[hash.Tx]) (uint64, bool) {
	height, ok := w.committedHeights[txHash]
	return height, ok
}
