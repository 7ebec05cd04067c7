package wsv

import (
	"kintsugi.dev/node/block"
	"kintsugi.dev/node/hash"
	"kintsugi.dev/node/permission"
)

// This file is the read-only query surface over World (§4.4.6): functions
// here return copies of the entity structs, but the maps and slices inside
// them (Metadata, Roles, Grants, Tokens) are shared with the World, not
// copied.

func (w *World) Domain(id block.DomainId) (Domain, bool) {
	d, ok := w.Domains[id]
	if !ok {
		return Domain{}, false
	}
	return *d, true
}

func (w *World) AllDomains() []Domain {
	out := make([]Domain, 0, len(w.Domains))
	for _, d := range w.Domains {
		out = append(out, *d)
	}
	return out
}

func (w *World) Account(id block.AccountId) (Account, bool) {
	a, ok := w.Accounts[id]
	if !ok {
		return Account{}, false
	}
	return *a, true
}

func (w *World) AccountsInDomain(domain block.DomainId) []Account {
	var out []Account
	for id, a := range w.Accounts {
		if id.Domain == domain {
			out = append(out, *a)
		}
	}
	return out
}

func (w *World) AssetDefinition(id block.AssetDefinitionId) (AssetDefinition, bool) {
	d, ok := w.AssetDefinitions[id]
	if !ok {
		return AssetDefinition{}, false
	}
	return *d, true
}

func (w *World) Asset(id block.AssetId) (Asset, bool) {
	a, ok := w.Assets[id]
	if !ok {
		return Asset{}, false
	}
	return *a, true
}

func (w *World) AssetsOf(acc block.AccountId) []Asset {
	var out []Asset
	for id, a := range w.Assets {
		if id.Account == acc {
			out = append(out, *a)
		}
	}
	return out
}

func (w *World) Role(id block.RoleId) (Role, bool) {
	r, ok := w.Roles[id]
	if !ok {
		return Role{}, false
	}
	return *r, true
}

// PermissionsOf returns every token acc holds, directly or via a role,
// matching the union IsGranted checks against (§4.5).
func (w *World) PermissionsOf(acc block.AccountId) []permission.Token {
	a, ok := w.Accounts[acc]
	if !ok {
		return nil
	}
	seen := make(map[permission.Token]struct{}, len(a.Grants))
	out := make([]permission.Token, 0, len(a.Grants))
	for tok := range a.Grants {
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	for role := range a.Roles {
		r, ok := w.Roles[role]
		if !ok {
			continue
		}
		for _, tok := range r.Tokens {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}
	return out
}

func (w *World) Peers() []block.PeerId {
	out := make([]block.PeerId, 0, len(w.Peers))
	for p := range w.Peers {
		out = append(out, p)
	}
	return out
}

func (w *World) GetParameters() Parameters { return w.Parameters }

func (w *World) Trigger(id block.TriggerId) (Trigger, bool) { return w.Triggers.Get(id) }

// TransactionHeight reports the height a transaction committed at, per the
// consensus.TxExecutor contract.
func (w *World) TransactionHeight(txHash hash.Hash[hash.Tx]) (uint64, bool) {
	return w.Committed(txHash)
}
