package wsv

import (
	"kintsugi.dev/node/block"
	"kintsugi.dev/node/permission"
)

// World implements permission.GrantSet so the instruction executor can
// consult IsGranted/CanConfer without permission depending on wsv.

func (w *World) HasDirectGrant(acc block.AccountId, tok permission.Token) bool {
	a, ok := w.Accounts[acc]
	if !ok {
		return false
	}
	_, granted := a.Grants[tok]
	return granted
}

func (w *World) RolesOf(acc block.AccountId) []block.RoleId {
	a, ok := w.Accounts[acc]
	if !ok {
		return nil
	}
	out := make([]block.RoleId, 0, len(a.Roles))
	for r := range a.Roles {
		out = append(out, r)
	}
	return out
}

func (w *World) RoleGrants(role block.RoleId) []permission.Token {
	r, ok := w.Roles[role]
	if !ok {
		return nil
	}
	return r.Tokens
}

// grant records tok as a direct grant on acc.
func (w *World) grant(acc block.AccountId, tok permission.Token) error {
	a, ok := w.Accounts[acc]
	if !ok {
		return notFound("account not found: " + acc.String())
	}
	if a.Grants == nil {
		a.Grants = make(map[permission.Token]struct{})
	}
	a.Grants[tok] = struct{}{}
	return nil
}

func (w *World) revoke(acc block.AccountId, tok permission.Token) error {
	a, ok := w.Accounts[acc]
	if !ok {
		return notFound("account not found: " + acc.String())
	}
	delete(a.Grants, tok)
	return nil
}

func (w *World) grantRole(acc block.AccountId, role block.RoleId) error {
	a, ok := w.Accounts[acc]
	if !ok {
		return notFound("account not found: " + acc.String())
	}
	if _, ok := w.Roles[role]; !ok {
		return notFound("role not found: " + string(role))
	}
	if a.Roles == nil {
		a.Roles = make(map[block.RoleId]struct{})
	}
	a.Roles[role] = struct{}{}
	return nil
}

func (w *World) revokeRole(acc block.AccountId, role block.RoleId) error {
	a, ok := w.Accounts[acc]
	if !ok {
		return notFound("account not found: " + acc.String())
	}
	delete(a.Roles, role)
	return nil
}
