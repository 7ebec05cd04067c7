// Package permission implements the closed permission-token set and the
// pass-condition checks that gate granting and revoking them (§4.5).
// Generalized from the teacher's CORE_EXT admission-policy pattern in
// node/policy_core_ext.go: a profile/grant lookup decides active/inactive,
// and the caller gets back a reject verdict plus a human-readable reason.
package permission

import "kintsugi.dev/node/block"

// TokenKind is the closed set of privileged operations a grant can confer.
type TokenKind int

const (
	TokenRegisterDomain TokenKind = iota
	TokenUnregisterDomain
	TokenModifyDomain
	TokenRegisterAccount
	TokenUnregisterAccount
	TokenModifyAccount
	TokenRegisterAssetDefinition
	TokenUnregisterAssetDefinition
	TokenModifyAssetDefinition
	TokenMintAsset
	TokenBurnAsset
	TokenTransferAsset
	TokenManagePeers
	TokenManageRoles
	TokenManageParameters
	TokenExecuteTrigger
	TokenModifyTrigger
	TokenUpgradeExecutor
)

func (k TokenKind) String() string {
	names := [...]string{
		"RegisterDomain", "UnregisterDomain", "ModifyDomain",
		"RegisterAccount", "UnregisterAccount", "ModifyAccount",
		"RegisterAssetDefinition", "UnregisterAssetDefinition", "ModifyAssetDefinition",
		"MintAsset", "BurnAsset", "TransferAsset",
		"ManagePeers", "ManageRoles", "ManageParameters",
		"ExecuteTrigger", "ModifyTrigger", "UpgradeExecutor",
	}
	if int(k) < 0 || int(k) >= len(names) {
		return "Unknown"
	}
	return names[k]
}

// Token is a typed, serialisable permission tag parameterised by the
// target entity it applies to. Target is the entity's stringified id
// (AccountId/AssetId/DomainId/... .String()); empty for tokens with no
// natural single target (ManagePeers, UpgradeExecutor). ManageParameters
// is scoped to the parameter's name.
type Token struct {
	Kind   TokenKind
	Target string
}

func NewToken(kind TokenKind, target string) Token {
	return Token{Kind: kind, Target: target}
}

// GrantSet is the minimal view over an account's direct and role-derived
// grants that the policy engine needs. wsv.World implements this.
type GrantSet interface {
	// HasDirectGrant reports whether acc directly holds tok.
	HasDirectGrant(acc block.AccountId, tok Token) bool
	// RolesOf returns the roles acc holds.
	RolesOf(acc block.AccountId) []block.RoleId
	// RoleGrants returns the tokens granted to role.
	RoleGrants(role block.RoleId) []Token
}

// IsGranted reports whether acc holds tok, directly or through any role it
// holds (§4.5: "direct grants... and grants attached to any role held").
func IsGranted(grants GrantSet, acc block.AccountId, tok Token) bool {
	if grants.HasDirectGrant(acc, tok) {
		return true
	}
	for _, role := range grants.RolesOf(acc) {
		for _, t := range grants.RoleGrants(role) {
			if t == tok {
				return true
			}
		}
	}
	return false
}
