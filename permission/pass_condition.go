package permission

import "kintsugi.dev/node/block"

// PassCondition is the closed set of rules that decide who may confer
// (grant or revoke) a given token kind (§4.5).
type PassCondition int

const (
	// PassGenesisOnly: only the genesis block may confer this token.
	PassGenesisOnly PassCondition = iota
	// PassEntityOwner: only the target entity's registering account may
	// confer this token (e.g. an asset definition's owner).
	PassEntityOwner
	// PassDomainOwner: only the owner of the entity's domain may confer
	// this token.
	PassDomainOwner
	// PassAlreadyHolding: the acting account must already hold the token
	// itself before it may grant/revoke it to/from another account.
	PassAlreadyHolding
)

// passConditionTable maps every token kind to the pass condition that gates
// granting or revoking it. This is the closed table named in §4.5; adding a
// token kind requires adding its row here.
var passConditionTable = map[TokenKind]PassCondition{
	TokenRegisterDomain:          PassGenesisOnly,
	TokenUnregisterDomain:        PassGenesisOnly,
	TokenModifyDomain:            PassDomainOwner,
	TokenRegisterAccount:         PassDomainOwner,
	TokenUnregisterAccount:       PassDomainOwner,
	TokenModifyAccount:           PassEntityOwner,
	TokenRegisterAssetDefinition: PassDomainOwner,
	TokenUnregisterAssetDefinition: PassEntityOwner,
	TokenModifyAssetDefinition:   PassEntityOwner,
	TokenMintAsset:               PassEntityOwner,
	TokenBurnAsset:               PassEntityOwner,
	TokenTransferAsset:           PassAlreadyHolding,
	TokenManagePeers:             PassGenesisOnly,
	TokenManageRoles:             PassGenesisOnly,
	TokenManageParameters:        PassGenesisOnly,
	TokenExecuteTrigger:          PassEntityOwner,
	TokenModifyTrigger:           PassEntityOwner,
	TokenUpgradeExecutor:         PassGenesisOnly,
}

// PassConditionFor returns tok.Kind's gating rule.
func PassConditionFor(kind TokenKind) PassCondition {
	cond, ok := passConditionTable[kind]
	if !ok {
		return PassGenesisOnly
	}
	return cond
}

// ConferContext supplies the entity/domain ownership facts CanConfer needs;
// fields that do not apply to the token kind under check may be left nil.
type ConferContext struct {
	Genesis     bool
	EntityOwner *block.AccountId
	DomainOwner *block.AccountId
}

// CanConfer reports whether acting may grant or revoke tok, per tok.Kind's
// pass condition. Mirrors the teacher's reject/reason return shape from
// RejectCoreExtTxPreActivation, inverted to an allow/reason pair.
func CanConfer(acting block.AccountId, ctx ConferContext, grants GrantSet, tok Token) (bool, string) {
	switch PassConditionFor(tok.Kind) {
	case PassGenesisOnly:
		if !ctx.Genesis {
			return false, "only the genesis block may confer " + tok.Kind.String()
		}
		return true, ""
	case PassEntityOwner:
		if ctx.EntityOwner == nil || *ctx.EntityOwner != acting {
			return false, "only the entity owner may confer " + tok.Kind.String()
		}
		return true, ""
	case PassDomainOwner:
		if ctx.DomainOwner == nil || *ctx.DomainOwner != acting {
			return false, "only the domain owner may confer " + tok.Kind.String()
		}
		return true, ""
	case PassAlreadyHolding:
		if !IsGranted(grants, acting, tok) {
			return false, "acting account must already hold " + tok.Kind.String() + " to confer it"
		}
		return true, ""
	default:
		return false, "unknown pass condition"
	}
}

// CanConferRole validates granting/revoking every token attached to role,
// per §4.5's "Grant/Revoke of a role expands to validating grant/revoke of
// each of its tokens."
func CanConferRole(acting block.AccountId, ctx ConferContext, grants GrantSet, roleTokens []Token) (bool, string) {
	for _, tok := range roleTokens {
		if ok, reason := CanConfer(acting, ctx, grants, tok); !ok {
			return false, reason
		}
	}
	return true, ""
}
