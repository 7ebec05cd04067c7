package permission

import (
	"testing"

	"kintsugi.dev/node/block"
)

type fakeGrants struct {
	direct map[block.AccountId][]Token
	roles  map[block.AccountId][]block.RoleId
	roleTk map[block.RoleId][]Token
}

func (g *fakeGrants) HasDirectGrant(acc block.AccountId, tok Token) bool {
	for _, t := range g.direct[acc] {
		if t == tok {
			return true
		}
	}
	return false
}

func (g *fakeGrants) RolesOf(acc block.AccountId) []block.RoleId { return g.roles[acc] }
func (g *fakeGrants) RoleGrants(role block.RoleId) []Token       { return g.roleTk[role] }

func TestIsGrantedDirect(t *testing.T) {
	acc := block.AccountId{Name: "alice", Domain: "wonderland"}
	tok := NewToken(TokenMintAsset, "rose#wonderland")
	g := &fakeGrants{direct: map[block.AccountId][]Token{acc: {tok}}}
	if !IsGranted(g, acc, tok) {
		t.Fatalf("expected direct grant to be found")
	}
}

func TestIsGrantedThroughRole(t *testing.T) {
	acc := block.AccountId{Name: "bob", Domain: "wonderland"}
	tok := NewToken(TokenBurnAsset, "rose#wonderland")
	g := &fakeGrants{
		roles:  map[block.AccountId][]block.RoleId{acc: {"admin"}},
		roleTk: map[block.RoleId][]Token{"admin": {tok}},
	}
	if !IsGranted(g, acc, tok) {
		t.Fatalf("expected role grant to be found")
	}
}

func TestIsGrantedFalseWhenAbsent(t *testing.T) {
	acc := block.AccountId{Name: "carol", Domain: "wonderland"}
	tok := NewToken(TokenManagePeers, "")
	g := &fakeGrants{}
	if IsGranted(g, acc, tok) {
		t.Fatalf("expected no grant")
	}
}

func TestCanConferGenesisOnly(t *testing.T) {
	acc := block.AccountId{Name: "alice", Domain: "wonderland"}
	tok := NewToken(TokenManagePeers, "")
	g := &fakeGrants{}

	if ok, _ := CanConfer(acc, ConferContext{Genesis: false}, g, tok); ok {
		t.Fatalf("expected non-genesis conferral of ManagePeers to be rejected")
	}
	if ok, _ := CanConfer(acc, ConferContext{Genesis: true}, g, tok); !ok {
		t.Fatalf("expected genesis conferral of ManagePeers to be allowed")
	}
}

func TestCanConferAlreadyHolding(t *testing.T) {
	acc := block.AccountId{Name: "alice", Domain: "wonderland"}
	tok := NewToken(TokenTransferAsset, "rose#wonderland#alice@wonderland")
	g := &fakeGrants{direct: map[block.AccountId][]Token{acc: {tok}}}

	if ok, _ := CanConfer(acc, ConferContext{}, g, tok); !ok {
		t.Fatalf("expected already-holding account to confer TransferAsset")
	}

	other := block.AccountId{Name: "bob", Domain: "wonderland"}
	if ok, _ := CanConfer(other, ConferContext{}, g, tok); ok {
		t.Fatalf("expected non-holder to be rejected")
	}
}

func TestCanConferRoleExpandsToEachToken(t *testing.T) {
	acc := block.AccountId{Name: "alice", Domain: "wonderland"}
	domainOwner := acc
	tok1 := NewToken(TokenModifyDomain, "wonderland")
	tok2 := NewToken(TokenManagePeers, "")
	g := &fakeGrants{}

	ok, _ := CanConferRole(acc, ConferContext{DomainOwner: &domainOwner, Genesis: true}, g, []Token{tok1, tok2})
	if !ok {
		t.Fatalf("expected role conferral to pass when every token's condition passes")
	}

	ok, _ = CanConferRole(acc, ConferContext{DomainOwner: &domainOwner, Genesis: false}, g, []Token{tok1, tok2})
	if ok {
		t.Fatalf("expected role conferral to fail when any token's condition fails")
	}
}
