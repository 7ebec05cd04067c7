package consensus

import (
	"kintsugi.dev/node/block"
	"kintsugi.dev/node/crypto"
)

func verifyHeader(pub crypto.PublicKey, header block.Header, sig crypto.Signature) bool {
	return crypto.Verify(pub, header.EncodeForSigning(), sig)
}

// AddSignature appends sig to vb's signature list, enforcing §4.3.4's
// "adding a signature" rule: the signatory's role must not be Leader,
// ProxyTail, or Undefined, and — on the first view (ViewChangeIndex == 0)
// — not ObservingPeer either. The list de-duplicates by signatory index.
func (vb ValidBlock) AddSignature(topo block.Topology, sig block.BlockSignature) (ValidBlock, error) {
	role := topo.RoleOf(int(sig.SignatoryIndex))
	switch role {
	case block.RoleLeader, block.RoleProxyTail, block.RoleUndefined:
		return vb, newErr(ErrSignatureRoleForbidden, role.String()+" may not add a signature")
	case block.RoleObservingPeer:
		if topo.ViewChangeIndex == 0 {
			return vb, newErr(ErrSignatureRoleForbidden, "observing peer may not sign at view 0")
		}
	}

	out := vb
	out.Signatures = dedupeByIndex(append(append([]block.BlockSignature{}, vb.Signatures...), sig))
	return out, nil
}

// SignAsProxyTail appends the ProxyTail's own signature — a distinct path
// from AddSignature, since §4.3.4 excludes the ProxyTail role from the
// generic "adding a signature" rule (its signature is required for commit,
// not a validator vote).
func (vb ValidBlock) SignAsProxyTail(topo block.Topology, sig block.BlockSignature) (ValidBlock, error) {
	if topo.RoleOf(int(sig.SignatoryIndex)) != block.RoleProxyTail {
		return vb, newErr(ErrSignatureRoleForbidden, "signatory is not the proxy tail")
	}
	out := vb
	out.Signatures = dedupeByIndex(append(append([]block.BlockSignature{}, vb.Signatures...), sig))
	return out, nil
}

// ReplaceSignatures atomically replaces vb's signature set and re-validates
// it (leader + validators + no-undefined); on failure the original set is
// restored (§4.3.4 "Replacing signatures").
func (vb ValidBlock) ReplaceSignatures(topo block.Topology, newSigs []block.BlockSignature) (ValidBlock, error) {
	original := vb.Signatures
	candidate := vb
	candidate.Signatures = append([]block.BlockSignature{}, newSigs...)

	if err := validateLeaderSignature(topo, candidate.Signatures, candidate.Block.Header); err != nil {
		return ValidBlock{SignedBlock: block.SignedBlock{Block: vb.Block, Signatures: original}}, err
	}
	if err := validateValidatorSignatures(topo, candidate.Signatures, candidate.Block.Header); err != nil {
		return ValidBlock{SignedBlock: block.SignedBlock{Block: vb.Block, Signatures: original}}, err
	}
	if err := checkNoUndefinedSignatories(topo, candidate.Signatures); err != nil {
		return ValidBlock{SignedBlock: block.SignedBlock{Block: vb.Block, Signatures: original}}, err
	}

	return candidate, nil
}

func dedupeByIndex(sigs []block.BlockSignature) []block.BlockSignature {
	seen := make(map[uint32]int, len(sigs))
	out := make([]block.BlockSignature, 0, len(sigs))
	for _, s := range sigs {
		if i, ok := seen[s.SignatoryIndex]; ok {
			out[i] = s
			continue
		}
		seen[s.SignatoryIndex] = len(out)
		out = append(out, s)
	}
	return out
}

// validateLeaderSignature checks the leader signature rule of §4.3.4
// literally: the *first* signature in list order must sit at the leader's
// index and verify. Unlike a role scan over the whole slice, this rejects a
// list such as [validatorSig, leaderSig] even though a leader signature is
// present somewhere in it — positional order is the rule, not membership.
func validateLeaderSignature(topo block.Topology, sigs []block.BlockSignature, header block.Header) error {
	if len(sigs) == 0 {
		return newErr(ErrLeaderMissing, "no leader signature")
	}
	first := sigs[0]
	if int(first.SignatoryIndex) != topo.LeaderIndex() {
		return newErr(ErrLeaderMissing, "first signature is not the leader's")
	}
	if !verifySignature(topo, first, header) {
		return newErr(ErrInvalidSignature, "leader signature does not verify")
	}
	return nil
}

// validateValidatorSignatures checks every signature claiming a
// ValidatingPeer (or, at view ≥ 1, ObservingPeer) role: well-formed,
// verifying, and not duplicated.
func validateValidatorSignatures(topo block.Topology, sigs []block.BlockSignature, header block.Header) error {
	seen := make(map[uint32]struct{}, len(sigs))
	for _, s := range sigs {
		role := topo.RoleOf(int(s.SignatoryIndex))
		isValidatorRole := role == block.RoleValidatingPeer || (role == block.RoleObservingPeer && topo.ViewChangeIndex >= 1)
		if !isValidatorRole {
			continue
		}
		if s.SignatoryIndex >= uint32(len(topo.Peers)) {
			return newErr(ErrUnknownSignatory, "signatory index out of range")
		}
		if _, dup := seen[s.SignatoryIndex]; dup {
			return newErr(ErrDuplicateSignatures, "duplicate validator signature")
		}
		seen[s.SignatoryIndex] = struct{}{}
		if !verifySignature(topo, s, header) {
			return newErr(ErrUnknownSignature, "validator signature does not verify")
		}
	}
	return nil
}

// validateProxyTailSignature checks §4.3.4's "the last signature (reverse
// order) must be at the ProxyTail's index" literally: it inspects only
// sigs[len(sigs)-1], not the whole slice, so a list such as
// [proxyTailSig, validatorSig] is rejected even though a proxy tail
// signature is present earlier in it.
func validateProxyTailSignature(topo block.Topology, sigs []block.BlockSignature) error {
	if len(sigs) == 0 {
		return newErr(ErrProxyTailMissing, "no proxy tail signature")
	}
	last := sigs[len(sigs)-1]
	if int(last.SignatoryIndex) != topo.ProxyTailIndex() {
		return newErr(ErrProxyTailMissing, "last signature is not the proxy tail's")
	}
	return nil
}

func checkNoUndefinedSignatories(topo block.Topology, sigs []block.BlockSignature) error {
	for _, s := range sigs {
		if topo.RoleOf(int(s.SignatoryIndex)) == block.RoleUndefined {
			return newErr(ErrUnknownSignatory, "signature from an undefined-role index")
		}
	}
	return nil
}

func verifySignature(topo block.Topology, sig block.BlockSignature, header block.Header) bool {
	if int(sig.SignatoryIndex) < 0 || int(sig.SignatoryIndex) >= len(topo.Peers) {
		return false
	}
	pub := topo.Peers[sig.SignatoryIndex].PublicKey
	return verifyHeader(pub, header, sig.Signature)
}
