package consensus

import "kintsugi.dev/node/block"

// Commit checks a Valid block against the commit rules of §4.3.5 and
// returns a Committed block plus its deferred Committed event. For
// non-genesis blocks this requires a verifying ProxyTail signature and
// quorum; genesis requires only its single signature, already checked at
// validation time.
func (vb ValidBlock) Commit(topo block.Topology, genesis bool) (EventProducing[CommittedBlock], error) {
	if !genesis {
		if err := validateProxyTailSignature(topo, vb.Signatures); err != nil {
			return EventProducing[CommittedBlock]{}, err
		}
		if !verifySignature(topo, vb.Signatures[len(vb.Signatures)-1], vb.Block.Header) {
			return EventProducing[CommittedBlock]{}, newErr(ErrProxyTailMissing, "proxy tail signature does not verify")
		}
		if len(vb.Signatures) < topo.MinVotesForCommit() {
			return EventProducing[CommittedBlock]{}, newErr(ErrNotEnoughSignatures, "quorum not reached")
		}
	}

	cb := CommittedBlock{SignedBlock: vb.SignedBlock}
	return newCommittedBlockEvents(cb), nil
}

// CommitKeepVotingBlock orders the checks "signature check first, state
// validation second" (§4.3.5): a block that fails the comparatively cheap
// signature check never burns the more expensive revalidation a caller
// would otherwise run against the voting-block writer. stateValidate is
// only invoked once the signature checks already passed.
func (vb ValidBlock) CommitKeepVotingBlock(topo block.Topology, genesis bool, stateValidate func(ValidBlock) error) (EventProducing[CommittedBlock], error) {
	if !genesis {
		if err := validateProxyTailSignature(topo, vb.Signatures); err != nil {
			return EventProducing[CommittedBlock]{}, err
		}
		if len(vb.Signatures) < topo.MinVotesForCommit() {
			return EventProducing[CommittedBlock]{}, newErr(ErrNotEnoughSignatures, "quorum not reached")
		}
	}
	if stateValidate != nil {
		if err := stateValidate(vb); err != nil {
			return EventProducing[CommittedBlock]{}, err
		}
	}
	return vb.Commit(topo, genesis)
}
