package block

import "kintsugi.dev/node/crypto"

// Role is a peer's function within one view of the topology (§4.3.4).
type Role uint8

const (
	RoleLeader Role = iota
	RoleValidatingPeer
	RoleProxyTail
	RoleObservingPeer
	RoleUndefined
)

func (r Role) String() string {
	switch r {
	case RoleLeader:
		return "Leader"
	case RoleValidatingPeer:
		return "ValidatingPeer"
	case RoleProxyTail:
		return "ProxyTail"
	case RoleObservingPeer:
		return "ObservingPeer"
	default:
		return "Undefined"
	}
}

// TopologyPeer is one ordered entry of a Topology.
type TopologyPeer struct {
	Id        PeerId
	PublicKey crypto.PublicKey
}

// Topology is the ordered peer list for one view, assigning roles per
// §4.3.4: index 0 is always Leader; the last index is ProxyTail; the
// remainder are ValidatingPeer, except that when ViewChangeIndex == 0 the
// peers beyond 3f+1 (if any) are ObservingPeer and are not counted in the
// valid-roles set for that view.
type Topology struct {
	Peers           []TopologyPeer
	ViewChangeIndex uint32
}

// RoleOf returns the role assigned to the peer at index i in this topology.
func (t Topology) RoleOf(i int) Role {
	n := len(t.Peers)
	if i < 0 || i >= n {
		return RoleUndefined
	}
	switch {
	case n == 0:
		return RoleUndefined
	case i == 0:
		return RoleLeader
	case i == n-1 && n > 1:
		return RoleProxyTail
	case i >= t.votingPeerCount():
		return RoleObservingPeer
	default:
		return RoleValidatingPeer
	}
}

// votingPeerCount is the number of peers (leader + validators + proxy tail)
// required for BFT safety at this topology size: 3f+1 under the classic
// f = (n-1)/3 assumption, capped at n. Peers beyond this count are observers.
func (t Topology) votingPeerCount() int {
	n := len(t.Peers)
	if n == 0 {
		return 0
	}
	f := (n - 1) / 3
	voting := 3*f + 1
	if voting > n {
		voting = n
	}
	return voting
}

// MinVotesForCommit is the quorum size for a non-genesis block: 2f+1 among
// the voting peers.
func (t Topology) MinVotesForCommit() int {
	voting := t.votingPeerCount()
	if voting == 0 {
		return 0
	}
	f := (voting - 1) / 3
	return 2*f + 1
}

func (t Topology) LeaderIndex() int { return 0 }

func (t Topology) ProxyTailIndex() int {
	if len(t.Peers) == 0 {
		return -1
	}
	return len(t.Peers) - 1
}

// IndexOf returns the index of a peer's public key in the topology, or -1.
func (t Topology) IndexOf(pub crypto.PublicKey) int {
	for i, p := range t.Peers {
		if p.PublicKey.Equal(pub) {
			return i
		}
	}
	return -1
}
