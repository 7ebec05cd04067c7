// Package block implements the wire data model shared by the block
// life-cycle and world-state view: headers, (signed/categorised)
// transactions, blocks, topology, and the versioned binary codec that
// persists and transmits them.
package block

import "fmt"

// DomainId, AccountId etc. are the identifier types instructions and
// permission tokens are parameterised over. Accounts are scoped to a
// domain (accountName@domainName), matching the teacher's Outpoint-style
// composite identifiers but for named entities instead of UTXO outpoints.
type DomainId string

type AccountId struct {
	Name   string
	Domain DomainId
}

func (a AccountId) String() string { return fmt.Sprintf("%s@%s", a.Name, a.Domain) }

type AssetDefinitionId struct {
	Name   string
	Domain DomainId
}

func (a AssetDefinitionId) String() string { return fmt.Sprintf("%s#%s", a.Name, a.Domain) }

type AssetId struct {
	Definition AssetDefinitionId
	Account    AccountId
}

func (a AssetId) String() string { return fmt.Sprintf("%s#%s", a.Definition, a.Account) }

type RoleId string

type TriggerId string

// PeerId identifies a peer by its public key fingerprint plus network
// address, matching the teacher's peer identity model in node/p2p.
type PeerId struct {
	PublicKeyMultihash string
	Address            string
}

func (p PeerId) String() string { return p.Address + "/" + p.PublicKeyMultihash }
