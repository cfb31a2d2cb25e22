package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/cyphera/delegation-engine/constants"
)

// Caveat is an attached, independently verifiable restriction on a
// delegation. Terms are fixed at authoring time and covered by the
// delegation hash; Args are supplied by the redeemer at call time and are
// untrusted until an enforcer validates them against Terms.
type Caveat struct {
	Enforcer common.Address `json:"enforcer"`
	Terms    hexutil.Bytes  `json:"terms"`
	Args     hexutil.Bytes  `json:"args"`
}

// Delegation grants a bounded, revocable capability from a delegator to a
// delegate. Authority is either the root sentinel or the hash of the parent
// delegation in the chain. Delegations are read-only at redemption time.
type Delegation struct {
	Delegate  common.Address `json:"delegate"`
	Delegator common.Address `json:"delegator"`
	Authority common.Hash    `json:"authority"`
	Caveats   []Caveat       `json:"caveats"`
	Salt      *big.Int       `json:"salt"`
	Signature hexutil.Bytes  `json:"signature"`
}

// IsRoot reports whether the delegation is self-authorizing.
func (d *Delegation) IsRoot() bool {
	return d.Authority == constants.RootAuthority
}

// DelegationChain is an ordered sequence of delegations. Index 0 is the
// leaf (closest to the redeemer); the last element is the root and must
// carry the root authority sentinel.
type DelegationChain []Delegation

// Leaf returns the delegation closest to the redeemer.
func (c DelegationChain) Leaf() *Delegation {
	if len(c) == 0 {
		return nil
	}
	return &c[0]
}

// Root returns the self-authorizing delegation at the end of the chain.
func (c DelegationChain) Root() *Delegation {
	if len(c) == 0 {
		return nil
	}
	return &c[len(c)-1]
}

// Hashes returns the content hash of every delegation in chain order.
func (c DelegationChain) Hashes() []common.Hash {
	hashes := make([]common.Hash, len(c))
	for i := range c {
		hashes[i] = c[i].Hash()
	}
	return hashes
}
