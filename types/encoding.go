package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Typed-data hashing for delegations, compatible with the EIP-712 struct
// encoding used by the delegation toolkit: dynamic fields are hashed,
// static fields are left-padded to 32 bytes, and the result is the keccak
// of the type hash followed by the encoded fields.
var (
	delegationTypehash = crypto.Keccak256Hash([]byte(
		"Delegation(address delegate,address delegator,bytes32 authority,Caveat[] caveats,uint256 salt)",
	))
	caveatTypehash = crypto.Keccak256Hash([]byte(
		"Caveat(address enforcer,bytes terms)",
	))
)

// Hash returns the typed content hash of a caveat. Args are redeemer input
// and are deliberately excluded from the hash.
func (c *Caveat) Hash() common.Hash {
	encoded := make([]byte, 0, 96)
	encoded = append(encoded, caveatTypehash.Bytes()...)
	encoded = append(encoded, common.LeftPadBytes(c.Enforcer.Bytes(), 32)...)
	encoded = append(encoded, crypto.Keccak256(c.Terms)...)
	return crypto.Keccak256Hash(encoded)
}

// Hash returns the typed content hash of a delegation. A child delegation's
// authority must equal the hash of its parent for the chain to validate.
func (d *Delegation) Hash() common.Hash {
	caveatHashes := make([]byte, 0, len(d.Caveats)*32)
	for i := range d.Caveats {
		h := d.Caveats[i].Hash()
		caveatHashes = append(caveatHashes, h.Bytes()...)
	}

	salt := d.Salt
	if salt == nil {
		salt = new(big.Int)
	}

	encoded := make([]byte, 0, 192)
	encoded = append(encoded, delegationTypehash.Bytes()...)
	encoded = append(encoded, common.LeftPadBytes(d.Delegate.Bytes(), 32)...)
	encoded = append(encoded, common.LeftPadBytes(d.Delegator.Bytes(), 32)...)
	encoded = append(encoded, d.Authority.Bytes()...)
	encoded = append(encoded, crypto.Keccak256(caveatHashes)...)
	encoded = append(encoded, common.LeftPadBytes(salt.Bytes(), 32)...)
	return crypto.Keccak256Hash(encoded)
}
