package interfaces

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cyphera/delegation-engine/types"
)

// External collaborators consumed at their interface boundary. The engine
// never implements these; production wiring supplies adapters and tests
// supply mocks.

// SignatureVerifier checks that a credential authorizes a message hash for
// a principal. Covers both ECDSA/EIP-712 and P256/WebAuthn credentials
// behind the same boolean contract.
type SignatureVerifier interface {
	IsValid(ctx context.Context, principal common.Address, messageHash common.Hash, credential []byte) (bool, error)
}

// Ledger returns balance snapshots for a holder and asset identity.
type Ledger interface {
	BalanceOf(ctx context.Context, holder common.Address, asset types.Asset) (*big.Int, error)
}

// Executor dispatches the requested action to its target. The orchestrator
// is the only component that calls Run.
type Executor interface {
	Run(ctx context.Context, target common.Address, value *big.Int, callData []byte) ([]byte, error)
}

// RevocationRegistry is the externally maintained disabled-delegation set.
// Checked during chain validation, never written here.
type RevocationRegistry interface {
	IsDisabled(ctx context.Context, delegationHash common.Hash) (bool, error)
}

// ChainValidator verifies structural and authority invariants of a
// delegation chain. Pure check, no side effects. On success it returns the
// content hash of every delegation in chain order.
type ChainValidator interface {
	Validate(ctx context.Context, chain types.DelegationChain, requester, redeemer common.Address) ([]common.Hash, error)
}
