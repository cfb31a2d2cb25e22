package services

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cyphera/delegation-engine/constants"
	"github.com/cyphera/delegation-engine/interfaces"
	"github.com/cyphera/delegation-engine/logger"
	"github.com/cyphera/delegation-engine/types"
)

// ChainValidatorService verifies structural and authority invariants of a
// delegation chain before any hook or execution runs. It is a pure check:
// no state is written and failures surface before any mutation.
type ChainValidatorService struct {
	verifier    interfaces.SignatureVerifier
	revocations interfaces.RevocationRegistry
	logger      *zap.Logger
}

// NewChainValidatorService creates a new chain validator.
func NewChainValidatorService(verifier interfaces.SignatureVerifier, revocations interfaces.RevocationRegistry) *ChainValidatorService {
	return &ChainValidatorService{
		verifier:    verifier,
		revocations: revocations,
		logger:      logger.Log,
	}
}

// Validate runs the checks in order, failing fast with a distinct error
// kind per check. The requester is the calling context: a delegation with
// an empty signature is accepted only when the requester is its delegator,
// which covers smart accounts redeeming their own delegations. On success
// it returns the content hash of every delegation in chain order.
func (s *ChainValidatorService) Validate(ctx context.Context, chain types.DelegationChain, requester, redeemer common.Address) ([]common.Hash, error) {
	// Check 1: shape. Non-empty, root sentinel at the end.
	if len(chain) == 0 {
		return nil, types.NewStructuralError("empty delegation chain")
	}
	if !chain.Root().IsRoot() {
		return nil, types.NewStructuralError("final delegation authority is not the root sentinel")
	}

	hashes := chain.Hashes()

	// Check 2: authority linkage and delegate continuity. Each non-root
	// delegation must point at the content hash of its parent, and each
	// parent must have delegated to the child's delegator unless it used
	// the open delegate.
	for i := 0; i < len(chain)-1; i++ {
		if chain[i].Authority != hashes[i+1] {
			return nil, types.NewStructuralError("broken authority link at index %d", i)
		}
		parent := &chain[i+1]
		if parent.Delegate != constants.OpenDelegate && parent.Delegate != chain[i].Delegator {
			return nil, types.NewAuthorizationError(
				"delegation at index %d was not granted to the delegator of index %d", i+1, i)
		}
	}

	// Check 3: authorization of every delegation, by countersignature or
	// by the calling context being the delegator itself.
	for i := range chain {
		delegation := &chain[i]
		if len(delegation.Signature) == 0 {
			if delegation.Delegator != requester {
				return nil, types.NewAuthorizationError(
					"unsigned delegation at index %d is not authorized by the calling context", i)
			}
			continue
		}
		valid, err := s.verifier.IsValid(ctx, delegation.Delegator, hashes[i], delegation.Signature)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "signature verification failed for delegation %d", i)
		}
		if !valid {
			return nil, types.NewAuthorizationError("invalid signature on delegation at index %d", i)
		}
	}

	// Check 4: revocation registry.
	for i, hash := range hashes {
		disabled, err := s.revocations.IsDisabled(ctx, hash)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "revocation lookup failed for delegation %d", i)
		}
		if disabled {
			return nil, types.NewAuthorizationError("delegation at index %d has been disabled", i)
		}
	}

	// Check 5: the redeemer must be the leaf delegate, unless the leaf is
	// open to any redeemer.
	leaf := chain.Leaf()
	if leaf.Delegate != constants.OpenDelegate && leaf.Delegate != redeemer {
		return nil, types.NewAuthorizationError(
			"redeemer %s is not the delegate of the leaf delegation", redeemer.Hex())
	}

	s.logger.Debug("delegation chain validated",
		zap.Int("chain_length", len(chain)),
		zap.String("leaf_hash", hashes[0].Hex()),
		zap.String("redeemer", redeemer.Hex()),
	)
	return hashes, nil
}
