package services

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/cyphera/delegation-engine/constants"
	"github.com/cyphera/delegation-engine/enforcers"
	"github.com/cyphera/delegation-engine/logger"
	"github.com/cyphera/delegation-engine/metrics"
	"github.com/cyphera/delegation-engine/state"
	"github.com/cyphera/delegation-engine/types"
)

// Redemption pairs one validated delegation chain with its execution spec.
type Redemption struct {
	Chain  types.DelegationChain
	Hashes []common.Hash
	Spec   types.ExecutionSpec
}

// CaveatPipelineService drives the five-phase hook protocol over the
// chains of one redemption batch. BeforeAll and Before walk each chain
// leaf to root; After and AfterAll walk root to leaf. Caveats within one
// delegation always run in their declared array order - that order is an
// authoring-time decision with security weight, in particular when a
// side-effectful enforcer and a total balance tracker share an AfterAll
// phase on the same key. The engine deliberately does not arbitrate that
// interleaving.
type CaveatPipelineService struct {
	registry *enforcers.Registry
	manager  common.Address
	logger   *zap.Logger
}

// NewCaveatPipelineService creates a pipeline bound to an enforcer
// registry and the engine's manager identity.
func NewCaveatPipelineService(registry *enforcers.Registry, manager common.Address) *CaveatPipelineService {
	return &CaveatPipelineService{
		registry: registry,
		manager:  manager,
		logger:   logger.Log,
	}
}

// RunBeforeAll runs phase 0 for every chain in the batch, leaf to root.
func (s *CaveatPipelineService) RunBeforeAll(ctx context.Context, txn state.Txn, batch []Redemption, redeemer common.Address) error {
	for i := range batch {
		if err := s.runChainPhase(ctx, txn, &batch[i], redeemer, constants.BeforeAllPhase); err != nil {
			return err
		}
	}
	return nil
}

// RunBefore runs phase 1 for one chain, leaf to root.
func (s *CaveatPipelineService) RunBefore(ctx context.Context, txn state.Txn, redemption *Redemption, redeemer common.Address) error {
	return s.runChainPhase(ctx, txn, redemption, redeemer, constants.BeforePhase)
}

// RunAfter runs phase 3 for one chain, root to leaf.
func (s *CaveatPipelineService) RunAfter(ctx context.Context, txn state.Txn, redemption *Redemption, redeemer common.Address) error {
	return s.runChainPhase(ctx, txn, redemption, redeemer, constants.AfterPhase)
}

// RunAfterAll runs phase 4 for every chain in the batch, root to leaf.
func (s *CaveatPipelineService) RunAfterAll(ctx context.Context, txn state.Txn, batch []Redemption, redeemer common.Address) error {
	for i := range batch {
		if err := s.runChainPhase(ctx, txn, &batch[i], redeemer, constants.AfterAllPhase); err != nil {
			return err
		}
	}
	return nil
}

// runChainPhase iterates one chain's delegations in the direction mandated
// for the phase and invokes the phase hook of every caveat in array order.
func (s *CaveatPipelineService) runChainPhase(ctx context.Context, txn state.Txn, redemption *Redemption, redeemer common.Address, phase string) error {
	leafToRoot := phase == constants.BeforeAllPhase || phase == constants.BeforePhase

	chain := redemption.Chain
	for step := 0; step < len(chain); step++ {
		idx := step
		if !leafToRoot {
			idx = len(chain) - 1 - step
		}

		delegation := &chain[idx]
		for c := range delegation.Caveats {
			caveat := &delegation.Caveats[c]
			enforcer, err := s.registry.Resolve(caveat.Enforcer)
			if err != nil {
				metrics.HookFailuresTotal.WithLabelValues(phase).Inc()
				return &types.HookError{Phase: phase, Enforcer: caveat.Enforcer, Err: err}
			}

			cav := &enforcers.CaveatContext{
				Delegation:     delegation,
				DelegationHash: redemption.Hashes[idx],
				Terms:          caveat.Terms,
				Args:           caveat.Args,
				Redeemer:       redeemer,
				Manager:        s.manager,
				Spec:           &redemption.Spec,
				State:          txn,
			}

			if err := s.invoke(ctx, enforcer, phase, cav); err != nil {
				metrics.HookFailuresTotal.WithLabelValues(phase).Inc()
				s.logger.Warn("caveat hook failed",
					zap.String("phase", phase),
					zap.String("enforcer", caveat.Enforcer.Hex()),
					zap.String("delegation_hash", redemption.Hashes[idx].Hex()),
					zap.Error(err),
				)
				return &types.HookError{Phase: phase, Enforcer: caveat.Enforcer, Err: err}
			}
		}
	}
	return nil
}

func (s *CaveatPipelineService) invoke(ctx context.Context, enforcer enforcers.Enforcer, phase string, cav *enforcers.CaveatContext) error {
	switch phase {
	case constants.BeforeAllPhase:
		return enforcer.BeforeAll(ctx, cav)
	case constants.BeforePhase:
		return enforcer.Before(ctx, cav)
	case constants.AfterPhase:
		return enforcer.After(ctx, cav)
	case constants.AfterAllPhase:
		return enforcer.AfterAll(ctx, cav)
	default:
		return types.NewStructuralError("unknown pipeline phase %q", phase)
	}
}
