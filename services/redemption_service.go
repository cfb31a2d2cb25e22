package services

import (
	"context"
	"errors"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cyphera/delegation-engine/constants"
	"github.com/cyphera/delegation-engine/interfaces"
	"github.com/cyphera/delegation-engine/logger"
	"github.com/cyphera/delegation-engine/metrics"
	"github.com/cyphera/delegation-engine/state"
	"github.com/cyphera/delegation-engine/types"
)

// ExecutionResult reports one executor dispatch. Success is false only
// under the try exec type, where executor failures are swallowed and
// reported instead of aborting the batch.
type ExecutionResult struct {
	ReturnData hexutil.Bytes `json:"return_data"`
	Success    bool          `json:"success"`
	Error      string        `json:"error,omitempty"`
}

// RedemptionResult collects the execution results for one chain.
type RedemptionResult struct {
	Executions []ExecutionResult `json:"executions"`
}

// RedemptionService is the top-level entry point. It validates every
// chain, drives the five-phase caveat pipeline, and is the only component
// that calls the executor. The whole batch either commits or is
// indistinguishable from never having been attempted: the state
// transaction is discarded on any failure.
type RedemptionService struct {
	validator interfaces.ChainValidator
	pipeline  *CaveatPipelineService
	executor  interfaces.Executor
	store     state.Store
	logger    *zap.Logger
}

// NewRedemptionService creates the orchestrator.
func NewRedemptionService(
	validator interfaces.ChainValidator,
	pipeline *CaveatPipelineService,
	executor interfaces.Executor,
	store state.Store,
) *RedemptionService {
	return &RedemptionService{
		validator: validator,
		pipeline:  pipeline,
		executor:  executor,
		store:     store,
		logger:    logger.Log,
	}
}

// Redeem processes one batch of (chain, spec) pairs submitted together.
// Chains and specs must be equal length and are paired by index. The
// requester is the calling context; the redeemer is the principal
// invoking redemption, which may differ from the leaf delegate only under
// the open delegate sentinel.
func (s *RedemptionService) Redeem(
	ctx context.Context,
	requester, redeemer common.Address,
	chains []types.DelegationChain,
	specs []types.ExecutionSpec,
) ([]RedemptionResult, error) {
	started := time.Now()
	batchID := uuid.New()
	log := s.logger.With(
		zap.String("batch_id", batchID.String()),
		zap.String("redeemer", redeemer.Hex()),
		zap.Int("chain_count", len(chains)),
	)

	results, err := s.redeem(ctx, log, requester, redeemer, chains, specs)
	metrics.RedemptionDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.RedemptionsTotal.WithLabelValues(errorStatus(err)).Inc()
		log.Warn("redemption batch aborted", zap.Error(err))
		return nil, err
	}

	metrics.RedemptionsTotal.WithLabelValues("success").Inc()
	log.Info("redemption batch committed", zap.Duration("duration", time.Since(started)))
	return results, nil
}

func (s *RedemptionService) redeem(
	ctx context.Context,
	log *zap.Logger,
	requester, redeemer common.Address,
	chains []types.DelegationChain,
	specs []types.ExecutionSpec,
) ([]RedemptionResult, error) {
	if len(chains) == 0 {
		return nil, types.NewStructuralError("empty redemption batch")
	}
	if len(chains) != len(specs) {
		return nil, types.NewStructuralError("got %d chains and %d execution specs, must be equal", len(chains), len(specs))
	}

	if log.Core().Enabled(zap.DebugLevel) {
		log.Debug("redeeming delegation batch", zap.String("chains", spew.Sdump(chains)))
	}

	// Validation is pure and runs for every chain before any hook.
	batch := make([]Redemption, len(chains))
	for i := range chains {
		if err := specs[i].Validate(); err != nil {
			return nil, err
		}
		hashes, err := s.validator.Validate(ctx, chains[i], requester, redeemer)
		if err != nil {
			return nil, err
		}
		batch[i] = Redemption{Chain: chains[i], Hashes: hashes, Spec: specs[i]}
	}

	txn, err := s.store.Begin(true)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to open state transaction")
	}
	defer txn.Discard()

	// Phase 0: beforeAll across all chains, before anything executes.
	if err := s.pipeline.RunBeforeAll(ctx, txn, batch, redeemer); err != nil {
		return nil, err
	}

	// Phases 1-3 per chain: before, execute, after.
	results := make([]RedemptionResult, len(batch))
	for i := range batch {
		if err := s.pipeline.RunBefore(ctx, txn, &batch[i], redeemer); err != nil {
			return nil, err
		}

		executions, err := s.execute(ctx, i, &batch[i].Spec)
		if err != nil {
			return nil, err
		}
		results[i] = RedemptionResult{Executions: executions}

		if err := s.pipeline.RunAfter(ctx, txn, &batch[i], redeemer); err != nil {
			return nil, err
		}
	}

	// Phase 4: afterAll across all chains.
	if err := s.pipeline.RunAfterAll(ctx, txn, batch, redeemer); err != nil {
		return nil, err
	}

	if err := txn.Commit(); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to commit state transaction")
	}
	return results, nil
}

// execute dispatches every execution of one spec. Under the default exec
// type a failure aborts the batch; under try it is recorded and the batch
// continues, with after/afterAll checks still running against real
// post-state.
func (s *RedemptionService) execute(ctx context.Context, chainIndex int, spec *types.ExecutionSpec) ([]ExecutionResult, error) {
	results := make([]ExecutionResult, len(spec.Executions))
	for i := range spec.Executions {
		execution := &spec.Executions[i]
		returnData, err := s.executor.Run(ctx, execution.Target, execution.Value, execution.CallData)
		if err != nil {
			metrics.ExecutionsTotal.WithLabelValues(spec.Mode.ExecType, "failure").Inc()
			if spec.Mode.ExecType == constants.TryExecType {
				results[i] = ExecutionResult{Success: false, Error: err.Error()}
				continue
			}
			return nil, &types.ExecutionError{ChainIndex: chainIndex, ExecutionIndex: i, Err: err}
		}
		metrics.ExecutionsTotal.WithLabelValues(spec.Mode.ExecType, "success").Inc()
		results[i] = ExecutionResult{ReturnData: returnData, Success: true}
	}
	return results, nil
}

// errorStatus maps the error taxonomy onto a metrics label.
func errorStatus(err error) string {
	var structural *types.StructuralError
	var authorization *types.AuthorizationError
	var hook *types.HookError
	var execution *types.ExecutionError

	switch {
	case errors.As(err, &hook):
		return "hook_error"
	case errors.As(err, &execution):
		return "execution_error"
	case errors.As(err, &structural):
		return "structural_error"
	case errors.As(err, &authorization):
		return "authorization_error"
	default:
		return "internal_error"
	}
}
