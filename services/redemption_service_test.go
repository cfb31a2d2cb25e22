package services_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyphera/delegation-engine/constants"
	"github.com/cyphera/delegation-engine/enforcers"
	"github.com/cyphera/delegation-engine/services"
	"github.com/cyphera/delegation-engine/state"
	"github.com/cyphera/delegation-engine/testutil"
	"github.com/cyphera/delegation-engine/types"
)

var (
	managerAddr = testutil.Addr("manager")
	tokenAddr   = testutil.Addr("token")
	balanceAddr = testutil.Addr("balance-enforcer")
	totalAddr   = testutil.Addr("total-enforcer")
	limitAddr   = testutil.Addr("limited-calls-enforcer")
)

type engineFixture struct {
	ledger   *testutil.MemoryLedger
	executor *testutil.MemoryExecutor
	store    *state.MemoryStore
	service  *services.RedemptionService
}

// newEngine wires a full redemption engine over in-memory collaborators:
// a static always-valid verifier, an empty revocation registry, and a
// registry holding the balance, total balance, and limited calls
// enforcers.
func newEngine(t *testing.T) *engineFixture {
	t.Helper()

	ledger := testutil.NewMemoryLedger()
	executor := testutil.NewMemoryExecutor()
	store := state.NewMemoryStore()

	registry := enforcers.NewRegistry()
	registry.Register(balanceAddr, enforcers.NewERC20BalanceChangeEnforcer(ledger))
	registry.Register(totalAddr, enforcers.NewERC20TotalBalanceChangeEnforcer(ledger))
	registry.Register(limitAddr, enforcers.NewLimitedCallsEnforcer())

	validator := services.NewChainValidatorService(&testutil.StaticVerifier{Valid: true}, testutil.NewMemoryRevocations())
	pipeline := services.NewCaveatPipelineService(registry, managerAddr)
	service := services.NewRedemptionService(validator, pipeline, executor, store)

	return &engineFixture{ledger: ledger, executor: executor, store: store, service: service}
}

// creditOnRun makes every executor dispatch credit the holder with a fixed
// token amount, simulating the effect of an executed transfer.
func (f *engineFixture) creditOnRun(holder common.Address, amount int64) {
	f.executor.RunFunc = func(ctx context.Context, target common.Address, value *big.Int, callData []byte) ([]byte, error) {
		f.ledger.Adjust(holder, types.TokenAsset(tokenAddr), big.NewInt(amount))
		return []byte{}, nil
	}
}

func TestRedeem_EndToEnd(t *testing.T) {
	// Alice delegates to Bob, requiring her token balance to grow by at
	// least 100. The execution credits her 150.
	fixture := newEngine(t)
	asset := types.TokenAsset(tokenAddr)
	fixture.ledger.SetBalance(alice, asset, big.NewInt(500))
	fixture.creditOnRun(alice, 150)

	terms := enforcers.EncodeBalanceTerms(true, asset, alice, big.NewInt(100))
	chain := types.DelegationChain{testutil.RootDelegation(alice, bob, testutil.Caveat(balanceAddr, terms))}
	callData := testutil.Selector("transfer(address,uint256)")
	spec := testutil.SingleSpec(tokenAddr, big.NewInt(0), callData)

	results, err := fixture.service.Redeem(context.Background(),
		bob, bob,
		[]types.DelegationChain{chain},
		[]types.ExecutionSpec{spec},
	)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].Executions, 1)
	assert.True(t, results[0].Executions[0].Success)

	require.Len(t, fixture.executor.Calls, 1)
	assert.Equal(t, tokenAddr, fixture.executor.Calls[0].Target)
	assert.Equal(t, callData, fixture.executor.Calls[0].CallData)

	// The balance lock was cleared by the after hook.
	assert.Equal(t, 0, fixture.store.Len())
}

func TestRedeem_AbortIsAtomic(t *testing.T) {
	// The chain carries a limited-calls caveat alongside the balance
	// caveat. When the after hook rejects the redemption, the call counter
	// must not have been consumed.
	fixture := newEngine(t)
	asset := types.TokenAsset(tokenAddr)
	fixture.ledger.SetBalance(alice, asset, big.NewInt(500))

	balanceTerms := enforcers.EncodeBalanceTerms(true, asset, alice, big.NewInt(100))
	limitTerms := common.LeftPadBytes(big.NewInt(1).Bytes(), 32)
	chain := types.DelegationChain{testutil.RootDelegation(alice, bob,
		testutil.Caveat(limitAddr, limitTerms),
		testutil.Caveat(balanceAddr, balanceTerms),
	)}
	spec := testutil.SingleSpec(tokenAddr, big.NewInt(0), nil)

	// First attempt moves too little and aborts in the after phase.
	fixture.creditOnRun(alice, 50)
	_, err := fixture.service.Redeem(context.Background(),
		bob, bob,
		[]types.DelegationChain{chain},
		[]types.ExecutionSpec{spec},
	)
	var hookErr *types.HookError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, constants.AfterPhase, hookErr.Phase)
	assert.Equal(t, 0, fixture.store.Len(), "aborted batch must leave no state behind")

	// The executor did run; the engine does not undo external effects,
	// only its own state.
	assert.Len(t, fixture.executor.Calls, 1)

	// The single allowed call was not consumed by the aborted attempt, so
	// a conforming retry succeeds.
	fixture.creditOnRun(alice, 150)
	_, err = fixture.service.Redeem(context.Background(),
		bob, bob,
		[]types.DelegationChain{chain},
		[]types.ExecutionSpec{spec},
	)
	require.NoError(t, err)

	// Now the quota is spent.
	_, err = fixture.service.Redeem(context.Background(),
		bob, bob,
		[]types.DelegationChain{chain},
		[]types.ExecutionSpec{spec},
	)
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, constants.BeforePhase, hookErr.Phase)
}

func TestRedeem_ExecTypes(t *testing.T) {
	boom := errors.New("revert: transfer failed")

	t.Run("default aborts on executor failure", func(t *testing.T) {
		fixture := newEngine(t)
		fixture.executor.RunFunc = func(ctx context.Context, target common.Address, value *big.Int, callData []byte) ([]byte, error) {
			return nil, boom
		}

		chain := types.DelegationChain{testutil.RootDelegation(alice, bob)}
		spec := testutil.SingleSpec(tokenAddr, big.NewInt(0), nil)

		_, err := fixture.service.Redeem(context.Background(),
			bob, bob,
			[]types.DelegationChain{chain},
			[]types.ExecutionSpec{spec},
		)
		var execErr *types.ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Equal(t, 0, execErr.ChainIndex)
		assert.Equal(t, 0, execErr.ExecutionIndex)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("try records the failure and commits", func(t *testing.T) {
		fixture := newEngine(t)
		fixture.executor.RunFunc = func(ctx context.Context, target common.Address, value *big.Int, callData []byte) ([]byte, error) {
			return nil, boom
		}

		chain := types.DelegationChain{testutil.RootDelegation(alice, bob)}
		spec := testutil.SingleSpec(tokenAddr, big.NewInt(0), nil)
		spec.Mode.ExecType = constants.TryExecType

		results, err := fixture.service.Redeem(context.Background(),
			bob, bob,
			[]types.DelegationChain{chain},
			[]types.ExecutionSpec{spec},
		)
		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Len(t, results[0].Executions, 1)
		assert.False(t, results[0].Executions[0].Success)
		assert.Contains(t, results[0].Executions[0].Error, "transfer failed")
	})
}

func TestRedeem_BatchShapeErrors(t *testing.T) {
	fixture := newEngine(t)
	chain := types.DelegationChain{testutil.RootDelegation(alice, bob)}

	t.Run("empty batch", func(t *testing.T) {
		_, err := fixture.service.Redeem(context.Background(), bob, bob, nil, nil)
		var structural *types.StructuralError
		require.ErrorAs(t, err, &structural)
	})

	t.Run("chains and specs length mismatch", func(t *testing.T) {
		_, err := fixture.service.Redeem(context.Background(),
			bob, bob,
			[]types.DelegationChain{chain},
			nil,
		)
		var structural *types.StructuralError
		require.ErrorAs(t, err, &structural)
		assert.ErrorContains(t, err, "must be equal")
	})

	t.Run("validation failure surfaces before any execution", func(t *testing.T) {
		_, err := fixture.service.Redeem(context.Background(),
			mal, mal,
			[]types.DelegationChain{chain},
			[]types.ExecutionSpec{testutil.SingleSpec(tokenAddr, big.NewInt(0), nil)},
		)
		var authErr *types.AuthorizationError
		require.ErrorAs(t, err, &authErr)
		assert.Empty(t, fixture.executor.Calls)
	})
}

func TestRedeem_TotalBalanceAggregatesAcrossChains(t *testing.T) {
	// Two chains in one batch each demand a minimum increase of 100 for
	// the same recipient and asset. The shared tracker enforces the
	// aggregated minimum of 200 over the whole batch.
	asset := types.TokenAsset(tokenAddr)
	terms := enforcers.EncodeBalanceTerms(true, asset, alice, big.NewInt(100))

	buildChains := func() []types.DelegationChain {
		first := testutil.RootDelegation(alice, bob, testutil.Caveat(totalAddr, terms))
		second := testutil.RootDelegation(alice, bob, testutil.Caveat(totalAddr, terms))
		second.Salt = big.NewInt(2)
		return []types.DelegationChain{{first}, {second}}
	}
	specs := []types.ExecutionSpec{
		testutil.SingleSpec(tokenAddr, big.NewInt(0), nil),
		testutil.SingleSpec(tokenAddr, big.NewInt(0), nil),
	}

	t.Run("aggregated minimum met", func(t *testing.T) {
		fixture := newEngine(t)
		fixture.ledger.SetBalance(alice, asset, big.NewInt(0))
		fixture.creditOnRun(alice, 100)

		_, err := fixture.service.Redeem(context.Background(), bob, bob, buildChains(), specs)
		require.NoError(t, err)
		assert.Equal(t, 0, fixture.store.Len(), "tracker must be deleted after the final validation")
	})

	t.Run("aggregated minimum missed", func(t *testing.T) {
		fixture := newEngine(t)
		fixture.ledger.SetBalance(alice, asset, big.NewInt(0))
		// 75 per chain would satisfy either caveat alone but not the
		// aggregate.
		fixture.creditOnRun(alice, 75)

		_, err := fixture.service.Redeem(context.Background(), bob, bob, buildChains(), specs)
		var hookErr *types.HookError
		require.ErrorAs(t, err, &hookErr)
		assert.Equal(t, constants.AfterAllPhase, hookErr.Phase)
		assert.Equal(t, 0, fixture.store.Len())
	})
}
