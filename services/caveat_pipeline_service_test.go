package services_test

import (
	"context"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyphera/delegation-engine/constants"
	"github.com/cyphera/delegation-engine/enforcers"
	"github.com/cyphera/delegation-engine/services"
	"github.com/cyphera/delegation-engine/state"
	"github.com/cyphera/delegation-engine/testutil"
	"github.com/cyphera/delegation-engine/types"
)

// traceEnforcer records every hook invocation as "<phase> <terms>" so tests
// can assert the exact traversal order of the pipeline.
type traceEnforcer struct {
	trace *[]string
}

func (e *traceEnforcer) record(phase string, cav *enforcers.CaveatContext) {
	*e.trace = append(*e.trace, phase+" "+string(cav.Terms))
}

func (e *traceEnforcer) BeforeAll(ctx context.Context, cav *enforcers.CaveatContext) error {
	e.record(constants.BeforeAllPhase, cav)
	return nil
}

func (e *traceEnforcer) Before(ctx context.Context, cav *enforcers.CaveatContext) error {
	e.record(constants.BeforePhase, cav)
	return nil
}

func (e *traceEnforcer) After(ctx context.Context, cav *enforcers.CaveatContext) error {
	e.record(constants.AfterPhase, cav)
	return nil
}

func (e *traceEnforcer) AfterAll(ctx context.Context, cav *enforcers.CaveatContext) error {
	e.record(constants.AfterAllPhase, cav)
	return nil
}

// failingEnforcer fails its Before hook and nothing else.
type failingEnforcer struct {
	enforcers.BaseEnforcer
}

func (e *failingEnforcer) Before(ctx context.Context, cav *enforcers.CaveatContext) error {
	return types.NewAuthorizationError("quota exceeded")
}

var tracerAddr = testutil.Addr("tracer")

// tracedChain builds a three-delegation chain, every delegation carrying
// one traced caveat labeled by its position.
func tracedChain() types.DelegationChain {
	dave := testutil.Addr("dave")
	root := testutil.RootDelegation(alice, bob, testutil.Caveat(tracerAddr, []byte("root")))
	mid := testutil.ChildDelegation(root, carol, testutil.Caveat(tracerAddr, []byte("mid")))
	leaf := testutil.ChildDelegation(mid, dave, testutil.Caveat(tracerAddr, []byte("leaf")))
	return types.DelegationChain{leaf, mid, root}
}

func newTracedPipeline(t *testing.T) (*services.CaveatPipelineService, *[]string, state.Txn) {
	t.Helper()
	trace := new([]string)
	registry := enforcers.NewRegistry()
	registry.Register(tracerAddr, &traceEnforcer{trace: trace})

	store := state.NewMemoryStore()
	txn, err := store.Begin(true)
	require.NoError(t, err)
	t.Cleanup(txn.Discard)

	return services.NewCaveatPipelineService(registry, testutil.Addr("manager")), trace, txn
}

func runAllPhases(t *testing.T, pipeline *services.CaveatPipelineService, txn state.Txn, batch []services.Redemption) {
	t.Helper()
	ctx := context.Background()
	redeemer := testutil.Addr("dave")

	require.NoError(t, pipeline.RunBeforeAll(ctx, txn, batch, redeemer))
	for i := range batch {
		require.NoError(t, pipeline.RunBefore(ctx, txn, &batch[i], redeemer))
		require.NoError(t, pipeline.RunAfter(ctx, txn, &batch[i], redeemer))
	}
	require.NoError(t, pipeline.RunAfterAll(ctx, txn, batch, redeemer))
}

func TestPipeline_HookOrdering(t *testing.T) {
	pipeline, trace, txn := newTracedPipeline(t)

	chain := tracedChain()
	batch := []services.Redemption{{
		Chain:  chain,
		Hashes: chain.Hashes(),
		Spec:   testutil.SingleSpec(testutil.Addr("target"), nil, nil),
	}}

	runAllPhases(t, pipeline, txn, batch)

	// beforeAll and before walk leaf to root; after and afterAll walk
	// root to leaf.
	want := []string{
		"before_all leaf", "before_all mid", "before_all root",
		"before leaf", "before mid", "before root",
		"after root", "after mid", "after leaf",
		"after_all root", "after_all mid", "after_all leaf",
	}
	assert.Equal(t, want, *trace)
}

func TestPipeline_GoldenTrace(t *testing.T) {
	pipeline, trace, txn := newTracedPipeline(t)

	chain := tracedChain()
	batch := []services.Redemption{{
		Chain:  chain,
		Hashes: chain.Hashes(),
		Spec:   testutil.SingleSpec(testutil.Addr("target"), nil, nil),
	}}

	runAllPhases(t, pipeline, txn, batch)

	g := goldie.New(t)
	g.Assert(t, "pipeline_trace", []byte(strings.Join(*trace, "\n")+"\n"))
}

func TestPipeline_CaveatArrayOrderWithinDelegation(t *testing.T) {
	pipeline, trace, txn := newTracedPipeline(t)

	root := testutil.RootDelegation(alice, bob,
		testutil.Caveat(tracerAddr, []byte("first")),
		testutil.Caveat(tracerAddr, []byte("second")),
		testutil.Caveat(tracerAddr, []byte("third")),
	)
	chain := types.DelegationChain{root}
	redemption := services.Redemption{
		Chain:  chain,
		Hashes: chain.Hashes(),
		Spec:   testutil.SingleSpec(testutil.Addr("target"), nil, nil),
	}

	require.NoError(t, pipeline.RunBefore(context.Background(), txn, &redemption, bob))
	assert.Equal(t, []string{"before first", "before second", "before third"}, *trace)
}

func TestPipeline_BatchOrderAcrossChains(t *testing.T) {
	pipeline, trace, txn := newTracedPipeline(t)

	first := types.DelegationChain{testutil.RootDelegation(alice, bob, testutil.Caveat(tracerAddr, []byte("chain-0")))}
	second := types.DelegationChain{testutil.RootDelegation(carol, bob, testutil.Caveat(tracerAddr, []byte("chain-1")))}
	batch := []services.Redemption{
		{Chain: first, Hashes: first.Hashes(), Spec: testutil.SingleSpec(testutil.Addr("target"), nil, nil)},
		{Chain: second, Hashes: second.Hashes(), Spec: testutil.SingleSpec(testutil.Addr("target"), nil, nil)},
	}

	ctx := context.Background()
	require.NoError(t, pipeline.RunBeforeAll(ctx, txn, batch, bob))
	require.NoError(t, pipeline.RunAfterAll(ctx, txn, batch, bob))

	want := []string{
		"before_all chain-0", "before_all chain-1",
		"after_all chain-0", "after_all chain-1",
	}
	assert.Equal(t, want, *trace)
}

func TestPipeline_HookFailureWrapped(t *testing.T) {
	failAddr := testutil.Addr("failing")
	registry := enforcers.NewRegistry()
	registry.Register(failAddr, &failingEnforcer{})

	store := state.NewMemoryStore()
	txn, err := store.Begin(true)
	require.NoError(t, err)
	defer txn.Discard()

	pipeline := services.NewCaveatPipelineService(registry, testutil.Addr("manager"))
	chain := types.DelegationChain{testutil.RootDelegation(alice, bob, testutil.Caveat(failAddr, nil))}
	redemption := services.Redemption{
		Chain:  chain,
		Hashes: chain.Hashes(),
		Spec:   testutil.SingleSpec(testutil.Addr("target"), nil, nil),
	}

	err = pipeline.RunBefore(context.Background(), txn, &redemption, bob)
	var hookErr *types.HookError
	require.ErrorAs(t, err, &hookErr)
	assert.Equal(t, constants.BeforePhase, hookErr.Phase)
	assert.Equal(t, failAddr, hookErr.Enforcer)
	var authErr *types.AuthorizationError
	assert.ErrorAs(t, err, &authErr)

	// Other phases are no-ops on this enforcer.
	assert.NoError(t, pipeline.RunAfter(context.Background(), txn, &redemption, bob))
}

func TestPipeline_UnknownEnforcer(t *testing.T) {
	registry := enforcers.NewRegistry()
	store := state.NewMemoryStore()
	txn, err := store.Begin(true)
	require.NoError(t, err)
	defer txn.Discard()

	pipeline := services.NewCaveatPipelineService(registry, testutil.Addr("manager"))
	chain := types.DelegationChain{testutil.RootDelegation(alice, bob, testutil.Caveat(testutil.Addr("nowhere"), nil))}
	redemption := services.Redemption{
		Chain:  chain,
		Hashes: chain.Hashes(),
		Spec:   testutil.SingleSpec(testutil.Addr("target"), nil, nil),
	}

	err = pipeline.RunBefore(context.Background(), txn, &redemption, bob)
	var hookErr *types.HookError
	require.ErrorAs(t, err, &hookErr)
	var structural *types.StructuralError
	assert.ErrorAs(t, err, &structural)
}
