package enforcers_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyphera/delegation-engine/constants"
	"github.com/cyphera/delegation-engine/enforcers"
	"github.com/cyphera/delegation-engine/testutil"
	"github.com/cyphera/delegation-engine/types"
)

func TestRegistry(t *testing.T) {
	registry := enforcers.NewRegistry()
	addr := testutil.Addr("enforcer")

	_, err := registry.Resolve(addr)
	var structural *types.StructuralError
	require.ErrorAs(t, err, &structural)

	registered := enforcers.NewArgsEqualityEnforcer()
	registry.Register(addr, registered)

	resolved, err := registry.Resolve(addr)
	require.NoError(t, err)
	assert.Same(t, registered, resolved)
}

func TestBaseEnforcer_AllHooksNoop(t *testing.T) {
	// An enforcer that overrides none of the hooks never blocks
	// redemption.
	var base enforcers.BaseEnforcer
	ctx := context.Background()

	assert.NoError(t, base.BeforeAll(ctx, nil))
	assert.NoError(t, base.Before(ctx, nil))
	assert.NoError(t, base.After(ctx, nil))
	assert.NoError(t, base.AfterAll(ctx, nil))
}

func TestCaveatContext_ExecutionRequiresSingleMode(t *testing.T) {
	delegation := testutil.RootDelegation(recipient, redeemer)

	single := testutil.SingleSpec(token, big.NewInt(5), nil)
	cav := &enforcers.CaveatContext{Delegation: &delegation, Spec: &single}
	execution, err := cav.Execution()
	require.NoError(t, err)
	assert.Equal(t, token, execution.Target)

	batch := types.ExecutionSpec{
		Mode: types.Mode{CallType: constants.BatchCallType, ExecType: constants.DefaultExecType},
		Executions: []types.Execution{
			{Target: token, Value: new(big.Int)},
			{Target: token, Value: new(big.Int)},
		},
	}
	cav = &enforcers.CaveatContext{Delegation: &delegation, Spec: &batch}
	_, err = cav.Execution()
	assert.Error(t, err)
}
