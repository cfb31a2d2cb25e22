package types_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/cyphera/delegation-engine/constants"
	"github.com/cyphera/delegation-engine/types"
)

func TestExecutionSpec_Validate(t *testing.T) {
	execution := types.Execution{
		Target: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Value:  big.NewInt(0),
	}

	tests := []struct {
		name    string
		spec    types.ExecutionSpec
		wantErr string
	}{
		{
			name: "valid single default",
			spec: types.ExecutionSpec{
				Mode:       types.Mode{CallType: constants.SingleCallType, ExecType: constants.DefaultExecType},
				Executions: []types.Execution{execution},
			},
		},
		{
			name: "valid batch try",
			spec: types.ExecutionSpec{
				Mode:       types.Mode{CallType: constants.BatchCallType, ExecType: constants.TryExecType},
				Executions: []types.Execution{execution, execution},
			},
		},
		{
			name: "single with two executions",
			spec: types.ExecutionSpec{
				Mode:       types.Mode{CallType: constants.SingleCallType, ExecType: constants.DefaultExecType},
				Executions: []types.Execution{execution, execution},
			},
			wantErr: "single call type requires exactly one execution",
		},
		{
			name: "batch with no executions",
			spec: types.ExecutionSpec{
				Mode: types.Mode{CallType: constants.BatchCallType, ExecType: constants.DefaultExecType},
			},
			wantErr: "batch call type requires at least one execution",
		},
		{
			name: "unknown call type",
			spec: types.ExecutionSpec{
				Mode:       types.Mode{CallType: "multicall", ExecType: constants.DefaultExecType},
				Executions: []types.Execution{execution},
			},
			wantErr: "unknown call type",
		},
		{
			name: "unknown exec type",
			spec: types.ExecutionSpec{
				Mode:       types.Mode{CallType: constants.SingleCallType, ExecType: "maybe"},
				Executions: []types.Execution{execution},
			},
			wantErr: "unknown exec type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
			var structural *types.StructuralError
			assert.ErrorAs(t, err, &structural)
		})
	}
}

func TestAssetConstructors(t *testing.T) {
	token := common.HexToAddress("0x2222222222222222222222222222222222222222")

	native := types.NativeAsset()
	assert.Nil(t, native.Token)
	assert.Nil(t, native.TokenID)

	fungible := types.TokenAsset(token)
	assert.Equal(t, token, *fungible.Token)
	assert.Nil(t, fungible.TokenID)

	nft := types.NFTAsset(token, big.NewInt(5))
	assert.Equal(t, token, *nft.Token)
	assert.Equal(t, int64(5), nft.TokenID.Int64())
}
