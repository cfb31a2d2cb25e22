package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/cyphera/delegation-engine/constants"
)

// Mode describes how the requested action is dispatched and how execution
// failures are treated.
type Mode struct {
	// CallType is constants.SingleCallType or constants.BatchCallType.
	CallType string `json:"call_type"`
	// ExecType is constants.DefaultExecType (failure aborts the batch) or
	// constants.TryExecType (failure is swallowed and reported).
	ExecType string `json:"exec_type"`
}

// Execution is one opaque call to be dispatched by the executor.
type Execution struct {
	Target   common.Address `json:"target"`
	Value    *big.Int       `json:"value"`
	CallData hexutil.Bytes  `json:"call_data"`
}

// ExecutionSpec is the action to be performed when a delegation chain
// redeems successfully. Single call type requires exactly one execution.
type ExecutionSpec struct {
	Mode       Mode        `json:"mode"`
	Executions []Execution `json:"executions"`
}

// Asset identifies a balance on the external ledger. A nil Token means the
// native asset; a non-nil TokenID selects a specific non-fungible token.
type Asset struct {
	Token   *common.Address `json:"token,omitempty"`
	TokenID *big.Int        `json:"token_id,omitempty"`
}

// NativeAsset returns the identity of the native asset.
func NativeAsset() Asset {
	return Asset{}
}

// TokenAsset returns the identity of a fungible token balance.
func TokenAsset(token common.Address) Asset {
	return Asset{Token: &token}
}

// NFTAsset returns the identity of a non-fungible token position.
func NFTAsset(token common.Address, tokenID *big.Int) Asset {
	return Asset{Token: &token, TokenID: tokenID}
}

// Validate checks internal consistency of the spec.
func (s *ExecutionSpec) Validate() error {
	switch s.Mode.CallType {
	case constants.SingleCallType:
		if len(s.Executions) != 1 {
			return NewStructuralError("single call type requires exactly one execution, got %d", len(s.Executions))
		}
	case constants.BatchCallType:
		if len(s.Executions) == 0 {
			return NewStructuralError("batch call type requires at least one execution")
		}
	default:
		return NewStructuralError("unknown call type %q", s.Mode.CallType)
	}

	switch s.Mode.ExecType {
	case constants.DefaultExecType, constants.TryExecType:
	default:
		return NewStructuralError("unknown exec type %q", s.Mode.ExecType)
	}

	return nil
}
