package enforcers

import (
	"context"
	"math/big"

	"github.com/cyphera/delegation-engine/types"
)

// ValueLimitEnforcer caps the native value of the execution. Terms are a
// 32-byte maximum. Single call type only.
type ValueLimitEnforcer struct {
	BaseEnforcer
}

// NewValueLimitEnforcer creates the enforcer.
func NewValueLimitEnforcer() *ValueLimitEnforcer {
	return &ValueLimitEnforcer{}
}

// Before checks the execution value against the cap.
func (e *ValueLimitEnforcer) Before(ctx context.Context, cav *CaveatContext) error {
	if len(cav.Terms) != 32 {
		return types.NewStructuralError("invalid value-limit terms length: got %d, want 32", len(cav.Terms))
	}

	execution, err := cav.Execution()
	if err != nil {
		return err
	}

	limit := new(big.Int).SetBytes(cav.Terms)
	value := execution.Value
	if value == nil {
		value = new(big.Int)
	}
	if value.Cmp(limit) > 0 {
		return types.NewStructuralError("execution value %s exceeds limit %s", value, limit)
	}
	return nil
}
