package enforcers

import (
	"bytes"
	"context"

	"github.com/cyphera/delegation-engine/types"
)

const selectorLength = 4

// AllowedMethodsEnforcer restricts the execution call data to a whitelist
// of 4-byte method selectors. Single call type only.
type AllowedMethodsEnforcer struct {
	BaseEnforcer
}

// NewAllowedMethodsEnforcer creates the enforcer.
func NewAllowedMethodsEnforcer() *AllowedMethodsEnforcer {
	return &AllowedMethodsEnforcer{}
}

// Before checks the call data selector against the whitelist.
func (e *AllowedMethodsEnforcer) Before(ctx context.Context, cav *CaveatContext) error {
	if len(cav.Terms) == 0 || len(cav.Terms)%selectorLength != 0 {
		return types.NewStructuralError("invalid allowed-methods terms length %d", len(cav.Terms))
	}

	execution, err := cav.Execution()
	if err != nil {
		return err
	}
	if len(execution.CallData) < selectorLength {
		return types.NewStructuralError("call data shorter than a method selector")
	}

	selector := execution.CallData[:selectorLength]
	for offset := 0; offset < len(cav.Terms); offset += selectorLength {
		if bytes.Equal(selector, cav.Terms[offset:offset+selectorLength]) {
			return nil
		}
	}
	return types.NewStructuralError("method selector 0x%x is not allowed", selector)
}
