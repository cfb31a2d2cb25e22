package enforcers

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cyphera/delegation-engine/types"
)

// AllowedTargetsEnforcer restricts the execution target to a whitelist.
// Terms are a packed list of 20-byte addresses. Single call type only.
type AllowedTargetsEnforcer struct {
	BaseEnforcer
}

// NewAllowedTargetsEnforcer creates the enforcer.
func NewAllowedTargetsEnforcer() *AllowedTargetsEnforcer {
	return &AllowedTargetsEnforcer{}
}

// Before checks the execution target against the whitelist.
func (e *AllowedTargetsEnforcer) Before(ctx context.Context, cav *CaveatContext) error {
	if len(cav.Terms) == 0 || len(cav.Terms)%common.AddressLength != 0 {
		return types.NewStructuralError("invalid allowed-targets terms length %d", len(cav.Terms))
	}

	execution, err := cav.Execution()
	if err != nil {
		return err
	}

	for offset := 0; offset < len(cav.Terms); offset += common.AddressLength {
		allowed := common.BytesToAddress(cav.Terms[offset : offset+common.AddressLength])
		if execution.Target == allowed {
			return nil
		}
	}
	return types.NewStructuralError("target %s is not allowed", execution.Target.Hex())
}

// EncodeAllowedTargetsTerms packs a target whitelist.
func EncodeAllowedTargetsTerms(targets ...common.Address) []byte {
	terms := make([]byte, 0, len(targets)*common.AddressLength)
	for _, target := range targets {
		terms = append(terms, target.Bytes()...)
	}
	return terms
}
