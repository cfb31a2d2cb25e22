package enforcers

import (
	"bytes"
	"context"

	"github.com/cyphera/delegation-engine/types"
)

// ArgsEqualityEnforcer pins the redeemer-supplied args to the signed
// terms byte-for-byte. Useful when a downstream enforcer consumes args and
// the delegator wants them fixed at authoring time.
type ArgsEqualityEnforcer struct {
	BaseEnforcer
}

// NewArgsEqualityEnforcer creates the enforcer.
func NewArgsEqualityEnforcer() *ArgsEqualityEnforcer {
	return &ArgsEqualityEnforcer{}
}

// Before compares args with terms.
func (e *ArgsEqualityEnforcer) Before(ctx context.Context, cav *CaveatContext) error {
	if !bytes.Equal(cav.Terms, cav.Args) {
		return types.NewAuthorizationError("redemption args do not match signed terms")
	}
	return nil
}
