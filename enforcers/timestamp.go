package enforcers

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cyphera/delegation-engine/types"
)

// TimestampEnforcer bounds redemption to a time window. Terms are two
// packed uint128 thresholds (after, before), either of which may be zero
// to leave that side unbounded. Relies on the environment clock being
// monotonically increasing.
type TimestampEnforcer struct {
	BaseEnforcer
	now func() time.Time
}

// NewTimestampEnforcer creates the enforcer with the given clock. A nil
// clock defaults to time.Now.
func NewTimestampEnforcer(now func() time.Time) *TimestampEnforcer {
	if now == nil {
		now = time.Now
	}
	return &TimestampEnforcer{now: now}
}

// Before checks the clock against the window. Runs before the action so an
// expired delegation never executes.
func (e *TimestampEnforcer) Before(ctx context.Context, cav *CaveatContext) error {
	if len(cav.Terms) != 32 {
		return types.NewStructuralError("invalid timestamp terms length: got %d, want 32", len(cav.Terms))
	}

	after := new(big.Int).SetBytes(cav.Terms[:16])
	before := new(big.Int).SetBytes(cav.Terms[16:])
	now := big.NewInt(e.now().Unix())

	if after.Sign() > 0 && now.Cmp(after) <= 0 {
		return types.NewStructuralError("delegation not yet valid: now %s <= after threshold %s", now, after)
	}
	if before.Sign() > 0 && now.Cmp(before) >= 0 {
		return types.NewStructuralError("delegation expired: now %s >= before threshold %s", now, before)
	}
	return nil
}

// EncodeTimestampTerms packs the (after, before) window. Zero time values
// leave the corresponding side unbounded.
func EncodeTimestampTerms(after, before time.Time) []byte {
	terms := make([]byte, 0, 32)

	afterUnix := new(big.Int)
	if !after.IsZero() {
		afterUnix.SetInt64(after.Unix())
	}
	beforeUnix := new(big.Int)
	if !before.IsZero() {
		beforeUnix.SetInt64(before.Unix())
	}

	terms = append(terms, common.LeftPadBytes(afterUnix.Bytes(), 16)...)
	terms = append(terms, common.LeftPadBytes(beforeUnix.Bytes(), 16)...)
	return terms
}
