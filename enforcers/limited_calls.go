package enforcers

import (
	"context"
	"encoding/json"
	"math/big"

	pkgerrors "github.com/pkg/errors"

	"github.com/cyphera/delegation-engine/types"
)

const limitedCallsNamespace = "limited-calls"

// LimitedCallsEnforcer bounds how many times a delegation can be redeemed
// across its lifetime. Terms are a 32-byte count limit. The counter lives
// in the store keyed by (manager, delegationHash), so it survives batches
// and only advances when a batch commits.
type LimitedCallsEnforcer struct {
	BaseEnforcer
}

// NewLimitedCallsEnforcer creates the enforcer.
func NewLimitedCallsEnforcer() *LimitedCallsEnforcer {
	return &LimitedCallsEnforcer{}
}

type callCountRecord struct {
	Count uint64 `json:"count"`
}

// Before increments the persistent call counter and fails once the limit
// is reached.
func (e *LimitedCallsEnforcer) Before(ctx context.Context, cav *CaveatContext) error {
	if len(cav.Terms) != 32 {
		return types.NewStructuralError("invalid limited-calls terms length: got %d, want 32", len(cav.Terms))
	}
	limit := new(big.Int).SetBytes(cav.Terms)

	key := stateKey(limitedCallsNamespace, cav.Manager.Bytes(), cav.DelegationHash.Bytes())

	var record callCountRecord
	raw, found, err := cav.State.Get(key)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to read call counter")
	}
	if found {
		if err := json.Unmarshal(raw, &record); err != nil {
			return pkgerrors.Wrap(err, "corrupt call counter record")
		}
	}

	record.Count++
	if new(big.Int).SetUint64(record.Count).Cmp(limit) > 0 {
		return types.NewAuthorizationError("delegation call limit %s exhausted", limit)
	}

	encoded, err := json.Marshal(&record)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to encode call counter")
	}
	if err := cav.State.Set(key, encoded); err != nil {
		return pkgerrors.Wrap(err, "failed to persist call counter")
	}
	return nil
}
