package enforcers

import (
	"context"
	"encoding/json"
	"math/big"

	pkgerrors "github.com/pkg/errors"

	"github.com/cyphera/delegation-engine/interfaces"
	"github.com/cyphera/delegation-engine/types"
)

const balanceChangeNamespace = "balance-change"

// BalanceChangeEnforcer is the regular balance-tracking variant. Before
// the action it snapshots the recipient's balance under a lock keyed by
// (manager, delegationHash, asset); after the action it checks the delta
// against the caveat's direction and threshold and releases the lock.
//
// Two independent regular enforcers watching the same recipient and asset
// are each satisfied by the same underlying balance movement. That is a
// documented limitation of this variant, not a bug; use the total variant
// when several delegations must share one accounting.
type BalanceChangeEnforcer struct {
	BaseEnforcer
	ledger interfaces.Ledger
	scheme assetScheme
}

// NewNativeBalanceChangeEnforcer tracks native asset balances.
func NewNativeBalanceChangeEnforcer(ledger interfaces.Ledger) *BalanceChangeEnforcer {
	return &BalanceChangeEnforcer{ledger: ledger, scheme: nativeScheme}
}

// NewERC20BalanceChangeEnforcer tracks fungible token balances.
func NewERC20BalanceChangeEnforcer(ledger interfaces.Ledger) *BalanceChangeEnforcer {
	return &BalanceChangeEnforcer{ledger: ledger, scheme: erc20Scheme}
}

// NewERC721BalanceChangeEnforcer tracks non-fungible token positions.
func NewERC721BalanceChangeEnforcer(ledger interfaces.Ledger) *BalanceChangeEnforcer {
	return &BalanceChangeEnforcer{ledger: ledger, scheme: erc721Scheme}
}

type balanceRecord struct {
	CachedBalance *big.Int `json:"cached_balance"`
	Locked        bool     `json:"locked"`
}

func (e *BalanceChangeEnforcer) key(cav *CaveatContext, terms *balanceTerms) []byte {
	return stateKey(balanceChangeNamespace,
		cav.Manager.Bytes(),
		cav.DelegationHash.Bytes(),
		assetKeyBytes(terms.asset),
	)
}

// Before locks the key and caches the recipient's current balance. A
// re-entrant Before on an already-locked key fails closed.
func (e *BalanceChangeEnforcer) Before(ctx context.Context, cav *CaveatContext) error {
	terms, err := parseBalanceTerms(e.scheme, cav.Terms)
	if err != nil {
		return err
	}

	key := e.key(cav, terms)
	_, found, err := cav.State.Get(key)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to read balance state")
	}
	if found {
		return types.NewAuthorizationError("balance state for delegation %s is already locked", cav.DelegationHash.Hex())
	}

	balance, err := e.ledger.BalanceOf(ctx, terms.recipient, terms.asset)
	if err != nil {
		return pkgerrors.Wrap(err, "ledger snapshot failed")
	}

	encoded, err := json.Marshal(&balanceRecord{CachedBalance: balance, Locked: true})
	if err != nil {
		return pkgerrors.Wrap(err, "failed to encode balance state")
	}
	if err := cav.State.Set(key, encoded); err != nil {
		return pkgerrors.Wrap(err, "failed to persist balance state")
	}
	return nil
}

// After computes the balance delta, checks it against the configured
// direction and threshold, and clears the state entry.
func (e *BalanceChangeEnforcer) After(ctx context.Context, cav *CaveatContext) error {
	terms, err := parseBalanceTerms(e.scheme, cav.Terms)
	if err != nil {
		return err
	}

	key := e.key(cav, terms)
	raw, found, err := cav.State.Get(key)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to read balance state")
	}
	if !found {
		return types.NewAuthorizationError("balance state for delegation %s is not locked", cav.DelegationHash.Hex())
	}

	var record balanceRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return pkgerrors.Wrap(err, "corrupt balance state record")
	}
	if !record.Locked {
		return types.NewAuthorizationError("balance state for delegation %s is not locked", cav.DelegationHash.Hex())
	}

	balance, err := e.ledger.BalanceOf(ctx, terms.recipient, terms.asset)
	if err != nil {
		return pkgerrors.Wrap(err, "ledger snapshot failed")
	}

	delta := new(big.Int).Sub(balance, record.CachedBalance)
	if terms.increase() {
		if delta.Cmp(terms.amount) < 0 {
			return types.NewAuthorizationError("balance increased by %s, expected at least %s", delta, terms.amount)
		}
	} else {
		decrease := new(big.Int).Neg(delta)
		if decrease.Cmp(terms.amount) > 0 {
			return types.NewAuthorizationError("balance decreased by %s, allowed at most %s", decrease, terms.amount)
		}
	}

	if err := cav.State.Delete(key); err != nil {
		return pkgerrors.Wrap(err, "failed to clear balance state")
	}
	return nil
}
