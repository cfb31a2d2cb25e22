package enforcers

import (
	"context"
	"encoding/json"
	"math/big"

	pkgerrors "github.com/pkg/errors"

	"github.com/cyphera/delegation-engine/interfaces"
	"github.com/cyphera/delegation-engine/types"
)

const totalBalanceNamespace = "total-balance-change"

// TotalBalanceChangeEnforcer is the redemption-wide balance-tracking
// variant. Its tracker is keyed by (manager, recipient, asset) with the
// delegation hash deliberately excluded, so every delegation in a batch
// that watches the same recipient and asset shares one accounting.
//
// The first participant on a key must be owner-authored (the delegation's
// delegator is the watched recipient); it snapshots the initial balance.
// Owner-authored contributions accumulate additively. A redelegated
// contribution (delegator differs from the recipient) must be at least as
// strict as the accumulated value for its direction and replaces it. The
// final AfterAll on the key checks the actual balance delta against the
// net expected change and deletes the tracker. Any balance movement
// between the first BeforeAll and the last AfterAll counts toward the
// delta, whatever caused it; the guarantee is about the final state, not
// the path.
type TotalBalanceChangeEnforcer struct {
	BaseEnforcer
	ledger interfaces.Ledger
	scheme assetScheme
}

// NewNativeTotalBalanceChangeEnforcer tracks native asset balances.
func NewNativeTotalBalanceChangeEnforcer(ledger interfaces.Ledger) *TotalBalanceChangeEnforcer {
	return &TotalBalanceChangeEnforcer{ledger: ledger, scheme: nativeScheme}
}

// NewERC20TotalBalanceChangeEnforcer tracks fungible token balances.
func NewERC20TotalBalanceChangeEnforcer(ledger interfaces.Ledger) *TotalBalanceChangeEnforcer {
	return &TotalBalanceChangeEnforcer{ledger: ledger, scheme: erc20Scheme}
}

// NewERC721TotalBalanceChangeEnforcer tracks non-fungible token positions.
func NewERC721TotalBalanceChangeEnforcer(ledger interfaces.Ledger) *TotalBalanceChangeEnforcer {
	return &TotalBalanceChangeEnforcer{ledger: ledger, scheme: erc721Scheme}
}

// totalBalanceRecord accumulates expected movement per direction. The net
// expected change is ExpectedIncrease - ExpectedDecrease.
type totalBalanceRecord struct {
	InitialBalance      *big.Int `json:"initial_balance"`
	ExpectedIncrease    *big.Int `json:"expected_increase"`
	ExpectedDecrease    *big.Int `json:"expected_decrease"`
	ValidationRemaining int      `json:"validation_remaining"`
}

func (e *TotalBalanceChangeEnforcer) key(cav *CaveatContext, terms *balanceTerms) []byte {
	return stateKey(totalBalanceNamespace,
		cav.Manager.Bytes(),
		terms.recipient.Bytes(),
		assetKeyBytes(terms.asset),
	)
}

func (e *TotalBalanceChangeEnforcer) load(cav *CaveatContext, key []byte) (*totalBalanceRecord, bool, error) {
	raw, found, err := cav.State.Get(key)
	if err != nil {
		return nil, false, pkgerrors.Wrap(err, "failed to read balance tracker")
	}
	if !found {
		return nil, false, nil
	}
	var record totalBalanceRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, pkgerrors.Wrap(err, "corrupt balance tracker record")
	}
	return &record, true, nil
}

func (e *TotalBalanceChangeEnforcer) save(cav *CaveatContext, key []byte, record *totalBalanceRecord) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to encode balance tracker")
	}
	if err := cav.State.Set(key, encoded); err != nil {
		return pkgerrors.Wrap(err, "failed to persist balance tracker")
	}
	return nil
}

// BeforeAll registers this caveat's contribution with the shared tracker,
// creating it on first owner-authored participation.
func (e *TotalBalanceChangeEnforcer) BeforeAll(ctx context.Context, cav *CaveatContext) error {
	terms, err := parseBalanceTerms(e.scheme, cav.Terms)
	if err != nil {
		return err
	}

	key := e.key(cav, terms)
	record, found, err := e.load(cav, key)
	if err != nil {
		return err
	}

	ownerAuthored := cav.Delegation.Delegator == terms.recipient

	if !found {
		if !ownerAuthored {
			// Initialization rule: the very first participant on a key
			// must be authored by the watched recipient.
			return types.NewAuthorizationError(
				"balance tracker for %s must be initialized by a delegation authored by the recipient", terms.recipient.Hex())
		}
		initial, err := e.ledger.BalanceOf(ctx, terms.recipient, terms.asset)
		if err != nil {
			return pkgerrors.Wrap(err, "ledger snapshot failed")
		}
		record = &totalBalanceRecord{
			InitialBalance:   initial,
			ExpectedIncrease: new(big.Int),
			ExpectedDecrease: new(big.Int),
		}
	}

	if ownerAuthored {
		if terms.increase() {
			record.ExpectedIncrease = new(big.Int).Add(record.ExpectedIncrease, terms.amount)
		} else {
			record.ExpectedDecrease = new(big.Int).Add(record.ExpectedDecrease, terms.amount)
		}
	} else {
		// Redelegated terms replace the accumulated value for their
		// direction, and only toward strictness.
		if terms.increase() {
			if terms.amount.Cmp(record.ExpectedIncrease) < 0 {
				return types.NewAuthorizationError(
					"redelegated minimum increase %s is weaker than accumulated %s", terms.amount, record.ExpectedIncrease)
			}
			record.ExpectedIncrease = new(big.Int).Set(terms.amount)
		} else {
			if terms.amount.Cmp(record.ExpectedDecrease) > 0 {
				return types.NewAuthorizationError(
					"redelegated maximum decrease %s is weaker than accumulated %s", terms.amount, record.ExpectedDecrease)
			}
			record.ExpectedDecrease = new(big.Int).Set(terms.amount)
		}
	}

	record.ValidationRemaining++
	return e.save(cav, key, record)
}

// AfterAll counts down the registered validations; the invocation that
// reaches zero performs the final net check and deletes the tracker.
func (e *TotalBalanceChangeEnforcer) AfterAll(ctx context.Context, cav *CaveatContext) error {
	terms, err := parseBalanceTerms(e.scheme, cav.Terms)
	if err != nil {
		return err
	}

	key := e.key(cav, terms)
	record, found, err := e.load(cav, key)
	if err != nil {
		return err
	}
	if !found {
		return types.NewAuthorizationError("balance tracker for %s is missing", terms.recipient.Hex())
	}

	record.ValidationRemaining--
	if record.ValidationRemaining > 0 {
		return e.save(cav, key, record)
	}

	balance, err := e.ledger.BalanceOf(ctx, terms.recipient, terms.asset)
	if err != nil {
		return pkgerrors.Wrap(err, "ledger snapshot failed")
	}

	actualDelta := new(big.Int).Sub(balance, record.InitialBalance)
	netExpected := new(big.Int).Sub(record.ExpectedIncrease, record.ExpectedDecrease)
	if actualDelta.Cmp(netExpected) < 0 {
		return types.NewAuthorizationError(
			"net balance change %s for %s is below expected %s", actualDelta, terms.recipient.Hex(), netExpected)
	}

	if err := cav.State.Delete(key); err != nil {
		return pkgerrors.Wrap(err, "failed to delete balance tracker")
	}
	return nil
}
