// Package testutil provides in-memory fakes for the external collaborators
// and builders for delegation chains, shared by the package test suites.
package testutil

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cyphera/delegation-engine/constants"
	"github.com/cyphera/delegation-engine/types"
)

// MemoryLedger is a mutable in-memory balance book. Tests move balances
// between hook phases to simulate the effects of executed actions.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]*big.Int
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]*big.Int)}
}

func ledgerKey(holder common.Address, asset types.Asset) string {
	key := holder.Hex()
	if asset.Token != nil {
		key += "/" + asset.Token.Hex()
	}
	if asset.TokenID != nil {
		key += "#" + asset.TokenID.String()
	}
	return key
}

// SetBalance fixes a holder's balance for an asset.
func (l *MemoryLedger) SetBalance(holder common.Address, asset types.Asset, balance *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[ledgerKey(holder, asset)] = new(big.Int).Set(balance)
}

// Adjust adds a signed amount to a holder's balance.
func (l *MemoryLedger) Adjust(holder common.Address, asset types.Asset, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := ledgerKey(holder, asset)
	current, ok := l.balances[key]
	if !ok {
		current = new(big.Int)
	}
	l.balances[key] = new(big.Int).Add(current, amount)
}

// BalanceOf implements interfaces.Ledger. Unknown holders have balance 0.
func (l *MemoryLedger) BalanceOf(ctx context.Context, holder common.Address, asset types.Asset) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	balance, ok := l.balances[ledgerKey(holder, asset)]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(balance), nil
}

// ExecutorCall records one dispatch through the MemoryExecutor.
type ExecutorCall struct {
	Target   common.Address
	Value    *big.Int
	CallData []byte
}

// MemoryExecutor implements interfaces.Executor. RunFunc, when set, is
// invoked on every call and can mutate a ledger to simulate effects.
type MemoryExecutor struct {
	mu      sync.Mutex
	Calls   []ExecutorCall
	RunFunc func(ctx context.Context, target common.Address, value *big.Int, callData []byte) ([]byte, error)
}

// NewMemoryExecutor creates an executor that returns empty bytes.
func NewMemoryExecutor() *MemoryExecutor {
	return &MemoryExecutor{}
}

// Run implements interfaces.Executor.
func (e *MemoryExecutor) Run(ctx context.Context, target common.Address, value *big.Int, callData []byte) ([]byte, error) {
	e.mu.Lock()
	e.Calls = append(e.Calls, ExecutorCall{Target: target, Value: value, CallData: callData})
	e.mu.Unlock()

	if e.RunFunc != nil {
		return e.RunFunc(ctx, target, value, callData)
	}
	return []byte{}, nil
}

// StaticVerifier implements interfaces.SignatureVerifier with a fixed
// verdict.
type StaticVerifier struct {
	Valid bool
}

// IsValid implements interfaces.SignatureVerifier.
func (v *StaticVerifier) IsValid(ctx context.Context, principal common.Address, messageHash common.Hash, credential []byte) (bool, error) {
	return v.Valid, nil
}

// MemoryRevocations implements interfaces.RevocationRegistry over a set.
type MemoryRevocations struct {
	mu       sync.Mutex
	disabled map[common.Hash]bool
}

// NewMemoryRevocations creates an empty registry.
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{disabled: make(map[common.Hash]bool)}
}

// Disable marks a delegation hash as revoked.
func (r *MemoryRevocations) Disable(hash common.Hash) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabled[hash] = true
}

// IsDisabled implements interfaces.RevocationRegistry.
func (r *MemoryRevocations) IsDisabled(ctx context.Context, hash common.Hash) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disabled[hash], nil
}

// Addr builds a deterministic test address from a label.
func Addr(label string) common.Address {
	return common.BytesToAddress([]byte(label))
}

// FakeSignature is a non-empty placeholder credential accepted by
// StaticVerifier{Valid: true}.
var FakeSignature = []byte{0x01}

// RootDelegation builds a self-authorizing delegation.
func RootDelegation(delegator, delegate common.Address, caveats ...types.Caveat) types.Delegation {
	return types.Delegation{
		Delegate:  delegate,
		Delegator: delegator,
		Authority: constants.RootAuthority,
		Caveats:   caveats,
		Salt:      big.NewInt(1),
		Signature: FakeSignature,
	}
}

// ChildDelegation builds a delegation deriving its authority from parent.
// The delegator must match the parent's delegate for the chain to
// validate.
func ChildDelegation(parent types.Delegation, delegate common.Address, caveats ...types.Caveat) types.Delegation {
	return types.Delegation{
		Delegate:  delegate,
		Delegator: parent.Delegate,
		Authority: parent.Hash(),
		Caveats:   caveats,
		Salt:      big.NewInt(1),
		Signature: FakeSignature,
	}
}

// SingleSpec builds a single-call execution spec with the default exec
// type.
func SingleSpec(target common.Address, value *big.Int, callData []byte) types.ExecutionSpec {
	return types.ExecutionSpec{
		Mode: types.Mode{
			CallType: constants.SingleCallType,
			ExecType: constants.DefaultExecType,
		},
		Executions: []types.Execution{{Target: target, Value: value, CallData: callData}},
	}
}

// Caveat builds a caveat for an enforcer principal.
func Caveat(enforcer common.Address, terms []byte) types.Caveat {
	return types.Caveat{Enforcer: enforcer, Terms: terms}
}

// Selector derives a fake 4-byte method selector from a label.
func Selector(label string) []byte {
	return crypto.Keccak256([]byte(label))[:4]
}
