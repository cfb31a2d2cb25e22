// Package enforcers implements the caveat enforcer families. An enforcer
// is a unit with up to four optional hooks; the pipeline drives them in
// the mandated phase order and treats any hook failure as fatal for the
// whole batch.
package enforcers

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cyphera/delegation-engine/constants"
	"github.com/cyphera/delegation-engine/state"
	"github.com/cyphera/delegation-engine/types"
)

// CaveatContext carries everything a hook may inspect for one caveat on
// one delegation. Terms come from the signed delegation; Args are
// redeemer input and must be validated against Terms where the two must
// agree.
type CaveatContext struct {
	Delegation     *types.Delegation
	DelegationHash common.Hash
	Terms          []byte
	Args           []byte
	Redeemer       common.Address
	// Manager is the engine identity, part of every state key so that two
	// engines sharing a store never collide.
	Manager common.Address
	Spec    *types.ExecutionSpec
	// State is the batch-scoped store transaction. Writes commit or
	// discard with the batch.
	State state.Txn
}

// Execution returns the single execution of the spec. Enforcers that
// inspect call data only support the single call type.
func (c *CaveatContext) Execution() (*types.Execution, error) {
	if c.Spec.Mode.CallType != constants.SingleCallType || len(c.Spec.Executions) != 1 {
		return nil, types.NewStructuralError("enforcer requires single call type execution")
	}
	return &c.Spec.Executions[0], nil
}

// Enforcer implements the four-hook caveat protocol. Embed BaseEnforcer to
// get no-op defaults; an enforcer that overrides none of the hooks never
// blocks redemption.
type Enforcer interface {
	BeforeAll(ctx context.Context, cav *CaveatContext) error
	Before(ctx context.Context, cav *CaveatContext) error
	After(ctx context.Context, cav *CaveatContext) error
	AfterAll(ctx context.Context, cav *CaveatContext) error
}

// BaseEnforcer provides no-op hook defaults.
type BaseEnforcer struct{}

func (BaseEnforcer) BeforeAll(ctx context.Context, cav *CaveatContext) error { return nil }
func (BaseEnforcer) Before(ctx context.Context, cav *CaveatContext) error    { return nil }
func (BaseEnforcer) After(ctx context.Context, cav *CaveatContext) error     { return nil }
func (BaseEnforcer) AfterAll(ctx context.Context, cav *CaveatContext) error  { return nil }

// Registry maps enforcer principals to implementations.
type Registry struct {
	mu     sync.RWMutex
	byAddr map[common.Address]Enforcer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byAddr: make(map[common.Address]Enforcer)}
}

// Register binds an enforcer principal to an implementation, replacing any
// previous binding.
func (r *Registry) Register(addr common.Address, enforcer Enforcer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byAddr[addr] = enforcer
}

// Resolve looks up the implementation for an enforcer principal.
func (r *Registry) Resolve(addr common.Address) (Enforcer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	enforcer, ok := r.byAddr[addr]
	if !ok {
		return nil, types.NewStructuralError("no enforcer registered for %s", addr.Hex())
	}
	return enforcer, nil
}
