package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// The engine surfaces four error kinds. Structural and authorization
// errors are raised before any state mutation; hook and execution errors
// abort the batch atomically. None of them are retried here - recovery
// policy belongs to the caller.

// StructuralError reports an empty or malformed chain, a broken authority
// link, or an inconsistent batch shape.
type StructuralError struct {
	Reason string
}

// NewStructuralError builds a StructuralError from a format string.
func NewStructuralError(format string, args ...interface{}) *StructuralError {
	return &StructuralError{Reason: fmt.Sprintf(format, args...)}
}

func (e *StructuralError) Error() string {
	return "structural error: " + e.Reason
}

// AuthorizationError reports a bad signature, a disabled delegation, or a
// delegate/redeemer mismatch.
type AuthorizationError struct {
	Reason string
}

// NewAuthorizationError builds an AuthorizationError from a format string.
func NewAuthorizationError(format string, args ...interface{}) *AuthorizationError {
	return &AuthorizationError{Reason: fmt.Sprintf(format, args...)}
}

func (e *AuthorizationError) Error() string {
	return "authorization error: " + e.Reason
}

// HookError reports a caveat enforcer hook failure. It aborts the whole
// batch regardless of which phase or chain raised it.
type HookError struct {
	Phase    string
	Enforcer common.Address
	Err      error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hook error: enforcer %s failed in %s phase: %v", e.Enforcer.Hex(), e.Phase, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// ExecutionError reports a failed execution dispatch. Fatal under the
// default exec type; under try it is reported in the results instead.
type ExecutionError struct {
	ChainIndex     int
	ExecutionIndex int
	Err            error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution error: chain %d execution %d: %v", e.ChainIndex, e.ExecutionIndex, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
