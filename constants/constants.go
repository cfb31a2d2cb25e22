package constants

import "github.com/ethereum/go-ethereum/common"

// Common string constants used throughout the codebase
const (
	// Log levels
	ErrorLevel = "error"

	// Environments
	ProdEnvironment = "prod"
	TestEnvironment = "test"

	// Execution call types
	SingleCallType = "single"
	BatchCallType  = "batch"

	// Execution modes
	DefaultExecType = "default"
	TryExecType     = "try"

	// Pipeline phases, used in logs and metrics labels
	BeforeAllPhase = "before_all"
	BeforePhase    = "before"
	ExecutePhase   = "execute"
	AfterPhase     = "after"
	AfterAllPhase  = "after_all"
)

var (
	// RootAuthority marks a delegation as self-originated rather than
	// derived from a parent. Value matches the on-chain sentinel
	// bytes32(type(uint256).max).
	RootAuthority = common.HexToHash("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")

	// OpenDelegate is the special delegate address(0xa11) that allows any
	// redeemer to act; restriction is left wholly to caveats.
	OpenDelegate = common.HexToAddress("0x0000000000000000000000000000000000000a11")
)
