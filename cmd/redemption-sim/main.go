// Command redemption-sim wires the engine against in-memory collaborators
// and runs a single redemption: a root delegation carrying a minimum
// balance-increase caveat, redeemed against an executor that simulates the
// payment. Useful as a smoke test and as wiring documentation.
package main

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cyphera/delegation-engine/config"
	"github.com/cyphera/delegation-engine/constants"
	"github.com/cyphera/delegation-engine/enforcers"
	"github.com/cyphera/delegation-engine/logger"
	"github.com/cyphera/delegation-engine/services"
	"github.com/cyphera/delegation-engine/state"
	"github.com/cyphera/delegation-engine/types"
)

type simLedger struct {
	balances map[common.Address]*big.Int
}

func (l *simLedger) BalanceOf(ctx context.Context, holder common.Address, asset types.Asset) (*big.Int, error) {
	balance, ok := l.balances[holder]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(balance), nil
}

type simExecutor struct {
	ledger    *simLedger
	recipient common.Address
	amount    *big.Int
}

func (e *simExecutor) Run(ctx context.Context, target common.Address, value *big.Int, callData []byte) ([]byte, error) {
	current := e.ledger.balances[e.recipient]
	e.ledger.balances[e.recipient] = new(big.Int).Add(current, e.amount)
	return []byte{}, nil
}

type simVerifier struct{}

func (simVerifier) IsValid(ctx context.Context, principal common.Address, messageHash common.Hash, credential []byte) (bool, error) {
	return len(credential) > 0, nil
}

type simRevocations struct{}

func (simRevocations) IsDisabled(ctx context.Context, hash common.Hash) (bool, error) {
	return false, nil
}

func main() {
	// A missing .env file is fine; env vars still apply.
	_ = godotenv.Load()

	cfg := config.Load()
	logger.InitLogger(cfg.Stage)
	defer func() { _ = logger.Sync() }()

	var store state.Store
	var err error
	if cfg.StateStoreBackend == "badger" {
		store, err = state.NewBadgerStore(state.BadgerConfig{Path: cfg.StateStorePath, SyncWrites: true})
		if err != nil {
			logger.Fatal("failed to open state store", zap.Error(err))
		}
	} else {
		store = state.NewMemoryStore()
	}
	defer func() { _ = store.Close() }()

	merchant := common.HexToAddress("0x1000000000000000000000000000000000000001")
	subscriber := common.HexToAddress("0x2000000000000000000000000000000000000002")
	token := common.HexToAddress("0x3000000000000000000000000000000000000003")
	enforcerAddr := common.HexToAddress("0x4000000000000000000000000000000000000004")

	ledger := &simLedger{balances: map[common.Address]*big.Int{merchant: big.NewInt(500)}}
	executor := &simExecutor{ledger: ledger, recipient: merchant, amount: big.NewInt(150)}

	registry := enforcers.NewRegistry()
	registry.Register(enforcerAddr, enforcers.NewERC20BalanceChangeEnforcer(ledger))

	validator := services.NewChainValidatorService(simVerifier{}, simRevocations{})
	pipeline := services.NewCaveatPipelineService(registry, cfg.ManagerAddress)
	engine := services.NewRedemptionService(validator, pipeline, executor, store)

	terms := enforcers.EncodeBalanceTerms(true, types.TokenAsset(token), merchant, big.NewInt(100))
	chain := types.DelegationChain{{
		Delegate:  subscriber,
		Delegator: merchant,
		Authority: constants.RootAuthority,
		Caveats:   []types.Caveat{{Enforcer: enforcerAddr, Terms: terms}},
		Salt:      big.NewInt(1),
		Signature: []byte{0x01},
	}}
	spec := types.ExecutionSpec{
		Mode:       types.Mode{CallType: constants.SingleCallType, ExecType: constants.DefaultExecType},
		Executions: []types.Execution{{Target: token, Value: new(big.Int), CallData: []byte{0xa9, 0x05, 0x9c, 0xbb}}},
	}

	results, err := engine.Redeem(context.Background(), subscriber, subscriber,
		[]types.DelegationChain{chain}, []types.ExecutionSpec{spec})
	if err != nil {
		logger.Fatal("redemption failed", zap.Error(err))
	}

	logger.Info("redemption succeeded",
		zap.Int("chains", len(results)),
		zap.String("merchant_balance", ledger.balances[merchant].String()),
	)
}
