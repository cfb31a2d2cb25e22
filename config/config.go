package config

import (
	"os"

	"github.com/ethereum/go-ethereum/common"
)

// Config holds engine configuration, populated from environment variables.
type Config struct {
	// Stage selects logger behavior ("prod" enables JSON output).
	Stage string
	// ManagerAddress is the engine identity mixed into every state key.
	ManagerAddress common.Address
	// StateStoreBackend is "memory" or "badger".
	StateStoreBackend string
	// StateStorePath is the badger directory. Ignored for memory.
	StateStorePath string
}

// Load reads configuration from the environment.
func Load() Config {
	return Config{
		Stage:             getEnvWithDefault("ENGINE_STAGE", "dev"),
		ManagerAddress:    common.HexToAddress(getEnvWithDefault("ENGINE_MANAGER_ADDRESS", "0x00000000000000000000000000000000000de1e9")),
		StateStoreBackend: getEnvWithDefault("ENGINE_STATE_STORE", "memory"),
		StateStorePath:    getEnvWithDefault("ENGINE_STATE_STORE_PATH", "./data/state"),
	}
}

// getEnvWithDefault returns environment variable value or default
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
