package chain

import (
	"fmt"

	"paperlock/internal/config"
	"paperlock/internal/paperlock"
)

// NewChainFromConfig creates a Chain implementation based on the chain config type.
func NewChainFromConfig(cfg config.ChainConfig, clock paperlock.Clock, ids paperlock.IDGenerator, logger paperlock.Logger) (paperlock.Chain, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryChain(clock, ids), nil
	case "badger":
		if cfg.DataDir == "" && !cfg.InMemory {
			return nil, fmt.Errorf("badger chain requires data_dir or in_memory")
		}
		dir := cfg.DataDir
		if cfg.InMemory {
			dir = ""
		}
		c, err := NewBadgerChain(dir, clock, ids, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown chain type: %s", cfg.Type)
	}
}
