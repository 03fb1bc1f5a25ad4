package encryption

import (
	"fmt"

	"paperlock/internal/config"
)

// NewCustodianFromConfig creates a Custodian from the crypto config.
func NewCustodianFromConfig(cfg config.CryptoConfig) (*Custodian, error) {
	c, err := NewCustodian(cfg.KDFIterations)
	if err != nil {
		return nil, fmt.Errorf("creating key custodian: %w", err)
	}
	return c, nil
}
