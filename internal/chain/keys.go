package chain

import (
	"errors"
	"fmt"
	"strings"
)

var errClosed = errors.New("chain is closed")

// validateKey rejects keys the durable runtime cannot encode unambiguously.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("chain key must not be empty")
	}
	if strings.ContainsRune(key, 0) {
		return fmt.Errorf("chain key must not contain NUL")
	}
	return nil
}
