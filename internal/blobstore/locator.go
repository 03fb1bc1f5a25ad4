// Package blobstore provides content-addressed ciphertext storage. Every
// store names a blob by the lowercase hex SHA-256 of its bytes.
package blobstore

import (
	"crypto/sha256"
	"encoding/hex"

	"paperlock/internal/paperlock"
)

// Locator returns the content address of data.
func Locator(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// validLocator reports whether s has the shape of a locator. Stores check it
// before touching a path or object key built from s.
func validLocator(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func checkLocator(locator string) error {
	if !validLocator(locator) {
		return &paperlock.ValidationError{Field: "locator", Reason: "must be a lowercase hex SHA-256"}
	}
	return nil
}
