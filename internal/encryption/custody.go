package encryption

import (
	"crypto/aes"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"github.com/awnumar/memguard"
	"golang.org/x/crypto/pbkdf2"

	"paperlock/internal/paperlock"
)

const (
	// SaltSize is the length of the per-wrap random salt.
	SaltSize = 32
	// MinIterations is the lowest PBKDF2 iteration count a Custodian accepts.
	MinIterations = 100_000
	// DefaultIterations is the PBKDF2 iteration count used when none is configured.
	DefaultIterations = 600_000

	wrapKeySize = 32
)

// Custodian implements paperlock.KeyCustodian with age X25519 key pairs.
// Private keys are wrapped with AES-256-CBC under a key and IV derived from
// the user's password by PBKDF2-HMAC-SHA256.
type Custodian struct {
	iterations int
	rand       io.Reader
}

var _ paperlock.KeyCustodian = (*Custodian)(nil)

// NewCustodian creates a Custodian. iterations of zero selects DefaultIterations.
func NewCustodian(iterations int) (*Custodian, error) {
	if iterations == 0 {
		iterations = DefaultIterations
	}
	if iterations < MinIterations {
		return nil, fmt.Errorf("kdf iterations must be at least %d, got %d", MinIterations, iterations)
	}
	return &Custodian{iterations: iterations, rand: rand.Reader}, nil
}

// GenerateKeyPair returns the age recipient string as the public key and the
// age identity string as the private key.
func (c *Custodian) GenerateKeyPair() ([]byte, []byte, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, nil, fmt.Errorf("generating key pair: %w", err)
	}
	return []byte(identity.Recipient().String()), []byte(identity.String()), nil
}

// WrapPrivateKey encrypts privateKey under a key derived from password and a
// fresh salt. The derived material is wiped before returning.
func (c *Custodian) WrapPrivateKey(privateKey, password []byte) ([]byte, []byte, error) {
	if len(password) == 0 {
		return nil, nil, &paperlock.ValidationError{Field: "password", Reason: "must not be empty"}
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(c.rand, salt); err != nil {
		return nil, nil, fmt.Errorf("generating salt: %w", err)
	}

	derived := c.derive(password, salt)
	defer memguard.WipeBytes(derived)

	wrapped, err := cbcEncrypt(derived[:wrapKeySize], derived[wrapKeySize:], privateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("wrapping private key: %w", err)
	}
	return wrapped, salt, nil
}

// UnwrapPrivateKey reverses WrapPrivateKey. A wrong password and corrupted
// input produce the same *paperlock.AuthenticationError.
func (c *Custodian) UnwrapPrivateKey(wrapped, salt, password []byte) ([]byte, error) {
	if len(salt) != SaltSize || len(password) == 0 {
		return nil, &paperlock.AuthenticationError{}
	}

	derived := c.derive(password, salt)
	defer memguard.WipeBytes(derived)

	privateKey, err := cbcDecrypt(derived[:wrapKeySize], derived[wrapKeySize:], wrapped)
	if err != nil {
		return nil, &paperlock.AuthenticationError{}
	}
	if _, err := age.ParseX25519Identity(strings.TrimSpace(string(privateKey))); err != nil {
		memguard.WipeBytes(privateKey)
		return nil, &paperlock.AuthenticationError{}
	}
	return privateKey, nil
}

// Rotate unwraps kp with oldPassword and re-wraps the same private key under
// newPassword with a new salt. The public key is carried over unchanged.
func (c *Custodian) Rotate(kp *paperlock.KeyPair, oldPassword, newPassword []byte) (*paperlock.KeyPair, error) {
	privateKey, err := c.UnwrapPrivateKey(kp.WrappedPrivateKey, kp.Salt, oldPassword)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(privateKey)

	wrapped, salt, err := c.WrapPrivateKey(privateKey, newPassword)
	if err != nil {
		return nil, err
	}

	return &paperlock.KeyPair{
		UserID:            kp.UserID,
		PublicKey:         append([]byte(nil), kp.PublicKey...),
		WrappedPrivateKey: wrapped,
		Salt:              salt,
		Version:           kp.Version + 1,
	}, nil
}

// derive returns wrapKeySize bytes of AES key followed by one block of IV.
func (c *Custodian) derive(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, c.iterations, wrapKeySize+aes.BlockSize, sha256.New)
}
