package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"github.com/awnumar/memguard"
	"golang.org/x/crypto/hkdf"

	"paperlock/internal/integrity"
	"paperlock/internal/paperlock"
)

const (
	// DocumentKeySize is the length of the random per-document key.
	DocumentKeySize = 32
	// IVSize is the length of the CBC initialization vector.
	IVSize = aes.BlockSize
	// TagSize is the length of the HMAC appended to each ciphertext.
	TagSize = sha256.Size

	hkdfInfo = "paperlock document v1"
)

// HybridCipher implements paperlock.DocumentCipher.
//
// A random document key is wrapped to the recipient with age. Two subkeys are
// derived from it with HKDF (salted with the IV): one encrypts the payload with
// AES-256-CBC, the other computes an HMAC-SHA256 tag over IV||ciphertext that
// is appended to the ciphertext. The tag is checked before CBC decryption.
type HybridCipher struct {
	rand io.Reader
}

var _ paperlock.DocumentCipher = (*HybridCipher)(nil)

func NewHybridCipher() *HybridCipher {
	return &HybridCipher{rand: rand.Reader}
}

// EncryptDocument seals plaintext for recipientPublicKey (an age1... string).
func (h *HybridCipher) EncryptDocument(plaintext, recipientPublicKey []byte) (*paperlock.SealedDocument, error) {
	recipient, err := age.ParseX25519Recipient(strings.TrimSpace(string(recipientPublicKey)))
	if err != nil {
		return nil, &paperlock.ValidationError{Field: "recipient_public_key", Reason: "not a valid X25519 recipient"}
	}

	docKey := make([]byte, DocumentKeySize)
	defer memguard.WipeBytes(docKey)
	if _, err := io.ReadFull(h.rand, docKey); err != nil {
		return nil, fmt.Errorf("generating document key: %w", err)
	}
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(h.rand, iv); err != nil {
		return nil, fmt.Errorf("generating iv: %w", err)
	}

	encKey, macKey, err := deriveSubkeys(docKey, iv)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(encKey)
	defer memguard.WipeBytes(macKey)

	body, err := cbcEncrypt(encKey, iv, plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypting payload: %w", err)
	}
	ciphertext := append(body, computeTag(macKey, iv, body)...)

	var wrapped bytes.Buffer
	w, err := age.Encrypt(&wrapped, recipient)
	if err != nil {
		return nil, fmt.Errorf("creating key wrapper: %w", err)
	}
	if _, err := w.Write(docKey); err != nil {
		return nil, fmt.Errorf("wrapping document key: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing wrapped key: %w", err)
	}

	return &paperlock.SealedDocument{
		Ciphertext: ciphertext,
		WrappedKey: wrapped.Bytes(),
		IV:         iv,
		Hash:       integrity.Hash(plaintext),
	}, nil
}

// DecryptDocument unwraps the document key with recipientPrivateKey (an
// AGE-SECRET-KEY-1... string), authenticates and decrypts the ciphertext, and
// checks the plaintext against expectedHash. Plaintext is only returned when
// every check passes.
func (h *HybridCipher) DecryptDocument(sealed *paperlock.SealedDocument, recipientPrivateKey []byte, expectedHash integrity.Digest) ([]byte, error) {
	docKey, err := unwrapDocumentKey(sealed.WrappedKey, recipientPrivateKey)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(docKey)

	if len(sealed.IV) != IVSize {
		return nil, &paperlock.IntegrityError{Reason: "malformed iv"}
	}
	if len(sealed.Ciphertext) < aes.BlockSize+TagSize {
		return nil, &paperlock.IntegrityError{Reason: "ciphertext too short"}
	}
	body := sealed.Ciphertext[:len(sealed.Ciphertext)-TagSize]
	tag := sealed.Ciphertext[len(sealed.Ciphertext)-TagSize:]

	encKey, macKey, err := deriveSubkeys(docKey, sealed.IV)
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(encKey)
	defer memguard.WipeBytes(macKey)

	if !hmac.Equal(computeTag(macKey, sealed.IV, body), tag) {
		return nil, &paperlock.IntegrityError{Reason: "ciphertext authentication failed"}
	}

	plaintext, err := cbcDecrypt(encKey, sealed.IV, body)
	if err != nil {
		return nil, &paperlock.IntegrityError{Reason: "ciphertext could not be decoded"}
	}
	if !integrity.Verify(plaintext, expectedHash) {
		memguard.WipeBytes(plaintext)
		return nil, &paperlock.IntegrityError{Reason: "plaintext hash mismatch"}
	}
	return plaintext, nil
}

func unwrapDocumentKey(wrapped, recipientPrivateKey []byte) ([]byte, error) {
	identity, err := age.ParseX25519Identity(strings.TrimSpace(string(recipientPrivateKey)))
	if err != nil {
		return nil, &paperlock.AuthenticationError{}
	}
	r, err := age.Decrypt(bytes.NewReader(wrapped), identity)
	if err != nil {
		return nil, &paperlock.AuthenticationError{}
	}
	docKey, err := io.ReadAll(io.LimitReader(r, DocumentKeySize+1))
	if err != nil || len(docKey) != DocumentKeySize {
		memguard.WipeBytes(docKey)
		return nil, &paperlock.AuthenticationError{}
	}
	return docKey, nil
}

func deriveSubkeys(docKey, iv []byte) (encKey, macKey []byte, err error) {
	out := make([]byte, 2*DocumentKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, docKey, iv, []byte(hkdfInfo)), out); err != nil {
		return nil, nil, fmt.Errorf("deriving document subkeys: %w", err)
	}
	return out[:DocumentKeySize], out[DocumentKeySize:], nil
}

func computeTag(macKey, iv, body []byte) []byte {
	m := hmac.New(sha256.New, macKey)
	m.Write(iv)
	m.Write(body)
	return m.Sum(nil)
}
