package encryption

import (
	"bytes"
	"errors"
	"testing"
)

func TestPKCS7(t *testing.T) {
	tests := []struct {
		name   string
		input  []byte
		padLen int
	}{
		{name: "empty pads a full block", input: nil, padLen: 16},
		{name: "one short of a block", input: bytes.Repeat([]byte{1}, 15), padLen: 1},
		{name: "full block pads another", input: bytes.Repeat([]byte{1}, 16), padLen: 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			padded := pkcs7Pad(tt.input, 16)
			if len(padded) != len(tt.input)+tt.padLen {
				t.Fatalf("padded length = %d, want %d", len(padded), len(tt.input)+tt.padLen)
			}
			got, err := pkcs7Unpad(padded, 16)
			if err != nil {
				t.Fatalf("pkcs7Unpad() error = %v", err)
			}
			if !bytes.Equal(got, tt.input) {
				t.Errorf("pkcs7Unpad() = %x, want %x", got, tt.input)
			}
		})
	}
}

func TestPKCS7Unpad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{name: "empty", input: nil},
		{name: "not block aligned", input: make([]byte, 15)},
		{name: "zero pad byte", input: make([]byte, 16)},
		{name: "pad byte too large", input: append(make([]byte, 15), 17)},
		{name: "inconsistent pad bytes", input: append(make([]byte, 14), 3, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := pkcs7Unpad(tt.input, 16); !errors.Is(err, errPadding) {
				t.Errorf("pkcs7Unpad() error = %v, want errPadding", err)
			}
		})
	}
}

func TestCBC_RoundTrip(t *testing.T) {
	t.Parallel()
	key := bytes.Repeat([]byte{7}, 32)
	iv := bytes.Repeat([]byte{9}, 16)

	ct, err := cbcEncrypt(key, iv, []byte("paper"))
	if err != nil {
		t.Fatalf("cbcEncrypt() error = %v", err)
	}
	pt, err := cbcDecrypt(key, iv, ct)
	if err != nil {
		t.Fatalf("cbcDecrypt() error = %v", err)
	}
	if string(pt) != "paper" {
		t.Errorf("cbcDecrypt() = %q, want %q", pt, "paper")
	}

	if _, err := cbcEncrypt(key, iv[:8], []byte("x")); err == nil {
		t.Error("cbcEncrypt() accepted a short iv")
	}
}
