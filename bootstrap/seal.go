package bootstrap

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// sealToken encrypts a bearer token before it is written to disk. The nonce
// is prepended to the ciphertext.
func sealToken(key [32]byte, token string) ([]byte, error) {
	if token == "" {
		return nil, nil
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("bootstrap: failed to generate nonce: %w", err)
	}

	return secretbox.Seal(nonce[:], []byte(token), &nonce, &key), nil
}

// openToken decrypts a sealed bearer token. A short or tampered box yields an
// error rather than a partial token.
func openToken(key [32]byte, box []byte) (string, error) {
	if len(box) == 0 {
		return "", nil
	}
	if len(box) < nonceSize {
		return "", fmt.Errorf("bootstrap: sealed token too short")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])

	token, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &key)
	if !ok {
		return "", fmt.Errorf("bootstrap: failed to open sealed token")
	}

	return string(token), nil
}
