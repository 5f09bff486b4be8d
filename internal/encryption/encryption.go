// Package encryption protects PAN data with AES-256-GCM.
//
// Ciphertext layout is nonce || ciphertext || auth tag, so a stored blob is
// self-contained. The same plaintext encrypts to different bytes every time
// because the 96-bit nonce is random per call.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const nonceSize = 12

type Service struct {
	aead cipher.AEAD
}

// New builds a Service from a base64-encoded 256-bit key.
func New(encryptionKey string) (*Service, error) {
	key, err := base64.StdEncoding.DecodeString(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes (256 bits), got %d bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("gcm mode: %w", err)
	}
	return &Service{aead: aead}, nil
}

// EncryptPAN encrypts a plaintext PAN for database storage.
func (s *Service) EncryptPAN(pan string) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, []byte(pan), nil), nil
}

// DecryptPAN reverses EncryptPAN. Fails if the blob was tampered with.
func (s *Service) DecryptPAN(blob []byte) (string, error) {
	if len(blob) < nonceSize {
		return "", fmt.Errorf("encrypted PAN too short: %d bytes", len(blob))
	}
	plain, err := s.aead.Open(nil, blob[:nonceSize], blob[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt PAN: %w", err)
	}
	return string(plain), nil
}

// HashPAN returns the hex SHA-256 fingerprint used for duplicate detection
// without decryption. Deterministic, 64 chars.
func (s *Service) HashPAN(pan string) string {
	sum := sha256.Sum256([]byte(pan))
	return hex.EncodeToString(sum[:])
}

// EncryptPANForWire encrypts and base64-encodes a PAN for transport in a
// JSON message body.
func (s *Service) EncryptPANForWire(pan string) (string, error) {
	blob, err := s.EncryptPAN(pan)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(blob), nil
}

// DecryptPANFromWire reverses EncryptPANForWire.
func (s *Service) DecryptPANFromWire(encoded string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid base64 PAN: %w", err)
	}
	return s.DecryptPAN(blob)
}
