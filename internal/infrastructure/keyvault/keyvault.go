package keyvault

import (
	"encoding/hex"
	"fmt"

	"github.com/go-jose/go-jose/v3"
)

// KeyVault seals paymaster private keys at rest as compact JWE strings
// (dir + A256GCM). Derived keys never leave this package unwrapped except to
// sign a transaction.
type KeyVault struct {
	key []byte
}

// New creates a vault from a hex-encoded 256-bit key
func New(hexKey string) (*KeyVault, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode vault key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("vault key must be 32 bytes, got %d", len(key))
	}
	return &KeyVault{key: key}, nil
}

// Seal encrypts raw key material into a compact JWE
func (v *KeyVault) Seal(material []byte) (string, error) {
	enc, err := jose.NewEncrypter(
		jose.A256GCM,
		jose.Recipient{Algorithm: jose.DIRECT, Key: v.key},
		nil,
	)
	if err != nil {
		return "", fmt.Errorf("new encrypter: %w", err)
	}
	obj, err := enc.Encrypt(material)
	if err != nil {
		return "", fmt.Errorf("encrypt: %w", err)
	}
	compact, err := obj.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("serialize: %w", err)
	}
	return compact, nil
}

// Open decrypts a compact JWE back to the raw key material
func (v *KeyVault) Open(compact string) ([]byte, error) {
	obj, err := jose.ParseEncrypted(compact)
	if err != nil {
		return nil, fmt.Errorf("parse jwe: %w", err)
	}
	material, err := obj.Decrypt(v.key)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return material, nil
}
