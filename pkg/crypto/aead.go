package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

var aeadRandReader io.Reader = rand.Reader

// DeriveSubkey derives a 32-byte AES key from the master encryption key and a
// context string (the project ID for API keys). Ciphertexts produced under one
// project's subkey do not decrypt under another's.
func DeriveSubkey(masterKey []byte, context string) ([]byte, error) {
	r := hkdf.New(sha256.New, masterKey, nil, []byte(context))
	subkey := make([]byte, 32)
	if _, err := io.ReadFull(r, subkey); err != nil {
		return nil, err
	}
	return subkey, nil
}

// EncryptWithSubkey AES-256-GCM encrypts plaintext under the subkey derived
// from (masterKey, context). Output is hex(nonce || ciphertext).
func EncryptWithSubkey(masterKey []byte, context, plaintext string) (string, error) {
	subkey, err := DeriveSubkey(masterKey, context)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(subkey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(aeadRandReader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(ciphertext), nil
}

// DecryptWithSubkey reverses EncryptWithSubkey. Fails if the context differs
// from the one used at encryption time.
func DecryptWithSubkey(masterKey []byte, context, encoded string) (string, error) {
	subkey, err := DeriveSubkey(masterKey, context)
	if err != nil {
		return "", err
	}

	data, err := hex.DecodeString(encoded)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(subkey)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	if len(data) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// HMACSHA256Hex returns the hex HMAC-SHA256 of message under key. Used as the
// O(1) plaintext lookup index for API keys.
func HMACSHA256Hex(key []byte, message string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
