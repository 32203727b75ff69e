package crypto

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Deterministic key derivation. All wallet-owner and paymaster keys are a pure
// function of the master derivation secret and their inputs; nothing is stored
// beyond the derived addresses.

func deriveSeed(masterSecret []byte, parts ...string) []byte {
	mac := hmac.New(sha256.New, masterSecret)
	for i, p := range parts {
		if i > 0 {
			mac.Write([]byte{'|'})
		}
		mac.Write([]byte(p))
	}
	return mac.Sum(nil)
}

// DeriveOwnerKeyEVM derives the secp256k1 wallet-owner key for an EVM chain.
func DeriveOwnerKeyEVM(masterSecret []byte, projectID, socialID, socialType string) (*ecdsa.PrivateKey, error) {
	return seedToECDSA(deriveSeed(masterSecret, "owner", projectID, socialID, socialType))
}

// DerivePaymasterKeyEVM derives the per-(project, chain) paymaster signing key.
func DerivePaymasterKeyEVM(masterSecret []byte, projectID, chain string) (*ecdsa.PrivateKey, error) {
	return seedToECDSA(deriveSeed(masterSecret, "pm", projectID, chain))
}

// DeriveOwnerKeySVM derives the ed25519 keypair backing a Solana wallet.
func DeriveOwnerKeySVM(masterSecret []byte, projectID, socialID, socialType string) ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(deriveSeed(masterSecret, "svm", projectID, socialID, socialType))
}

// DerivePaymasterKeySVM derives the Solana fee-payer keypair for a project.
func DerivePaymasterKeySVM(masterSecret []byte, projectID, chain string) ed25519.PrivateKey {
	return ed25519.NewKeyFromSeed(deriveSeed(masterSecret, "pm", projectID, chain))
}

// DeriveWalletSalt computes the CREATE2 salt for a wallet. The salt is keyless
// so counterfactual addresses can be recomputed without the master secret.
func DeriveWalletSalt(projectID, socialID, socialType string) [32]byte {
	h := ethcrypto.Keccak256([]byte("salt"), []byte{'|'}, []byte(projectID), []byte{'|'}, []byte(socialID), []byte{'|'}, []byte(socialType))
	var salt [32]byte
	copy(salt[:], h)
	return salt
}

// DerivePaymasterSalt computes the CREATE2 salt for a project's paymaster proxy.
func DerivePaymasterSalt(projectID, chain string) [32]byte {
	h := ethcrypto.Keccak256([]byte(projectID), []byte{'|'}, []byte(chain))
	var salt [32]byte
	copy(salt[:], h)
	return salt
}

// OwnerAddressEVM returns the checksummed EOA address for a derived key.
func OwnerAddressEVM(key *ecdsa.PrivateKey) string {
	return ethcrypto.PubkeyToAddress(key.PublicKey).Hex()
}

func seedToECDSA(seed []byte) (*ecdsa.PrivateKey, error) {
	// A 32-byte seed is rejected by ToECDSA only when it falls outside the
	// curve order; re-hash until valid.
	for i := 0; i < 8; i++ {
		key, err := ethcrypto.ToECDSA(seed)
		if err == nil {
			return key, nil
		}
		next := sha256.Sum256(seed)
		seed = next[:]
	}
	return nil, fmt.Errorf("failed to derive a valid secp256k1 key")
}
