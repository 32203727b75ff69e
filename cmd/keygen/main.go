package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
)

func randomHex(bytes int) string {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		log.Fatal(err)
	}
	return hex.EncodeToString(buf)
}

// Prints fresh secrets for a new deployment. Paste into .env.
func main() {
	fmt.Println("JWT_SECRET=" + randomHex(32))
	fmt.Println("API_KEY_ENCRYPTION_KEY=" + randomHex(32))
	fmt.Println("KEY_INDEX_SECRET=" + randomHex(32))
	fmt.Println("MASTER_DERIVATION_SECRET=" + randomHex(32))
	fmt.Println("PAYMASTER_KEY_ENCRYPTION_KEY=" + randomHex(32))
	fmt.Println("WEBHOOK_SIGNING_SECRET=" + randomHex(32))
}
