package notifications

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateVAPIDKeys creates a fresh P-256 key pair in the base64url form
// web push subscriptions expect
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate vapid key: %w", err)
	}

	// The private scalar must be exactly 32 bytes, left-padded
	privBytes := priv.D.Bytes()
	if len(privBytes) < 32 {
		padded := make([]byte, 32)
		copy(padded[32-len(privBytes):], privBytes)
		privBytes = padded
	}
	privateKey = base64.RawURLEncoding.EncodeToString(privBytes)

	// Public key as an uncompressed curve point
	pubBytes := elliptic.Marshal(elliptic.P256(), priv.PublicKey.X, priv.PublicKey.Y)
	publicKey = base64.RawURLEncoding.EncodeToString(pubBytes)

	return publicKey, privateKey, nil
}

// PrintVAPIDKeys generates a key pair and prints it as .env lines, for
// the -gen-vapid-keys flag
func PrintVAPIDKeys() {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		fmt.Printf("error generating VAPID keys: %v\n", err)
		return
	}

	fmt.Println("Copy these into your .env:")
	fmt.Println()
	fmt.Printf("VAPID_PUBLIC_KEY=%s\n", pub)
	fmt.Printf("VAPID_PRIVATE_KEY=%s\n", priv)
	fmt.Println("VAPID_SUBJECT=mailto:you@example.com")
}
