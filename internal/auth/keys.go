package auth

import (
	"crypto/rsa"
	"fmt"
	"os"

	jwt "github.com/golang-jwt/jwt/v5"
)

// KeyPair holds the asymmetric signing material, loaded once at startup
// and treated as immutable for the process lifetime.
type KeyPair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// LoadKeyPair reads and parses PEM-encoded RSA keys from the configured
// paths. The process must not start without usable key material.
func LoadKeyPair(privateKeyPath, publicKeyPath string) (*KeyPair, error) {
	privPEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubPEM, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &KeyPair{Private: priv, Public: pub}, nil
}
