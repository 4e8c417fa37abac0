package security

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt"
)

// LoadKeyPair reads a PEM private key (PKCS#1 or PKCS#8) and its PEM public
// key, and rejects pairs that do not belong together.
func LoadKeyPair(privatePath, publicPath string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	raw, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, nil, err
	}
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", privatePath, err)
	}

	raw, err = os.ReadFile(publicPath)
	if err != nil {
		return nil, nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", publicPath, err)
	}

	if !priv.PublicKey.Equal(pub) {
		return nil, nil, errors.New("public key does not match private key")
	}
	return priv, pub, nil
}

// GenerateEphemeralKey returns an in-memory key; tokens die with the process.
func GenerateEphemeralKey() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, 2048)
}
