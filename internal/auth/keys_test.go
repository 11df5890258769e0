package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/registration-service/internal/auth"
)

func writeTestKeys(t *testing.T) (string, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "jwt-private.pem")
	pubPath := filepath.Join(dir, "jwt-public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0o600))

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubDER,
	})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0o600))

	return privPath, pubPath
}

func TestLoadKeyPair(t *testing.T) {
	t.Parallel()

	privPath, pubPath := writeTestKeys(t)

	keys, err := auth.LoadKeyPair(privPath, pubPath)
	require.NoError(t, err)
	require.NotNil(t, keys.Private)
	require.NotNil(t, keys.Public)
	require.True(t, keys.Private.PublicKey.Equal(keys.Public))
}

func TestLoadKeyPair_MissingFile(t *testing.T) {
	t.Parallel()

	_, pubPath := writeTestKeys(t)

	_, err := auth.LoadKeyPair(filepath.Join(t.TempDir(), "missing.pem"), pubPath)
	require.Error(t, err)
}

func TestLoadKeyPair_InvalidPEM(t *testing.T) {
	t.Parallel()

	privPath, _ := writeTestKeys(t)
	badPath := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(badPath, []byte("garbage"), 0o600))

	_, err := auth.LoadKeyPair(badPath, badPath)
	require.Error(t, err)

	_, err = auth.LoadKeyPair(privPath, badPath)
	require.Error(t, err)
}
