package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/school-notify-api/internal/config"
	"github.com/school-notify-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeKeys(t *testing.T) (*config.Config, *rsa.PrivateKey) {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privKey)})
	require.NoError(t, os.WriteFile(privPath, privPEM, 0600))
	pubBytes, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	require.NoError(t, os.WriteFile(pubPath, pubPEM, 0600))

	return &config.Config{JWTPrivateKeyPath: privPath, JWTPublicKeyPath: pubPath, JWTExpiry: time.Hour}, privKey
}

func TestProvider_SignVerify(t *testing.T) {
	cfg, _ := writeKeys(t)
	p, err := NewProvider(cfg)
	require.NoError(t, err)

	signed, err := p.Sign("P77", domain.KindParent)
	require.NoError(t, err)

	claims, err := p.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "P77", claims.IdentityID)
	assert.Equal(t, "P77", claims.Subject)
	assert.Equal(t, domain.KindParent, claims.Kind)
}

func TestProvider_RejectsExpired(t *testing.T) {
	cfg, key := writeKeys(t)
	p, err := NewProvider(cfg)
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, Claims{
		IdentityID: "S1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := token.SignedString(key)
	require.NoError(t, err)

	_, err = p.Verify(signed)
	assert.Error(t, err)
}

func TestProvider_RejectsHMAC(t *testing.T) {
	cfg, _ := writeKeys(t)
	p, err := NewProvider(cfg)
	require.NoError(t, err)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{IdentityID: "S1"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = p.Verify(signed)
	assert.Error(t, err)
}

func TestNewProvider_MissingKey(t *testing.T) {
	_, err := NewProvider(&config.Config{JWTPrivateKeyPath: filepath.Join(t.TempDir(), "nope.pem")})
	assert.ErrorContains(t, err, "read private key")
}
