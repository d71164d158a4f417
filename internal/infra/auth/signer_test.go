package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestSigner_TokenVerifiesWithPublicKey(t *testing.T) {
	key := newTestKey(t)
	s := NewSigner(key, "mlserve-probe", "loadtest", time.Minute)

	tok, err := s.Token()
	require.NoError(t, err)

	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(tok, &claims, func(token *jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	require.Equal(t, "mlserve-probe", claims.Issuer)
	require.Equal(t, "loadtest", claims.Subject)
}

func TestSigner_ReusesTokenUntilRefreshWindow(t *testing.T) {
	s := NewSigner(newTestKey(t), "iss", "sub", 30*time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	first, err := s.Token()
	require.NoError(t, err)

	now = now.Add(5 * time.Minute)
	second, err := s.Token()
	require.NoError(t, err)
	require.Equal(t, first, second)

	now = now.Add(20 * time.Minute)
	third, err := s.Token()
	require.NoError(t, err)
	require.NotEqual(t, first, third)
}

func TestParseRSAPrivateKey(t *testing.T) {
	_, err := ParseRSAPrivateKey(nil)
	require.Error(t, err)

	key := newTestKey(t)
	data := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	parsed, err := ParseRSAPrivateKey(data)
	require.NoError(t, err)
	require.True(t, key.Equal(parsed))
}
