package auth

import (
	"crypto/rsa"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Signer выпускает короткоживущие RS256 токены для запросов к API,
// если сервис закрыт шлюзом с проверкой JWT.
type Signer struct {
	key     *rsa.PrivateKey
	issuer  string
	subject string
	ttl     time.Duration
	now     func() time.Time

	mu        sync.Mutex
	cached    string
	expiresAt time.Time
}

func NewSigner(key *rsa.PrivateKey, issuer, subject string, ttl time.Duration) *Signer {
	return &Signer{
		key:     key,
		issuer:  issuer,
		subject: subject,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Token реализует probe.TokenSource. Токен переиспользуется, пока до истечения
// остается больше трети TTL: под нагрузкой подпись на каждый запрос слишком дорога.
func (s *Signer) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.cached != "" && now.Before(s.expiresAt.Add(-s.ttl/3)) {
		return s.cached, nil
	}

	exp := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   s.subject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	s.cached = signed
	s.expiresAt = exp
	return signed, nil
}

// ParseRSAPrivateKey превращает []byte в объект для подписи
func ParseRSAPrivateKey(data []byte) (*rsa.PrivateKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("private key data is empty")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}
