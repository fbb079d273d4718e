package app

import (
	"context"
	"errors"
	"time"

	"tenant-quiz-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// GrantClientCredentials is the only supported OAuth grant.
const GrantClientCredentials = "client_credentials"

// Token is an issued bearer token.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   time.Duration
}

// Authenticator exchanges client credentials for signed tokens and resolves tokens
// back to active clients.
type Authenticator struct {
	clients ClientStore
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
}

func NewAuthenticator(clients ClientStore, secret string, ttl time.Duration) *Authenticator {
	return NewAuthenticatorWithClock(clients, secret, ttl, time.Now)
}

// NewAuthenticatorWithClock allows deterministic expiry in tests.
func NewAuthenticatorWithClock(clients ClientStore, secret string, ttl time.Duration, now func() time.Time) *Authenticator {
	return &Authenticator{clients: clients, secret: []byte(secret), ttl: ttl, now: now}
}

// IssueToken implements the client_credentials grant.
func (a *Authenticator) IssueToken(ctx context.Context, grantType, clientID, clientSecret string) (Token, error) {
	if grantType != GrantClientCredentials {
		return Token{}, domain.Invalid(`Invalid or unsupported "grant_type".`)
	}

	client, err := a.clients.GetByClientID(ctx, clientID)
	if err != nil && !errors.Is(err, domain.ErrClientNotFound) {
		return Token{}, domain.Internal("load client", err)
	}
	if err != nil || !client.Active ||
		bcrypt.CompareHashAndPassword([]byte(client.SecretHash), []byte(clientSecret)) != nil {
		return Token{}, domain.Unauthorized(`Invalid "client_id" or "client_secret".`)
	}

	now := a.now()
	claims := jwt.MapClaims{
		"client_id": client.ClientID,
		"iat":       now.Unix(),
	}
	if a.ttl > 0 {
		claims["exp"] = now.Add(a.ttl).Unix()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return Token{}, domain.Internal("sign token", err)
	}
	return Token{AccessToken: signed, TokenType: "Bearer", ExpiresIn: a.ttl}, nil
}

// Authenticate validates a bearer token and returns its client, which must still be
// active and must not have rotated its credentials since the token was issued.
func (a *Authenticator) Authenticate(ctx context.Context, accessToken string) (domain.Client, error) {
	invalid := domain.Unauthorized(`Invalid or expired "access_token".`)

	token, err := jwt.Parse(accessToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return domain.Client{}, invalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Client{}, invalid
	}
	clientID, ok := claims["client_id"].(string)
	if !ok || clientID == "" {
		return domain.Client{}, invalid
	}

	client, err := a.clients.GetByClientID(ctx, clientID)
	if errors.Is(err, domain.ErrClientNotFound) {
		return domain.Client{}, invalid
	}
	if err != nil {
		return domain.Client{}, domain.Internal("load client", err)
	}
	if !client.Active {
		return domain.Client{}, invalid
	}
	return client, nil
}
