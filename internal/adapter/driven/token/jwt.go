package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const DefaultTTL = 6 * time.Hour

type videoGrant struct {
	RoomJoin bool   `json:"roomJoin"`
	Room     string `json:"room"`
}

// joinClaims is the token body. Metadata carries the role set decided at bootstrap.
type joinClaims struct {
	jwt.RegisteredClaims
	Video    videoGrant `json:"video"`
	Metadata string     `json:"metadata,omitempty"`
}

// JWTIssuer signs and verifies join tokens with the API key pair.
//
// implements port.TokenIssuer
type JWTIssuer struct {
	apiKey string
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

func NewJWTIssuer(apiKey, apiSecret string, ttl time.Duration, clock clockwork.Clock) (*JWTIssuer, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("%w: api key and secret are required", domain.ErrConfiguration)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &JWTIssuer{
		apiKey: apiKey,
		secret: []byte(apiSecret),
		ttl:    ttl,
		clock:  clock,
	}, nil
}

func (i *JWTIssuer) Issue(grant domain.JoinGrant) (string, error) {
	if !grant.Identity.Valid() || !grant.Session.Valid() {
		return "", fmt.Errorf("%w: identity and session are required", domain.ErrInvalidArgument)
	}
	now := i.clock.Now()
	claims := joinClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.apiKey,
			Subject:   grant.Identity.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Video:    videoGrant{RoomJoin: true, Room: grant.Session.String()},
		Metadata: grant.Metadata,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign join token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry and returns the grant the token carries.
func (i *JWTIssuer) Verify(raw string) (domain.JoinGrant, error) {
	var claims joinClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.apiKey),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock.Now),
	)
	if err != nil {
		return domain.JoinGrant{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	if !claims.Video.RoomJoin || claims.Video.Room == "" || claims.Subject == "" {
		return domain.JoinGrant{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, errors.New("token does not grant a room join"))
	}
	return domain.JoinGrant{
		Identity: domain.Identity(claims.Subject),
		Session:  domain.SessionID(claims.Video.Room),
		Metadata: claims.Metadata,
	}, nil
}
