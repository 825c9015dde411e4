// Package oauthstate binds a pending authorization to the user who started it.
// The state parameter is a short-lived signed token whose id can be redeemed
// exactly once.
package oauthstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"rateKit/internal/domain"
)

const DefaultTTL = 10 * time.Minute

// NonceStore remembers issued state ids until they are consumed or expire.
type NonceStore interface {
	Put(ctx context.Context, id string, ttl time.Duration) error
	// Consume reports whether id was outstanding and removes it.
	Consume(ctx context.Context, id string) (bool, error)
}

type Claims struct {
	jwt.RegisteredClaims
	Platform string `json:"plat"`
}

// Pending is the authorization a valid state refers to.
type Pending struct {
	UserID   string
	Platform domain.Platform
}

type Codec struct {
	secret []byte
	ttl    time.Duration
	nonces NonceStore
	now    func() time.Time
}

type Option func(*Codec)

func WithTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCodec(secret []byte, nonces NonceStore, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("oauthstate: empty signing secret")
	}
	if nonces == nil {
		return nil, errors.New("oauthstate: nil nonce store")
	}

	c := &Codec{
		secret: secret,
		ttl:    DefaultTTL,
		nonces: nonces,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) Issue(ctx context.Context, userID string, platform domain.Platform) (string, error) {
	if userID == "" {
		return "", errors.New("oauthstate: empty user id")
	}

	now := c.now()
	id := uuid.NewString()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		Platform: string(platform),
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("oauthstate: sign: %w", err)
	}
	if err := c.nonces.Put(ctx, id, c.ttl); err != nil {
		return "", fmt.Errorf("oauthstate: store nonce: %w", err)
	}
	return signed, nil
}

// Decode verifies the state and redeems it. Every failure is a CallbackError
// with reason invalid_state.
func (c *Codec) Decode(ctx context.Context, state string) (Pending, error) {
	if state == "" {
		return Pending{}, invalid(errors.New("empty state"))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Pending{}, invalid(err)
	}
	if !token.Valid || claims.Subject == "" || claims.ID == "" {
		return Pending{}, invalid(errors.New("incomplete claims"))
	}

	platform, err := domain.ParsePlatform(claims.Platform)
	if err != nil {
		return Pending{}, invalid(err)
	}

	ok, err := c.nonces.Consume(ctx, claims.ID)
	if err != nil {
		return Pending{}, invalid(err)
	}
	if !ok {
		return Pending{}, invalid(errors.New("state already used or unknown"))
	}

	return Pending{UserID: claims.Subject, Platform: platform}, nil
}

func invalid(err error) error {
	return &domain.CallbackError{Reason: domain.CallbackInvalidState, Err: err}
}
