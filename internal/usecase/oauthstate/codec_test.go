package oauthstate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rateKit/internal/domain"
)

var secret = []byte("test-secret")

func requireInvalidState(t *testing.T, err error) {
	t.Helper()
	var cbErr *domain.CallbackError
	require.True(t, errors.As(err, &cbErr), "want CallbackError, got %v", err)
	assert.Equal(t, domain.CallbackInvalidState, cbErr.Reason)
}

func TestIssueDecodeRoundTrip(t *testing.T) {
	c, err := NewCodec(secret, NewMemoryNonceStore())
	require.NoError(t, err)

	state, err := c.Issue(context.Background(), "user-1", domain.PlatformInstagram)
	require.NoError(t, err)

	p, err := c.Decode(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, Pending{UserID: "user-1", Platform: domain.PlatformInstagram}, p)
}

func TestDecodeIsSingleUse(t *testing.T) {
	c, err := NewCodec(secret, NewMemoryNonceStore())
	require.NoError(t, err)

	state, err := c.Issue(context.Background(), "user-1", domain.PlatformInstagram)
	require.NoError(t, err)

	_, err = c.Decode(context.Background(), state)
	require.NoError(t, err)

	_, err = c.Decode(context.Background(), state)
	requireInvalidState(t, err)
}

func TestDecodeRejectsExpired(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	c, err := NewCodec(secret, NewMemoryNonceStore(), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	state, err := c.Issue(context.Background(), "user-1", domain.PlatformInstagram)
	require.NoError(t, err)

	now = now.Add(DefaultTTL + time.Second)
	_, err = c.Decode(context.Background(), state)
	requireInvalidState(t, err)
}

func TestDecodeRejectsTampering(t *testing.T) {
	c, err := NewCodec(secret, NewMemoryNonceStore())
	require.NoError(t, err)

	state, err := c.Issue(context.Background(), "user-1", domain.PlatformInstagram)
	require.NoError(t, err)

	parts := strings.Split(state, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	_, err = c.Decode(context.Background(), parts[0]+"."+parts[1]+"."+string(sig))
	requireInvalidState(t, err)

	other, err := NewCodec([]byte("other-secret"), NewMemoryNonceStore())
	require.NoError(t, err)
	_, err = other.Decode(context.Background(), state)
	requireInvalidState(t, err)
}

func TestDecodeRejectsUnknownNonce(t *testing.T) {
	c, err := NewCodec(secret, NewMemoryNonceStore())
	require.NoError(t, err)

	// Correctly signed, but never issued by this codec.
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ID:        "not-issued",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Platform: "instagram",
	})
	state, err := forged.SignedString(secret)
	require.NoError(t, err)

	_, err = c.Decode(context.Background(), state)
	requireInvalidState(t, err)
}

func TestDecodeRejectsNoneAlgorithm(t *testing.T) {
	c, err := NewCodec(secret, NewMemoryNonceStore())
	require.NoError(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ID:        "x",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		Platform: "instagram",
	})
	state, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = c.Decode(context.Background(), state)
	requireInvalidState(t, err)
}

func TestDecodeGarbage(t *testing.T) {
	c, err := NewCodec(secret, NewMemoryNonceStore())
	require.NoError(t, err)

	for _, s := range []string{"", "abc", "a.b.c"} {
		_, err := c.Decode(context.Background(), s)
		requireInvalidState(t, err)
	}
}

func TestNewCodecValidates(t *testing.T) {
	_, err := NewCodec(nil, NewMemoryNonceStore())
	assert.Error(t, err)
	_, err = NewCodec(secret, nil)
	assert.Error(t, err)
}

func TestMemoryNonceStoreExpiry(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	s := NewMemoryNonceStore()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "a", time.Minute))
	require.NoError(t, s.Put(ctx, "b", time.Minute))

	ok, err := s.Consume(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = s.Consume(ctx, "b")
	require.NoError(t, err)
	assert.False(t, ok, "expired ids do not redeem")
}
