package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	authErr := fmt.Errorf("wrap: %w", &UpstreamAuthError{Platform: PlatformYouTube, Op: "identity", Status: 401})
	assert.ErrorIs(t, authErr, ErrUpstreamAuth)
	assert.NotErrorIs(t, authErr, ErrUpstreamUnavailable)

	unavailable := &UpstreamUnavailableError{Platform: PlatformTikTok, Op: "stats", Err: errors.New("dial tcp: timeout")}
	assert.ErrorIs(t, unavailable, ErrUpstreamUnavailable)

	cbErr := &CallbackError{Reason: CallbackIdentityFailed, Err: authErr}
	assert.ErrorIs(t, cbErr, ErrCallback)
	assert.ErrorIs(t, cbErr, ErrUpstreamAuth)

	var asAuth *UpstreamAuthError
	require.ErrorAs(t, cbErr, &asAuth)
	assert.Equal(t, 401, asAuth.Status)

	assert.ErrorIs(t, &UnsupportedPlatformError{Platform: "myspace"}, ErrUnsupportedPlatform)
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform(" INSTAGRAM ")
	require.NoError(t, err)
	assert.Equal(t, PlatformInstagram, p)

	p, err = ParsePlatform("YouTube")
	require.NoError(t, err)
	assert.Equal(t, PlatformYouTube, p)

	_, err = ParsePlatform("twitch")
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
	assert.Contains(t, err.Error(), "twitch")
}
