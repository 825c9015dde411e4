package ids

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAtIsMonotonic(t *testing.T) {
	at := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	prev := NewAt(at)
	for i := 0; i < 100; i++ {
		next := NewAt(at)
		assert.Less(t, prev, next)
		prev = next
	}

	id, err := ulid.Parse(prev)
	require.NoError(t, err)
	assert.Equal(t, ulid.Timestamp(at), id.Time())
}

func TestNewIsUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := New()
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}
