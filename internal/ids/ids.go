// Package ids issues ULIDs for append-only rows. They sort by creation time,
// which gives snapshots and portfolio items a stable tie-break order.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

func New() string {
	return NewAt(time.Now())
}

// NewAt stamps the id with t. Ids issued for the same millisecond are strictly
// increasing.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
