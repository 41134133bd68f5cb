package id

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

// New generates a new ULID string. IDs generated by one process are strictly
// increasing, even within the same millisecond, so they double as a time-ordered
// DynamoDB sort key.
func New() string {
	return NewAt(time.Now())
}

// NewAt generates a ULID with the timestamp t.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
