package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUniqueTTL(t *testing.T) {
	for _, interval := range []time.Duration{time.Second, 2 * time.Second, time.Minute, time.Hour} {
		ttl := uniqueTTL(interval)
		assert.GreaterOrEqual(t, ttl, time.Second, "interval %s", interval)
		if interval > time.Second {
			assert.Less(t, ttl, interval, "interval %s", interval)
		}
	}
	assert.Equal(t, 30*time.Second, uniqueTTL(time.Minute))
}
