package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffPolicy(t *testing.T) {
	b := newBackoffPolicy(time.Second, 30*time.Second)

	var got []time.Duration
	for i := 0; i < 10; i++ {
		got = append(got, b.Next())
	}

	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second, 30 * time.Second,
		30 * time.Second, 30 * time.Second,
	}, got)
	assert.Equal(t, 10, b.attempts)

	b.Reset()
	assert.Equal(t, 0, b.attempts)
	assert.Equal(t, time.Second, b.Next())
}
