package ttlcache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetOrLoad_ServesFreshEntryWithoutLoader(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New[string, int](time.Hour, func() time.Time { return now })

	calls := 0
	load := func() (int, error) {
		calls++
		return 42, nil
	}

	v, err := c.GetOrLoad("k", load)
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)

	// One tick before expiry: still served from cache.
	now = now.Add(time.Hour - time.Second)
	v, err = c.GetOrLoad("k", load)
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls)
}

func TestGetOrLoad_ReloadsExactlyOnceAtExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New[string, int](time.Hour, func() time.Time { return now })

	calls := 0
	load := func() (int, error) {
		calls++
		return calls, nil
	}

	_, _ = c.GetOrLoad("k", load)
	now = now.Add(time.Hour)

	v, err := c.GetOrLoad("k", load)
	assert.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, calls)

	// Follow-up read inside the new window does not load again.
	v, err = c.GetOrLoad("k", load)
	assert.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, calls)
}

func TestGetOrLoad_DoesNotCacheErrors(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New[string, int](time.Hour, func() time.Time { return now })

	boom := errors.New("provider down")
	calls := 0
	_, err := c.GetOrLoad("k", func() (int, error) {
		calls++
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)

	v, err := c.GetOrLoad("k", func() (int, error) {
		calls++
		return 7, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, calls)
}

func TestInvalidate(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New[string, string](time.Hour, func() time.Time { return now })

	_, _ = c.GetOrLoad("k", func() (string, error) { return "v", nil })
	_, ok := c.Peek("k")
	assert.True(t, ok)

	c.Invalidate("k")
	_, ok = c.Peek("k")
	assert.False(t, ok)
}

func TestPurge(t *testing.T) {
	now := time.Unix(1000, 0)
	c := New[string, string](time.Hour, func() time.Time { return now })

	_, _ = c.GetOrLoad("a", func() (string, error) { return "1", nil })
	_, _ = c.GetOrLoad("b", func() (string, error) { return "2", nil })

	c.Purge()

	_, ok := c.Peek("a")
	assert.False(t, ok)
	_, ok = c.Peek("b")
	assert.False(t, ok)
}
