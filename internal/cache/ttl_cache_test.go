package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCache_SetGet(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, time.Minute)
	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestTTLCache_Expiry(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, 10*time.Millisecond)
	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLCache_ZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, 0)
	time.Sleep(5 * time.Millisecond)

	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, got)
}

func TestTTLCache_Delete(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, time.Minute)
	c.Delete("a")

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestTTLCache_Overwrite(t *testing.T) {
	c := NewTTLCache[string, int]()

	c.Set("a", 1, time.Minute)
	c.Set("a", 2, time.Minute)

	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, got)
	assert.Equal(t, 1, c.Len())
}
