package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newAt(ttl time.Duration, max int) (*Deduper, *time.Time) {
	d := New(ttl, max)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return clock }
	return d, &clock
}

func TestShouldProcess(t *testing.T) {
	d, clock := newAt(time.Minute, 10)

	assert.True(t, d.ShouldProcess("a"))
	assert.False(t, d.ShouldProcess("a"))
	assert.True(t, d.ShouldProcess("b"))

	*clock = clock.Add(2 * time.Minute)
	assert.True(t, d.ShouldProcess("a"), "expired keys are processed again")
}

func TestShouldProcess_EmptyID(t *testing.T) {
	d, _ := newAt(time.Minute, 10)
	assert.True(t, d.ShouldProcess(""))
	assert.True(t, d.ShouldProcess(""))
	assert.Zero(t, d.Len())
}

func TestForget(t *testing.T) {
	d, _ := newAt(time.Minute, 10)
	assert.True(t, d.ShouldProcess("a"))
	d.Forget("a")
	assert.True(t, d.ShouldProcess("a"))
}

func TestEvictionKeepsBound(t *testing.T) {
	d, clock := newAt(time.Hour, 3)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		assert.True(t, d.ShouldProcess(id))
		*clock = clock.Add(time.Second)
	}
	assert.Equal(t, 3, d.Len())
	// le più vecchie sono uscite, le recenti restano
	assert.True(t, d.ShouldProcess("a"))
	assert.False(t, d.ShouldProcess("e"))
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("u", "rice"), Key("u", "rice"))
	assert.NotEqual(t, Key("u", "rice"), Key("u", "maize"))
	assert.NotEqual(t, Key("ab", "c"), Key("a", "bc"))
	assert.Len(t, Key("x"), 64)
}
