package cache

import (
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_LoadsOnceUntilBump(t *testing.T) {
	c := New(zerolog.Nop())

	var loads atomic.Int32
	load := func() (any, error) {
		loads.Add(1)
		return "value-1", nil
	}

	v, err := c.Get(SlotAccounts, load)
	require.NoError(t, err)
	assert.Equal(t, "value-1", v)

	v, err = c.Get(SlotAccounts, load)
	require.NoError(t, err)
	assert.Equal(t, "value-1", v)
	assert.Equal(t, int32(1), loads.Load(), "second read should hit the cached value, not reload")
}

func TestBump_InvalidatesEveryStaleRead(t *testing.T) {
	c := New(zerolog.Nop())

	calls := 0
	load := func() (any, error) {
		calls++
		return calls, nil
	}

	first, err := c.Get(SlotTags, load)
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	genBefore := c.Generation()
	c.Bump()
	assert.Greater(t, c.Generation(), genBefore, "generation must strictly increase")

	second, err := c.Get(SlotTags, load)
	require.NoError(t, err)
	assert.Equal(t, 2, second, "read after bump must reload, not return the stale value")
}

func TestSlotsAreIndependent(t *testing.T) {
	c := New(zerolog.Nop())

	_, err := c.Get(SlotSettings, func() (any, error) { return "settings", nil })
	require.NoError(t, err)
	_, err = c.Get(SlotAccounts, func() (any, error) { return "accounts", nil })
	require.NoError(t, err)

	v, err := c.Get(SlotSettings, func() (any, error) {
		t.Fatal("should not reload settings slot")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "settings", v)
}
