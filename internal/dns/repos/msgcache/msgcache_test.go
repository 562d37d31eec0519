package msgcache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fwdns/fwdns/internal/dns/common/clock"
)

func testClock() *clock.MockClock {
	return clock.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
}

func TestLookup_MissingKey(t *testing.T) {
	c := New(testClock())

	raw, ok := c.Lookup("example.com|A")
	assert.False(t, ok)
	assert.Nil(t, raw)
}

func TestStoreAndLookup(t *testing.T) {
	clk := testClock()
	c := New(clk)
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	c.Store("example.com|A", payload, clk.Now().Add(60*time.Second))

	raw, ok := c.Lookup("example.com|A")
	assert.True(t, ok)
	assert.Equal(t, payload, raw)
	assert.Equal(t, 1, c.Len())
}

func TestLookup_EvictsExpiredEntry(t *testing.T) {
	clk := testClock()
	c := New(clk)

	c.Store("example.com|A", []byte{0x01}, clk.Now().Add(60*time.Second))
	clk.Advance(61 * time.Second)

	_, ok := c.Lookup("example.com|A")
	assert.False(t, ok)
	// Eviction happens in the same critical section as the read.
	assert.Equal(t, 0, c.Len())
}

func TestLookup_ExactExpiryInstantIsExpired(t *testing.T) {
	clk := testClock()
	c := New(clk)

	c.Store("example.com|A", []byte{0x01}, clk.Now().Add(60*time.Second))
	clk.Advance(60 * time.Second)

	_, ok := c.Lookup("example.com|A")
	assert.False(t, ok)
}

func TestLookup_ExpiredEntryStaysUntilRead(t *testing.T) {
	clk := testClock()
	c := New(clk)

	c.Store("stale.example|A", []byte{0x01}, clk.Now().Add(time.Second))
	clk.Advance(time.Hour)

	// No sweeper: the dead entry is still counted until something reads it.
	assert.Equal(t, 1, c.Len())
	_, ok := c.Lookup("stale.example|A")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestStore_ReplacesUnconditionally(t *testing.T) {
	clk := testClock()
	c := New(clk)

	c.Store("example.com|A", []byte{0x01}, clk.Now().Add(time.Minute))
	c.Store("example.com|A", []byte{0x02}, clk.Now().Add(time.Minute))

	raw, ok := c.Lookup("example.com|A")
	assert.True(t, ok)
	assert.Equal(t, []byte{0x02}, raw)
	assert.Equal(t, 1, c.Len())
}

func TestKeysAreIndependent(t *testing.T) {
	clk := testClock()
	c := New(clk)

	c.Store("example.com|A", []byte{0x01}, clk.Now().Add(time.Minute))
	c.Store("example.com|AAAA", []byte{0x02}, clk.Now().Add(time.Minute))

	a, ok := c.Lookup("example.com|A")
	assert.True(t, ok)
	assert.Equal(t, []byte{0x01}, a)

	aaaa, ok := c.Lookup("example.com|AAAA")
	assert.True(t, ok)
	assert.Equal(t, []byte{0x02}, aaaa)
}

func TestConcurrentAccess(t *testing.T) {
	clk := testClock()
	c := New(clk)
	expiry := clk.Now().Add(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("host%d.example|A", n%8)
			for j := 0; j < 100; j++ {
				c.Store(key, []byte{byte(n)}, expiry)
				c.Lookup(key)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, c.Len())
}
