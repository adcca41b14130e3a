package proxypool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-rtps/pdp/internal/config"
	"github.com/go-rtps/pdp/internal/metrics"
	"github.com/go-rtps/pdp/internal/rtpsid"
)

func testGUID(b byte) rtpsid.GUID {
	var prefix rtpsid.GUIDPrefix
	prefix[0] = b
	return rtpsid.ParticipantGUID(prefix)
}

func TestAcquireParticipantDedupesByGUID(t *testing.T) {
	cfg := config.DefaultAllocationConfig()
	pool := New(cfg, metrics.NewUnregisteredSet())

	guid := testGUID(1)
	h1, fresh1, ok1 := pool.AcquireParticipant(guid)
	require.True(t, ok1)
	assert.True(t, fresh1)

	h2, fresh2, ok2 := pool.AcquireParticipant(guid)
	require.True(t, ok2)
	assert.False(t, fresh2)
	assert.Same(t, h1.Data(), h2.Data())

	h1.Release()
	h2.Release()
}

func TestReleaseReturnsToFreeListAndErasesWeakEntry(t *testing.T) {
	cfg := config.DefaultAllocationConfig()
	pool := New(cfg, metrics.NewUnregisteredSet())

	guid := testGUID(2)
	h, _, ok := pool.AcquireParticipant(guid)
	require.True(t, ok)
	before := pool.ParticipantFreeListLen()

	h.Release()

	assert.Equal(t, before+1, pool.ParticipantFreeListLen())
	assert.True(t, pool.ParticipantRecentlyEvicted(guid))

	h2, fresh, ok := pool.AcquireParticipant(guid)
	require.True(t, ok)
	assert.True(t, fresh)
	h2.Release()
}

func TestAcquireParticipantFailsAtCapacity(t *testing.T) {
	cfg := config.DefaultAllocationConfig()
	cfg.ParticipantsMax = 1
	pool := New(cfg, metrics.NewUnregisteredSet())

	h1, _, ok1 := pool.AcquireParticipant(testGUID(1))
	require.True(t, ok1)

	_, _, ok2 := pool.AcquireParticipant(testGUID(2))
	assert.False(t, ok2)

	h1.Release()
}

func TestAddRefKeepsObjectAliveUntilAllReleased(t *testing.T) {
	cfg := config.DefaultAllocationConfig()
	pool := New(cfg, metrics.NewUnregisteredSet())

	guid := testGUID(3)
	h, _, ok := pool.AcquireParticipant(guid)
	require.True(t, ok)

	second := h.AddRef()
	h.Release()

	// Still held by `second`; a fresh acquire for the same GUID must not
	// allocate a new object.
	h3, fresh, ok := pool.AcquireParticipant(guid)
	require.True(t, ok)
	assert.False(t, fresh)

	second.Release()
	h3.Release()
}
