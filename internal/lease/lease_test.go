package lease

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-rtps/pdp/internal/config"
	"github.com/go-rtps/pdp/internal/edp"
	"github.com/go-rtps/pdp/internal/listener"
	"github.com/go-rtps/pdp/internal/metrics"
	"github.com/go-rtps/pdp/internal/pdpstore"
	"github.com/go-rtps/pdp/internal/proxypool"
	"github.com/go-rtps/pdp/internal/rtpsid"
	"github.com/go-rtps/pdp/internal/wlp"
)

func testGUID(b byte) rtpsid.GUID {
	var prefix rtpsid.GUIDPrefix
	prefix[0] = b
	return rtpsid.ParticipantGUID(prefix)
}

func newTestStore(t *testing.T) *pdpstore.Store {
	t.Helper()
	allocCfg := config.DefaultAllocationConfig()
	pool := proxypool.New(allocCfg, metrics.NewUnregisteredSet())
	dispatch := listener.New(nil, 32)
	t.Cleanup(dispatch.Close)

	s, err := pdpstore.New(pool, allocCfg, 8, testGUID(0), edp.Noop{}, wlp.Noop{}, dispatch, nil, metrics.NewUnregisteredSet())
	require.NoError(t, err)
	return s
}

func addRemote(t *testing.T, store *pdpstore.Store, engine *Engine, guid rtpsid.GUID, leaseDuration time.Duration) *pdpstore.ParticipantProxy {
	t.Helper()
	shell, ok := store.AddParticipantProxy(guid, true)
	require.True(t, ok)
	shell.Participant().LeaseDuration = leaseDuration
	engine.Arm(shell)
	shell.Participant().Unlock()
	return shell
}

func TestLeaseExpiresAfterDurationElapsesUnrefreshed(t *testing.T) {
	store := newTestStore(t)
	mock := clock.NewMock()
	e := New(store, mock, metrics.NewUnregisteredSet())
	store.SetLeaseArmer(e.Arm)
	defer e.Stop()

	guid := testGUID(1)
	addRemote(t, store, e, guid, 5*time.Second)

	assert.True(t, store.HasParticipant(guid))

	mock.Add(5*time.Second + time.Millisecond)

	assert.False(t, store.HasParticipant(guid))
}

func TestAssertLivelinessPostponesExpiry(t *testing.T) {
	store := newTestStore(t)
	mock := clock.NewMock()
	e := New(store, mock, metrics.NewUnregisteredSet())
	store.SetLeaseArmer(e.Arm)
	defer e.Stop()

	guid := testGUID(2)
	addRemote(t, store, e, guid, 5*time.Second)

	mock.Add(3 * time.Second)
	require.True(t, e.AssertLiveliness(guid))

	// Had the lease not been refreshed at t=3s, it would have expired at
	// t=5s; confirm it survives past that point.
	mock.Add(3 * time.Second)
	assert.True(t, store.HasParticipant(guid))

	mock.Add(2*time.Second + time.Millisecond)
	assert.False(t, store.HasParticipant(guid))
}

func TestRemovalWinsOverPendingLeaseExpiry(t *testing.T) {
	store := newTestStore(t)
	mock := clock.NewMock()
	e := New(store, mock, metrics.NewUnregisteredSet())
	store.SetLeaseArmer(e.Arm)
	defer e.Stop()

	guid := testGUID(3)
	addRemote(t, store, e, guid, 5*time.Second)

	// Voluntary removal races ahead of the lease timer.
	removed := store.RemoveRemoteParticipant(guid, listener.Removed)
	require.True(t, removed)

	// Advancing the clock past the original lease deadline must not
	// resurrect or double-remove the (now recycled) shell.
	assert.NotPanics(t, func() { mock.Add(10 * time.Second) })
	assert.False(t, store.HasParticipant(guid))
}

func TestAssertLivelinessOnUnknownGUIDReturnsFalse(t *testing.T) {
	store := newTestStore(t)
	mock := clock.NewMock()
	e := New(store, mock, metrics.NewUnregisteredSet())
	defer e.Stop()

	assert.False(t, e.AssertLiveliness(testGUID(99)))
}
