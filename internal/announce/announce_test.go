package announce

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-rtps/pdp/internal/builtin"
	"github.com/go-rtps/pdp/internal/config"
	"github.com/go-rtps/pdp/internal/edp"
	"github.com/go-rtps/pdp/internal/listener"
	"github.com/go-rtps/pdp/internal/metrics"
	"github.com/go-rtps/pdp/internal/pdpstore"
	"github.com/go-rtps/pdp/internal/proxypool"
	"github.com/go-rtps/pdp/internal/rtpsid"
	"github.com/go-rtps/pdp/internal/wlp"
)

func newTestStore(t *testing.T) *pdpstore.Store {
	t.Helper()
	allocCfg := config.DefaultAllocationConfig()
	pool := proxypool.New(allocCfg, metrics.NewUnregisteredSet())
	dispatch := listener.New(nil, 8)
	t.Cleanup(dispatch.Close)

	var prefix rtpsid.GUIDPrefix
	prefix[0] = 0xAA
	localGUID := rtpsid.ParticipantGUID(prefix)

	s, err := pdpstore.New(pool, allocCfg, 8, localGUID, edp.Noop{}, wlp.Noop{}, dispatch, nil, metrics.NewUnregisteredSet())
	require.NoError(t, err)
	return s
}

func TestInitialBurstThenSteadyState(t *testing.T) {
	store := newTestStore(t)
	writer := builtin.NewWriter(1)
	mock := clock.NewMock()

	cfg := config.DiscoveryConfig{
		LeaseDurationAnnouncePeriod: time.Second,
		InitialAnnouncementsCount:   2,
		InitialAnnouncementsPeriod:  50 * time.Millisecond,
	}
	e := New(store, writer, cfg, mock, metrics.NewUnregisteredSet())

	// History is bounded to 1, so each announcement replaces the last; track
	// progress by sequence number instead of length.
	latest := func() int64 {
		changes := writer.History.Changes()
		require.Len(t, changes, 1)
		return changes[0].SequenceNumber
	}

	e.Start()
	defer e.Stop()
	// t≈0: Start fires the first announcement synchronously (spec.md §8
	// scenario 1).
	first := latest()

	mock.Add(50 * time.Millisecond)
	second := latest()
	assert.Greater(t, second, first) // t≈50ms: second burst tick, still announces though nothing changed

	mock.Add(time.Second)
	third := latest()
	assert.Greater(t, third, second) // t≈1050ms: steady-state tick, still unconditional
}

func TestAnnounceSuppressedWhenNothingChanged(t *testing.T) {
	store := newTestStore(t)
	writer := builtin.NewWriter(4)
	mock := clock.NewMock()

	cfg := config.DiscoveryConfig{
		LeaseDurationAnnouncePeriod: time.Second,
		InitialAnnouncementsCount:   0,
		InitialAnnouncementsPeriod:  0,
	}
	e := New(store, writer, cfg, mock, metrics.NewUnregisteredSet())

	e.Announce(false, false) // first call: hasChangedLocal starts true
	assert.Len(t, writer.History.Changes(), 1)
	first := writer.History.Changes()[0]

	e.Announce(false, false) // nothing changed since, should be suppressed
	require.Len(t, writer.History.Changes(), 1)
	assert.Same(t, first, writer.History.Changes()[0])

	e.MarkChanged()
	e.Announce(false, false)
	require.Len(t, writer.History.Changes(), 1)
	assert.NotSame(t, first, writer.History.Changes()[0]) // old change replaced by a fresh one
}

func TestDisposeEmitsNotAliveDisposed(t *testing.T) {
	store := newTestStore(t)
	writer := builtin.NewWriter(4)
	mock := clock.NewMock()

	cfg := config.DefaultDiscoveryConfig()
	e := New(store, writer, cfg, mock, metrics.NewUnregisteredSet())
	e.Start()
	e.Dispose()

	changes := writer.History.Changes()
	require.NotEmpty(t, changes)
	assert.Equal(t, builtin.NotAliveDisposedUnregistered, changes[len(changes)-1].Kind)
}
