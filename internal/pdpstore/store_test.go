package pdpstore

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-rtps/pdp/internal/config"
	"github.com/go-rtps/pdp/internal/edp"
	"github.com/go-rtps/pdp/internal/listener"
	"github.com/go-rtps/pdp/internal/metrics"
	"github.com/go-rtps/pdp/internal/proxydata"
	"github.com/go-rtps/pdp/internal/proxypool"
	"github.com/go-rtps/pdp/internal/rtpsid"
	"github.com/go-rtps/pdp/internal/wlp"
)

func testGUID(b byte) rtpsid.GUID {
	var prefix rtpsid.GUIDPrefix
	prefix[0] = b
	return rtpsid.ParticipantGUID(prefix)
}

type capturingListener struct {
	mu          sync.Mutex
	participant []listener.ParticipantInfo
	reader      []listener.ReaderInfo
}

func (c *capturingListener) OnParticipantDiscovery(info listener.ParticipantInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.participant = append(c.participant, info)
}

func (c *capturingListener) OnReaderDiscovery(info listener.ReaderInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reader = append(c.reader, info)
}

func (c *capturingListener) OnWriterDiscovery(listener.WriterInfo) {}

func (c *capturingListener) participantEvents() []listener.ParticipantInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]listener.ParticipantInfo(nil), c.participant...)
}

func (c *capturingListener) readerEvents() []listener.ReaderInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]listener.ReaderInfo(nil), c.reader...)
}

func newTestStore(t *testing.T, cap *capturingListener) *Store {
	t.Helper()
	allocCfg := config.DefaultAllocationConfig()
	pool := proxypool.New(allocCfg, metrics.NewUnregisteredSet())
	dispatch := listener.New(cap, 32)
	t.Cleanup(dispatch.Close)

	s, err := New(pool, allocCfg, 8, testGUID(0), edp.Noop{}, wlp.Noop{}, dispatch, nil, metrics.NewUnregisteredSet())
	require.NoError(t, err)
	return s
}

func TestLocalParticipantIsIndexZero(t *testing.T) {
	s := newTestStore(t, &capturingListener{})
	active := s.Active()
	require.Len(t, active, 1)
	assert.True(t, active[0].IsLocal())
	assert.Equal(t, testGUID(0), active[0].GUID())
}

func TestAddParticipantProxyThenRemoveIsIdempotent(t *testing.T) {
	cap := &capturingListener{}
	s := newTestStore(t, cap)

	guid := testGUID(1)
	shell, ok := s.AddParticipantProxy(guid, true)
	require.True(t, ok)
	shell.Participant().Unlock()

	assert.True(t, s.HasParticipant(guid))

	removed := s.RemoveRemoteParticipant(guid, listener.Removed)
	assert.True(t, removed)
	assert.False(t, s.HasParticipant(guid))

	// second removal: idempotent per spec.md §8.
	removedAgain := s.RemoveRemoteParticipant(guid, listener.Removed)
	assert.False(t, removedAgain)

	require.Eventually(t, func() bool { return len(cap.participantEvents()) == 1 }, time.Second, time.Millisecond)
}

func TestAddReaderProxyDataFiresDiscoveredThenChangedQoS(t *testing.T) {
	cap := &capturingListener{}
	s := newTestStore(t, cap)

	participantGUID := testGUID(2)
	shell, ok := s.AddParticipantProxy(participantGUID, false)
	require.True(t, ok)
	shell.Participant().Unlock()

	readerGUID := testGUID(2)
	readerGUID.Entity = rtpsid.EntityID(0x101)

	rd, ok := s.AddReaderProxyData(participantGUID, readerGUID, func(r *proxydata.Reader, isUpdate bool) {
		assert.False(t, isUpdate)
		r.TopicName = "square"
	})
	require.True(t, ok)
	rd.Unlock()

	rd2, ok := s.AddReaderProxyData(participantGUID, readerGUID, func(r *proxydata.Reader, isUpdate bool) {
		assert.True(t, isUpdate)
		r.TopicName = "circle"
	})
	require.True(t, ok)
	rd2.Unlock()

	require.Eventually(t, func() bool { return len(cap.readerEvents()) == 2 }, time.Second, time.Millisecond)
	events := cap.readerEvents()
	assert.Equal(t, listener.Discovered, events[0].Kind)
	assert.Equal(t, listener.ChangedQoS, events[1].Kind)
}

func TestAddParticipantProxyFailsAtCapacity(t *testing.T) {
	allocCfg := config.DefaultAllocationConfig()
	pool := proxypool.New(allocCfg, metrics.NewUnregisteredSet())
	dispatch := listener.New(nil, 8)
	t.Cleanup(dispatch.Close)

	s, err := New(pool, allocCfg, 1, testGUID(0), edp.Noop{}, wlp.Noop{}, dispatch, nil, metrics.NewUnregisteredSet())
	require.NoError(t, err)

	_, ok := s.AddParticipantProxy(testGUID(1), false)
	assert.False(t, ok)
}

func TestPoolRecycleFreeListLength(t *testing.T) {
	cap := &capturingListener{}
	s := newTestStore(t, cap)

	guid := testGUID(9)

	shell, ok := s.AddParticipantProxy(guid, false)
	require.True(t, ok)
	shell.Participant().Unlock()
	require.True(t, s.RemoveRemoteParticipant(guid, listener.Removed))
	afterFirst := s.FreeParticipantCount()

	shell, ok = s.AddParticipantProxy(guid, false)
	require.True(t, ok)
	shell.Participant().Unlock()
	require.True(t, s.RemoveRemoteParticipant(guid, listener.Removed))
	afterSecond := s.FreeParticipantCount()

	assert.Equal(t, afterFirst, afterSecond)
}
