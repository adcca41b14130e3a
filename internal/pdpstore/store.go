// Package pdpstore implements PDPStore and its ParticipantProxy shells
// (spec.md §4.2, §3), grounded on the composed-substore shape of
// _examples/dep2p-go-dep2p/internal/core/peerstore.Peerstore: one mutex
// guarding an ordered collection, with per-record locks (ppd_mutex,
// endpoint_mutex) nested beneath it per spec.md §5's lock order.
package pdpstore

import (
	"errors"
	"sync"

	"go.uber.org/multierr"

	"github.com/go-rtps/pdp/internal/config"
	"github.com/go-rtps/pdp/internal/edp"
	"github.com/go-rtps/pdp/internal/listener"
	"github.com/go-rtps/pdp/internal/metrics"
	"github.com/go-rtps/pdp/internal/proxydata"
	"github.com/go-rtps/pdp/internal/proxypool"
	"github.com/go-rtps/pdp/internal/rtpsid"
	"github.com/go-rtps/pdp/internal/rtpslog"
	"github.com/go-rtps/pdp/internal/wlp"
)

var log = rtpslog.Named("core/pdpstore")

// ErrCapacity is returned by New when the pool cannot supply the local
// participant's record. AddParticipantProxy reports a reached
// max_participants or pool cap as a false result, not as this error.
var ErrCapacity = errors.New("pdpstore: capacity reached")

// BuiltinHistory is the subset of builtin.History PDPStore needs, kept as
// an interface so this package does not import builtin's cache-change type
// for anything beyond the instance-key removal contract of spec.md §4.2.
type BuiltinHistory interface {
	RemoveByInstanceKey(key [16]byte) bool
}

// Store is the participant's view of discovery state (spec.md §4.2's
// PDPStore). The local participant is always active[0].
type Store struct {
	mu sync.Mutex // store_mutex

	pool            *proxypool.ProxyPool
	allocCfg        config.AllocationConfig
	maxParticipants int

	edpCollab edp.Collaborator
	wlpCollab wlp.Collaborator
	dispatch  *listener.Dispatcher
	history   BuiltinHistory
	metrics   *metrics.Set

	active []*ParticipantProxy
	free   []*ParticipantProxy
	byGUID map[rtpsid.GUID]*ParticipantProxy

	allocated int

	// armLease is set by LeaseEngine after construction so ArmLease can arm
	// a lease timer without pdpstore importing the lease package.
	armLease func(*ParticipantProxy)
}

// New constructs a Store with the local participant already installed at
// index 0, unleased (spec.md §3: "absent for the local participant").
func New(
	pool *proxypool.ProxyPool,
	allocCfg config.AllocationConfig,
	maxParticipants int,
	localGUID rtpsid.GUID,
	edpCollab edp.Collaborator,
	wlpCollab wlp.Collaborator,
	dispatch *listener.Dispatcher,
	history BuiltinHistory,
	m *metrics.Set,
) (*Store, error) {
	s := &Store{
		pool:            pool,
		allocCfg:        allocCfg,
		maxParticipants: maxParticipants,
		edpCollab:       edpCollab,
		wlpCollab:       wlpCollab,
		dispatch:        dispatch,
		history:         history,
		metrics:         m,
		byGUID:          make(map[rtpsid.GUID]*ParticipantProxy),
	}

	handle, _, ok := pool.AcquireParticipant(localGUID)
	if !ok {
		return nil, ErrCapacity
	}
	shell := newParticipantProxy()
	shell.bind(handle, true)
	pd := shell.Participant()
	pd.Lock()
	pd.Init(localGUID)
	pd.Unlock()

	s.allocated = 1
	s.active = append(s.active, shell)
	s.byGUID[localGUID] = shell
	return s, nil
}

// SetLeaseArmer installs the callback LeaseEngine uses to arm a newly
// added remote participant's timer. Must be called before any discovery
// traffic is fed to the store.
func (s *Store) SetLeaseArmer(fn func(*ParticipantProxy)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armLease = fn
}

// Local returns the store's own participant shell (active[0]).
func (s *Store) Local() *ParticipantProxy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[0]
}

// Lookup returns the shell for guid, if present.
func (s *Store) Lookup(guid rtpsid.GUID) (*ParticipantProxy, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shell, ok := s.byGUID[guid]
	return shell, ok
}

// HasParticipant is a presence test only.
func (s *Store) HasParticipant(guid rtpsid.GUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byGUID[guid]
	return ok
}

// Active returns a snapshot copy of the active-list shells, local
// participant first (spec.md §5: "local participant is always element 0").
func (s *Store) Active() []*ParticipantProxy {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ParticipantProxy, len(s.active))
	copy(out, s.active)
	return out
}

func (s *Store) takeShellLocked() (*ParticipantProxy, bool) {
	if n := len(s.free); n > 0 {
		shell := s.free[n-1]
		s.free = s.free[:n-1]
		return shell, true
	}
	if s.allocated >= s.maxParticipants {
		return nil, false
	}
	s.allocated++
	return newParticipantProxy(), true
}

// AddParticipantProxy implements spec.md §4.2's add_participant_proxy. On
// success the returned shell's PPD lock is held; the caller must finish
// initializing fields — including LeaseDuration — and, if withLease is
// true, call s.ArmLease(shell) while still holding that lock, before
// finally calling shell.Participant().Unlock(). Arming happens this late
// (rather than inside this method, as spec.md §4.2's prose order suggests)
// because the lease duration to arm with is not known until the caller has
// merged the inbound PPD fields onto the fresh shell.
func (s *Store) AddParticipantProxy(guid rtpsid.GUID, withLease bool) (*ParticipantProxy, bool) {
	handle, _, ok := s.pool.AcquireParticipant(guid)
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	if existing, found := s.byGUID[guid]; found {
		s.mu.Unlock()
		handle.Release()
		existing.Participant().Lock()
		return existing, true
	}

	shell, ok := s.takeShellLocked()
	if !ok {
		s.mu.Unlock()
		handle.Release()
		log.Warn("participant capacity reached", "max", s.maxParticipants)
		return nil, false
	}
	shell.bind(handle, false)
	s.active = append(s.active, shell)
	s.byGUID[guid] = shell
	if s.metrics != nil {
		s.metrics.ParticipantsKnown.Set(float64(len(s.active)))
	}
	s.mu.Unlock()

	pd := shell.Participant()
	pd.Lock()
	pd.Init(guid)
	_ = withLease // arming is the caller's responsibility, via ArmLease, after field init

	return shell, true
}

// ArmLease arms shell's lease through the callback installed with
// SetLeaseArmer, if any. It is the only way a remote's lease gets armed:
// AddParticipantProxy never arms one itself, whatever its withLease
// argument says.
func (s *Store) ArmLease(shell *ParticipantProxy) {
	s.mu.Lock()
	armer := s.armLease
	s.mu.Unlock()
	if armer != nil {
		armer(shell)
	}
}

// LookupReaderProxyData scans every active shell's reader list for guid
// (spec.md §4.2: "linear scan, returns a shared reference").
func (s *Store) LookupReaderProxyData(guid rtpsid.GUID) (*proxypool.ReaderHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, shell := range s.active {
		if h, ok := shell.FindReader(guid); ok {
			return h, true
		}
	}
	return nil, false
}

// LookupWriterProxyData is the writer counterpart.
func (s *Store) LookupWriterProxyData(guid rtpsid.GUID) (*proxypool.WriterHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, shell := range s.active {
		if h, ok := shell.FindWriter(guid); ok {
			return h, true
		}
	}
	return nil, false
}

// HasReaderProxyData is a presence test only.
func (s *Store) HasReaderProxyData(guid rtpsid.GUID) bool {
	_, ok := s.LookupReaderProxyData(guid)
	return ok
}

// HasWriterProxyData is a presence test only.
func (s *Store) HasWriterProxyData(guid rtpsid.GUID) bool {
	_, ok := s.LookupWriterProxyData(guid)
	return ok
}

// AddReaderProxyData implements spec.md §4.2's add_reader_proxy_data: if
// participantGUID's owner already knows readerGUID, init runs against the
// existing proxy and a CHANGED_QOS event fires; otherwise a fresh proxy is
// acquired, attached, and a DISCOVERED event fires. The returned proxy's
// endpoint lock is held on return; the caller must Unlock it.
func (s *Store) AddReaderProxyData(participantGUID, readerGUID rtpsid.GUID, init func(r *proxydata.Reader, isUpdate bool)) (*proxydata.Reader, bool) {
	s.mu.Lock()
	shell, found := s.byGUID[participantGUID]
	s.mu.Unlock()
	if !found {
		return nil, false
	}

	if h, ok := shell.FindReader(readerGUID); ok {
		rd := h.Data()
		rd.Lock()
		init(rd, true)
		snap := rd.SnapshotLocked()
		s.dispatch.EmitReader(listener.ReaderInfo{Kind: listener.ChangedQoS, Reader: snap, ParticipantGUID: participantGUID})
		return rd, true
	}

	h, _, ok := s.pool.AcquireReader(readerGUID)
	if !ok {
		log.Warn("reader capacity reached", "guid", readerGUID.String())
		return nil, false
	}
	rd := h.Data()
	rd.Lock()
	rd.Init(readerGUID)
	init(rd, false)
	shell.AddReader(h)
	snap := rd.SnapshotLocked()
	s.dispatch.EmitReader(listener.ReaderInfo{Kind: listener.Discovered, Reader: snap, ParticipantGUID: participantGUID})
	return rd, true
}

// AddWriterProxyData is the writer counterpart to AddReaderProxyData.
func (s *Store) AddWriterProxyData(participantGUID, writerGUID rtpsid.GUID, init func(w *proxydata.Writer, isUpdate bool)) (*proxydata.Writer, bool) {
	s.mu.Lock()
	shell, found := s.byGUID[participantGUID]
	s.mu.Unlock()
	if !found {
		return nil, false
	}

	if h, ok := shell.FindWriter(writerGUID); ok {
		wd := h.Data()
		wd.Lock()
		init(wd, true)
		snap := wd.SnapshotLocked()
		s.dispatch.EmitWriter(listener.WriterInfo{Kind: listener.ChangedQoS, Writer: snap, ParticipantGUID: participantGUID})
		return wd, true
	}

	h, _, ok := s.pool.AcquireWriter(writerGUID)
	if !ok {
		log.Warn("writer capacity reached", "guid", writerGUID.String())
		return nil, false
	}
	wd := h.Data()
	wd.Lock()
	wd.Init(writerGUID)
	init(wd, false)
	shell.AddWriter(h)
	snap := wd.SnapshotLocked()
	s.dispatch.EmitWriter(listener.WriterInfo{Kind: listener.Discovered, Writer: snap, ParticipantGUID: participantGUID})
	return wd, true
}

// RemoveReaderProxyData implements spec.md §4.2's remove_reader_proxy_data.
func (s *Store) RemoveReaderProxyData(participantGUID, readerGUID rtpsid.GUID) bool {
	s.mu.Lock()
	shell, found := s.byGUID[participantGUID]
	s.mu.Unlock()
	if !found {
		return false
	}
	h, ok := shell.RemoveReader(readerGUID)
	if !ok {
		return false
	}
	snap := h.Data().Snapshot()
	if err := s.edpCollab.UnpairReaderProxy(participantGUID, readerGUID); err != nil {
		log.Warn("edp unpair_reader_proxy failed", "err", err)
	}
	s.dispatch.EmitReader(listener.ReaderInfo{Kind: listener.Removed, Reader: snap, ParticipantGUID: participantGUID})
	h.Release()
	return true
}

// RemoveWriterProxyData is the writer counterpart.
func (s *Store) RemoveWriterProxyData(participantGUID, writerGUID rtpsid.GUID) bool {
	s.mu.Lock()
	shell, found := s.byGUID[participantGUID]
	s.mu.Unlock()
	if !found {
		return false
	}
	h, ok := shell.RemoveWriter(writerGUID)
	if !ok {
		return false
	}
	snap := h.Data().Snapshot()
	if err := s.edpCollab.UnpairWriterProxy(participantGUID, writerGUID); err != nil {
		log.Warn("edp unpair_writer_proxy failed", "err", err)
	}
	s.dispatch.EmitWriter(listener.WriterInfo{Kind: listener.Removed, Writer: snap, ParticipantGUID: participantGUID})
	h.Release()
	return true
}

// RemoveRemoteParticipant implements spec.md §4.2's
// remove_remote_participant. reason is the listener event kind fired for
// the participant itself (Removed for a graceful NOT_ALIVE, Dropped for a
// lease expiry). Returns false and emits nothing if guid is not a known
// remote (spec.md §8's idempotence property).
func (s *Store) RemoveRemoteParticipant(guid rtpsid.GUID, reason listener.EventKind) bool {
	s.mu.Lock()
	shell, found := s.byGUID[guid]
	if !found || shell.isLocal {
		s.mu.Unlock()
		return false
	}
	delete(s.byGUID, guid)
	s.active = removeShell(s.active, shell)
	if s.metrics != nil {
		s.metrics.ParticipantsKnown.Set(float64(len(s.active)))
	}
	s.mu.Unlock()

	// From here the shell is unreachable to any other goroutine: it has
	// been detached from both byGUID and active under store_mutex, and
	// nothing else holds a reference to it (spec.md §9's "detachment
	// precedes endpoint iteration" discipline).
	shell.CancelLease()

	snap := shell.Participant().Snapshot()

	var unpairErr error
	for _, h := range shell.TakeReaders() {
		rguid := h.Data().GUID()
		if err := s.edpCollab.UnpairReaderProxy(guid, rguid); err != nil {
			unpairErr = multierr.Append(unpairErr, err)
		}
		s.dispatch.EmitReader(listener.ReaderInfo{Kind: listener.Removed, Reader: h.Data().Snapshot(), ParticipantGUID: guid})
		h.Release()
	}
	for _, h := range shell.TakeWriters() {
		wguid := h.Data().GUID()
		if err := s.edpCollab.UnpairWriterProxy(guid, wguid); err != nil {
			unpairErr = multierr.Append(unpairErr, err)
		}
		s.dispatch.EmitWriter(listener.WriterInfo{Kind: listener.Removed, Writer: h.Data().Snapshot(), ParticipantGUID: guid})
		h.Release()
	}
	if unpairErr != nil {
		log.Warn("errors unpairing endpoints on participant removal", "guid", guid.String(), "err", unpairErr)
	}

	if err := s.edpCollab.RemoveRemoteEndpoints(snap); err != nil {
		log.Warn("edp remove_remote_endpoints failed", "guid", guid.String(), "err", err)
	}
	if s.wlpCollab != nil {
		if err := s.wlpCollab.RemoveRemoteEndpoints(snap); err != nil {
			log.Warn("wlp remove_remote_endpoints failed", "guid", guid.String(), "err", err)
		}
	}
	if s.history != nil {
		s.history.RemoveByInstanceKey(guid.InstanceKey())
	}

	s.dispatch.EmitParticipant(listener.ParticipantInfo{Kind: reason, Participant: snap})

	handle := shell.handle
	shell.reset()
	handle.Release()

	s.mu.Lock()
	s.free = append(s.free, shell)
	s.mu.Unlock()

	return true
}

// FreeParticipantCount exposes the free-list length for spec.md §8
// scenario 6 (pool recycle).
func (s *Store) FreeParticipantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.free)
}

func removeShell(list []*ParticipantProxy, target *ParticipantProxy) []*ParticipantProxy {
	for i, shell := range list {
		if shell == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
