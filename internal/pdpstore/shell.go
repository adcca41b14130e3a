package pdpstore

import (
	"sync"
	"time"

	"github.com/go-rtps/pdp/internal/proxydata"
	"github.com/go-rtps/pdp/internal/proxypool"
	"github.com/go-rtps/pdp/internal/rtpsid"
)

// ParticipantProxy is the per-PDP shell of spec.md §3: it owns a strong
// reference to one PPD plus the strong references to the endpoints that
// participant advertises. Unlike the PPD/endpoint objects it wraps, a shell
// is never shared outside this store — it belongs exclusively to the
// PDPStore's active or free list.
type ParticipantProxy struct {
	isLocal bool
	handle  *proxypool.ParticipantHandle

	readers []*proxypool.ReaderHandle
	writers []*proxypool.WriterHandle

	// leaseMu guards the lease-bookkeeping fields below, kept separate from
	// the store's own mutex: LeaseEngine reads/writes these on every tick
	// and on every received message, and must not contend with PDPStore's
	// add/remove traffic to do so (spec.md §5's rationale for
	// callback_mutex applies equally here).
	leaseMu          sync.Mutex
	lastReceived     time.Time
	shouldCheckLease bool
	resetLease       func()
	cancelLease       func()
}

func newParticipantProxy() *ParticipantProxy {
	return &ParticipantProxy{}
}

func (s *ParticipantProxy) bind(handle *proxypool.ParticipantHandle, isLocal bool) {
	s.handle = handle
	s.isLocal = isLocal
}

// Participant returns the underlying PPD. Callers follow the same lock
// discipline as proxydata.Participant itself.
func (s *ParticipantProxy) Participant() *proxydata.Participant { return s.handle.Data() }

// GUID returns the shell's participant GUID. Safe to call without the PPD
// lock once the shell has been published to the active list, since the
// GUID is immutable from that point until removal (spec.md §3).
func (s *ParticipantProxy) GUID() rtpsid.GUID { return s.handle.Data().GUID() }

// IsLocal reports whether this shell is the store's own local participant.
func (s *ParticipantProxy) IsLocal() bool { return s.isLocal }

// AddReader appends a strong reference to a user reader this participant
// advertises.
func (s *ParticipantProxy) AddReader(h *proxypool.ReaderHandle) { s.readers = append(s.readers, h) }

// AddWriter is the writer counterpart to AddReader.
func (s *ParticipantProxy) AddWriter(h *proxypool.WriterHandle) { s.writers = append(s.writers, h) }

// FindReader linearly scans the owned reader list for guid (spec.md §4.2's
// "linear scan").
func (s *ParticipantProxy) FindReader(guid rtpsid.GUID) (*proxypool.ReaderHandle, bool) {
	for _, h := range s.readers {
		if h.Data().GUID() == guid {
			return h, true
		}
	}
	return nil, false
}

// FindWriter is the writer counterpart to FindReader.
func (s *ParticipantProxy) FindWriter(guid rtpsid.GUID) (*proxypool.WriterHandle, bool) {
	for _, h := range s.writers {
		if h.Data().GUID() == guid {
			return h, true
		}
	}
	return nil, false
}

// RemoveReader drops the strong reference to guid's reader, reporting
// whether one was found.
func (s *ParticipantProxy) RemoveReader(guid rtpsid.GUID) (*proxypool.ReaderHandle, bool) {
	for i, h := range s.readers {
		if h.Data().GUID() == guid {
			s.readers = append(s.readers[:i], s.readers[i+1:]...)
			return h, true
		}
	}
	return nil, false
}

// RemoveWriter is the writer counterpart to RemoveReader.
func (s *ParticipantProxy) RemoveWriter(guid rtpsid.GUID) (*proxypool.WriterHandle, bool) {
	for i, h := range s.writers {
		if h.Data().GUID() == guid {
			s.writers = append(s.writers[:i], s.writers[i+1:]...)
			return h, true
		}
	}
	return nil, false
}

// TakeReaders detaches and returns every owned reader handle, for use by
// remove_remote_participant tearing the shell down.
func (s *ParticipantProxy) TakeReaders() []*proxypool.ReaderHandle {
	out := s.readers
	s.readers = nil
	return out
}

// TakeWriters is the writer counterpart to TakeReaders.
func (s *ParticipantProxy) TakeWriters() []*proxypool.WriterHandle {
	out := s.writers
	s.writers = nil
	return out
}

// AssertLiveliness implements the proxy side of spec.md §4.4: record the
// instant a message was last received from this participant and restart
// whatever lease timer LeaseEngine has armed for it.
func (s *ParticipantProxy) AssertLiveliness(now time.Time) {
	s.leaseMu.Lock()
	s.lastReceived = now
	s.shouldCheckLease = true
	reset := s.resetLease
	s.leaseMu.Unlock()
	if reset != nil {
		reset()
	}
}

// LastReceived returns the timestamp of the last received message.
func (s *ParticipantProxy) LastReceived() time.Time {
	s.leaseMu.Lock()
	defer s.leaseMu.Unlock()
	return s.lastReceived
}

// ShouldCheckLeaseDuration reports the flag spec.md §3 names.
func (s *ParticipantProxy) ShouldCheckLeaseDuration() bool {
	s.leaseMu.Lock()
	defer s.leaseMu.Unlock()
	return s.shouldCheckLease
}

// SetLeaseCallbacks installs the reset/cancel hooks LeaseEngine uses to
// drive this shell's one-shot timer (spec.md §9's "Timer-proxy race":
// the timer is owned by LeaseEngine, but AssertLiveliness must be able to
// restart it without either package importing the other's concrete timer
// type).
func (s *ParticipantProxy) SetLeaseCallbacks(reset, cancel func()) {
	s.leaseMu.Lock()
	defer s.leaseMu.Unlock()
	s.resetLease = reset
	s.cancelLease = cancel
}

// CancelLease invokes and clears the cancel hook, if any. Called before a
// shell is recycled so a stale timer cannot fire into a cleared object
// (spec.md §9's "timers must be cancelled before the shell is recycled").
func (s *ParticipantProxy) CancelLease() {
	s.leaseMu.Lock()
	cancel := s.cancelLease
	s.resetLease = nil
	s.cancelLease = nil
	s.leaseMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// reset clears every field so the shell is indistinguishable from one
// fresh off newParticipantProxy, ready for the free list.
func (s *ParticipantProxy) reset() {
	s.handle = nil
	s.isLocal = false
	s.readers = nil
	s.writers = nil
	s.leaseMu.Lock()
	s.lastReceived = time.Time{}
	s.shouldCheckLease = false
	s.resetLease = nil
	s.cancelLease = nil
	s.leaseMu.Unlock()
}
