// Package builtin provides minimal in-memory stand-ins for the RTPS
// builtin SPDP writer and reader (spec.md §6's "Builtin writer/reader
// (consumed)" contract). The real reliable writer/reader pair — history,
// HEARTBEAT/ACKNACK, retransmission — is explicitly out of scope
// (spec.md §1); these types exist only so AnnounceEngine and
// DiscoveryReceiver are exercisable and testable end-to-end, grounded on
// the publish/subscribe shape of
// _examples/liamstask-go-rtps/rtps/pub.go and sub.go.
package builtin

import (
	"sync"
	"sync/atomic"
)

// ChangeKind mirrors the RTPS cache-change status values spec.md §6 names.
type ChangeKind int

const (
	Alive ChangeKind = iota
	NotAliveDisposedUnregistered
)

func (k ChangeKind) String() string {
	if k == Alive {
		return "ALIVE"
	}
	return "NOT_ALIVE_DISPOSED_UNREGISTERED"
}

// CacheChange is one sample in a history (spec.md GLOSSARY).
type CacheChange struct {
	Kind           ChangeKind
	InstanceKey    [16]byte
	SequenceNumber int64
	Payload        []byte
}

// History is a single writer's or reader's bounded change list, keyed by
// instance handle for per-change removal (spec.md §6).
type History struct {
	mu      sync.Mutex
	changes []*CacheChange
	max     int
}

// NewHistory returns a History bounded to max changes; max <= 0 means
// unbounded.
func NewHistory(max int) *History {
	return &History{max: max}
}

// AddChange appends c, evicting the oldest change first if the history is
// at capacity (AnnounceEngine relies on this to keep the SPDP writer's
// history to a single live change per spec.md §4.3).
func (h *History) AddChange(c *CacheChange) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.max > 0 && len(h.changes) >= h.max {
		h.changes = h.changes[1:]
	}
	h.changes = append(h.changes, c)
}

// RemoveMinChange removes and returns the oldest change in the history.
func (h *History) RemoveMinChange() (*CacheChange, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.changes) == 0 {
		return nil, false
	}
	c := h.changes[0]
	h.changes = h.changes[1:]
	return c, true
}

// RemoveByInstanceKey removes every change matching key, reporting whether
// any were removed (spec.md §4.2's remove_remote_participant: "delete the
// corresponding cache change from the builtin-reader history, matched by
// instance key").
func (h *History) RemoveByInstanceKey(key [16]byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	removed := false
	kept := h.changes[:0]
	for _, c := range h.changes {
		if c.InstanceKey == key {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	h.changes = kept
	return removed
}

// Changes returns a snapshot copy of the current changes.
func (h *History) Changes() []*CacheChange {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*CacheChange, len(h.changes))
	copy(out, h.changes)
	return out
}

// Writer is the builtin SPDP writer AnnounceEngine submits changes to.
type Writer struct {
	History *History
	seq     atomic.Int64
}

// NewWriter returns a Writer whose history keeps at most maxHistory changes
// (1 for SPDP, per spec.md §4.3's "bounded by 1").
func NewWriter(maxHistory int) *Writer {
	return &Writer{History: NewHistory(maxHistory)}
}

// NewChange allocates a change with the next sequence number, mirroring
// spec.md §6's new_change(size_fn, kind, key).
func (w *Writer) NewChange(kind ChangeKind, key [16]byte, payload []byte) *CacheChange {
	return &CacheChange{
		Kind:           kind,
		InstanceKey:    key,
		SequenceNumber: w.seq.Add(1),
		Payload:        payload,
	}
}

// Reader is the builtin SPDP reader DiscoveryReceiver consumes from.
type Reader struct {
	History *History

	mu       sync.Mutex
	callback func(*CacheChange)
}

// NewReader returns a Reader whose history keeps at most maxHistory
// changes.
func NewReader(maxHistory int) *Reader {
	return &Reader{History: NewHistory(maxHistory)}
}

// SetCallback registers the sole consumer of delivered changes
// (spec.md §6: "the DiscoveryReceiver is its sole consumer").
func (r *Reader) SetCallback(fn func(*CacheChange)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callback = fn
}

// Deliver simulates an inbound RTPS message resolving to a new cache
// change: it is added to the reader's history and handed to the registered
// callback. Tests and the demo binary use this as their sole injection
// point for remote traffic.
func (r *Reader) Deliver(c *CacheChange) {
	r.History.AddChange(c)
	r.mu.Lock()
	cb := r.callback
	r.mu.Unlock()
	if cb != nil {
		cb(c)
	}
}
