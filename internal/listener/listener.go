// Package listener implements ListenerDispatcher (spec.md §4.6): it
// serializes user-supplied callbacks on a dedicated queue so that no
// listener invocation can re-enter PDPStore, grounded on the async
// subscriber-delivery shape of
// _examples/dep2p-go-dep2p/internal/core/eventbus.Bus (a buffered channel
// drained by a single goroutine per subscription).
package listener

import (
	"sync"
	"sync/atomic"

	"github.com/go-rtps/pdp/internal/proxydata"
	"github.com/go-rtps/pdp/internal/rtpsid"
	"github.com/go-rtps/pdp/internal/rtpslog"
)

var log = rtpslog.Named("core/listener")

// EventKind is the discovery-event taxonomy of spec.md §4.6/§4.7.
type EventKind int

const (
	Discovered EventKind = iota
	ChangedQoS
	Removed
	Dropped
	Ignored
)

func (k EventKind) String() string {
	switch k {
	case Discovered:
		return "DISCOVERED"
	case ChangedQoS:
		return "CHANGED_QOS"
	case Removed:
		return "REMOVED"
	case Dropped:
		return "DROPPED"
	case Ignored:
		return "IGNORED"
	default:
		return "UNKNOWN"
	}
}

// ParticipantInfo is the move-only-style value handed to
// on_participant_discovery (spec.md §4.6).
type ParticipantInfo struct {
	Kind        EventKind
	Participant proxydata.ParticipantSnapshot
}

// ReaderInfo is handed to on_reader_discovery.
type ReaderInfo struct {
	Kind            EventKind
	Reader          proxydata.EndpointSnapshot
	ParticipantGUID rtpsid.GUID
}

// WriterInfo is handed to on_writer_discovery.
type WriterInfo struct {
	Kind            EventKind
	Writer          proxydata.EndpointSnapshot
	ParticipantGUID rtpsid.GUID
}

// Listener is the user-supplied collection of callbacks spec.md §6 names:
// on_participant_discovery, on_reader_discovery, on_writer_discovery.
type Listener interface {
	OnParticipantDiscovery(info ParticipantInfo)
	OnReaderDiscovery(info ReaderInfo)
	OnWriterDiscovery(info WriterInfo)
}

// Dispatcher buffers and serializes deliveries to a single Listener.
// callback_mutex (spec.md §5) is acquired only while running a callback and
// only by the dispatcher's own goroutine, so it is never nested under
// store_mutex/ppd_mutex/endpoint_mutex.
type Dispatcher struct {
	listener Listener

	mu     sync.Mutex // callback_mutex
	queue  chan func()
	closed atomic.Bool
	wg     sync.WaitGroup
}

// New starts a Dispatcher delivering to listener with a queue depth of
// queueLen. A nil listener is valid: events are drained and dropped, which
// is useful for components under test that only care about store state.
func New(listener Listener, queueLen int) *Dispatcher {
	if queueLen <= 0 {
		queueLen = 64
	}
	d := &Dispatcher{listener: listener, queue: make(chan func(), queueLen)}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for fn := range d.queue {
		d.dispatch(fn)
	}
}

// dispatch runs fn under callback_mutex and recovers from a panicking
// listener, matching spec.md §4.8's "Listener exceptions: caught and logged
// by ListenerDispatcher; the store is unaffected."
func (d *Dispatcher) dispatch(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			log.Error("listener callback panicked", "panic", r)
		}
	}()
	fn()
}

func (d *Dispatcher) enqueue(fn func()) {
	if d.closed.Load() {
		return
	}
	select {
	case d.queue <- fn:
	default:
		log.Warn("listener queue full, dropping event")
	}
}

// EmitParticipant enqueues an on_participant_discovery delivery.
func (d *Dispatcher) EmitParticipant(info ParticipantInfo) {
	d.enqueue(func() {
		if d.listener != nil {
			d.listener.OnParticipantDiscovery(info)
		}
	})
}

// EmitReader enqueues an on_reader_discovery delivery.
func (d *Dispatcher) EmitReader(info ReaderInfo) {
	d.enqueue(func() {
		if d.listener != nil {
			d.listener.OnReaderDiscovery(info)
		}
	})
}

// EmitWriter enqueues an on_writer_discovery delivery.
func (d *Dispatcher) EmitWriter(info WriterInfo) {
	d.enqueue(func() {
		if d.listener != nil {
			d.listener.OnWriterDiscovery(info)
		}
	})
}

// Close stops accepting new events, drains the queue and waits for the
// dispatch goroutine to exit.
func (d *Dispatcher) Close() {
	if d.closed.CompareAndSwap(false, true) {
		close(d.queue)
	}
	d.wg.Wait()
}
