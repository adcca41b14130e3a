// Package proxypool implements the process-wide ProxyPool of spec.md §4.1:
// three pools of recyclable proxy objects plus a GUID-keyed map that lets
// multiple PDPs in the same process share one object. Go has no
// shared_ptr/weak_ptr pair to build on, so this package models the same
// contract with an explicit strong refcount per object (spec.md §9's
// "explicit arena+index is an acceptable alternative" applies equally to an
// explicit refcount): AddRef/Release stand in for copying/destroying a
// shared_ptr, and the release hook fires deterministically the instant the
// count reaches zero rather than whenever the Go GC happens to run.
package proxypool

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/go-rtps/pdp/internal/config"
	"github.com/go-rtps/pdp/internal/metrics"
	"github.com/go-rtps/pdp/internal/proxydata"
	"github.com/go-rtps/pdp/internal/rtpsid"
	"github.com/go-rtps/pdp/internal/rtpslog"
)

var log = rtpslog.Named("core/proxypool")

// poolable is the contract a pooled object must satisfy: on last release,
// wipe its own mutable state under its own lock and report the GUID it held
// (spec.md §4.1's release hook).
type poolable interface {
	ClearAndGUID() rtpsid.GUID
}

// ref is the process-wide shared box backing one live GUID: the object
// itself plus a strong refcount. The subPool's weak map holds *ref values
// as its non-owning back-references.
type ref[T poolable] struct {
	guid  rtpsid.GUID
	obj   T
	count int32
	sp    *subPool[T]
}

// AddRef increments the strong count and returns the same ref, the way
// copying a shared_ptr would.
func (r *ref[T]) AddRef() *ref[T] {
	atomic.AddInt32(&r.count, 1)
	return r
}

// Release decrements the strong count; at zero it hands the object back to
// the pool and erases the weak-map entry.
func (r *ref[T]) Release() {
	if atomic.AddInt32(&r.count, -1) > 0 {
		return
	}
	r.sp.release(r)
}

// subPool is one of the three process-wide pools (participant, reader,
// writer). pool_mutex in spec.md §5 is this mutex; subPool never calls
// release() while already holding mu, so a plain (non-reentrant) Mutex is
// sufficient.
type subPool[T poolable] struct {
	kind string

	mu    sync.Mutex
	weak  map[rtpsid.GUID]*ref[T]
	free  []T
	inUse int
	max   int

	newObj func() T

	// recentlyEvicted remembers the last 1024 released GUIDs, queryable
	// through ProxyPool.ParticipantRecentlyEvicted. Nothing in the
	// discovery path consults it: an ALIVE arriving after a removal is
	// handled as a new discovery.
	recentlyEvicted *lru.Cache[rtpsid.GUID, time.Time]

	m *metrics.Set
}

func newSubPool[T poolable](kind string, max int, newObj func() T, m *metrics.Set) *subPool[T] {
	cache, err := lru.New[rtpsid.GUID, time.Time](1024)
	if err != nil {
		// Only returns an error for a non-positive size; 1024 never does.
		panic(err)
	}
	return &subPool[T]{
		kind:            kind,
		weak:            make(map[rtpsid.GUID]*ref[T]),
		max:             max,
		newObj:          newObj,
		recentlyEvicted: cache,
		m:               m,
	}
}

func (p *subPool[T]) acquire(guid rtpsid.GUID) (handle *ref[T], fresh bool, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r, found := p.weak[guid]; found {
		return r.AddRef(), false, true
	}

	var obj T
	if n := len(p.free); n > 0 {
		obj = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		if p.inUse >= p.max {
			if p.m != nil {
				p.m.PoolExhausted.WithLabelValues(p.kind).Inc()
			}
			log.Warn("proxy pool exhausted", "kind", p.kind, "max", p.max)
			return nil, false, false
		}
		obj = p.newObj()
	}

	p.inUse++
	r := &ref[T]{guid: guid, obj: obj, count: 1, sp: p}
	p.weak[guid] = r
	p.setGauge()
	return r, true, true
}

func (p *subPool[T]) release(r *ref[T]) {
	r.obj.ClearAndGUID()
	guid := r.guid

	p.mu.Lock()
	delete(p.weak, guid)
	p.free = append(p.free, r.obj)
	p.inUse--
	p.setGauge()
	p.mu.Unlock()

	p.recentlyEvicted.Add(guid, time.Now())
}

func (p *subPool[T]) setGauge() {
	if p.m != nil {
		p.m.PoolInUse.WithLabelValues(p.kind).Set(float64(p.inUse))
	}
}

func (p *subPool[T]) wasRecentlyEvicted(guid rtpsid.GUID) bool {
	_, ok := p.recentlyEvicted.Get(guid)
	return ok
}

func (p *subPool[T]) freeListLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// ProxyPool is the process-wide set of pools spec.md §4.1 describes.
type ProxyPool struct {
	participants *subPool[*proxydata.Participant]
	readers      *subPool[*proxydata.Reader]
	writers      *subPool[*proxydata.Writer]
}

// New constructs a ProxyPool sized by cfg. m may be nil.
func New(cfg config.AllocationConfig, m *metrics.Set) *ProxyPool {
	return &ProxyPool{
		participants: newSubPool("participant", cfg.ParticipantsMax, func() *proxydata.Participant {
			return proxydata.NewParticipant(cfg)
		}, m),
		readers: newSubPool("reader", cfg.ReadersMax, func() *proxydata.Reader {
			return proxydata.NewReader(cfg)
		}, m),
		writers: newSubPool("writer", cfg.WritersMax, func() *proxydata.Writer {
			return proxydata.NewWriter(cfg)
		}, m),
	}
}

// ParticipantHandle is a strong reference to a pooled *proxydata.Participant.
type ParticipantHandle struct{ ref *ref[*proxydata.Participant] }

func (h *ParticipantHandle) Data() *proxydata.Participant { return h.ref.obj }
func (h *ParticipantHandle) Release()                     { h.ref.Release() }
func (h *ParticipantHandle) AddRef() *ParticipantHandle   { return &ParticipantHandle{ref: h.ref.AddRef()} }

// AcquireParticipant implements spec.md §4.1's acquire_participant.
func (p *ProxyPool) AcquireParticipant(guid rtpsid.GUID) (handle *ParticipantHandle, fresh bool, ok bool) {
	r, fresh, ok := p.participants.acquire(guid)
	if !ok {
		return nil, false, false
	}
	return &ParticipantHandle{ref: r}, fresh, true
}

// ParticipantRecentlyEvicted reports whether guid was released within the
// pool's eviction-memory window.
func (p *ProxyPool) ParticipantRecentlyEvicted(guid rtpsid.GUID) bool {
	return p.participants.wasRecentlyEvicted(guid)
}

// ParticipantFreeListLen exposes the participant free-list length for
// spec.md §8 scenario 6 (pool recycle).
func (p *ProxyPool) ParticipantFreeListLen() int { return p.participants.freeListLen() }

// ReaderHandle is a strong reference to a pooled *proxydata.Reader.
type ReaderHandle struct{ ref *ref[*proxydata.Reader] }

func (h *ReaderHandle) Data() *proxydata.Reader { return h.ref.obj }
func (h *ReaderHandle) Release()                { h.ref.Release() }
func (h *ReaderHandle) AddRef() *ReaderHandle   { return &ReaderHandle{ref: h.ref.AddRef()} }

// AcquireReader implements spec.md §4.1's acquire_reader.
func (p *ProxyPool) AcquireReader(guid rtpsid.GUID) (handle *ReaderHandle, fresh bool, ok bool) {
	r, fresh, ok := p.readers.acquire(guid)
	if !ok {
		return nil, false, false
	}
	return &ReaderHandle{ref: r}, fresh, true
}

// WriterHandle is a strong reference to a pooled *proxydata.Writer.
type WriterHandle struct{ ref *ref[*proxydata.Writer] }

func (h *WriterHandle) Data() *proxydata.Writer { return h.ref.obj }
func (h *WriterHandle) Release()                { h.ref.Release() }
func (h *WriterHandle) AddRef() *WriterHandle   { return &WriterHandle{ref: h.ref.AddRef()} }

// AcquireWriter implements spec.md §4.1's acquire_writer.
func (p *ProxyPool) AcquireWriter(guid rtpsid.GUID) (handle *WriterHandle, fresh bool, ok bool) {
	r, fresh, ok := p.writers.acquire(guid)
	if !ok {
		return nil, false, false
	}
	return &WriterHandle{ref: r}, fresh, true
}
