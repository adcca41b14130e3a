package proxydata

import (
	"sync"

	"github.com/go-rtps/pdp/internal/config"
	"github.com/go-rtps/pdp/internal/rtpsid"
)

// ReliabilityKind mirrors the RTPS QoS reliability kinds, grounded on
// _examples/liamstask-go-rtps/rtps/qos.go's qosReliability.
type ReliabilityKind uint32

const (
	ReliabilityBestEffort ReliabilityKind = 1
	ReliabilityReliable   ReliabilityKind = 2
)

// HistoryKind mirrors the RTPS QoS history kinds.
type HistoryKind uint32

const (
	HistoryKeepLast HistoryKind = 0
	HistoryKeepAll  HistoryKind = 1
)

// QoSSummary is the condensed endpoint QoS spec.md §3 calls for.
type QoSSummary struct {
	Reliability ReliabilityKind
	History     HistoryKind
	HistoryDepth uint32
}

// Endpoint is the shared fields common to ReaderProxyData and
// WriterProxyData (spec.md §3).
type Endpoint struct {
	mu sync.Mutex // endpoint_mutex

	assigned bool
	guid     rtpsid.GUID

	UnicastLocators   *rtpsid.LocatorSet
	MulticastLocators *rtpsid.LocatorSet
	QoS               QoSSummary
	TopicName         string
	TypeName          string
}

func newEndpoint(cfg config.AllocationConfig) Endpoint {
	return Endpoint{
		UnicastLocators:   rtpsid.NewLocatorSet(cfg.LocatorsMaxUnicast),
		MulticastLocators: rtpsid.NewLocatorSet(cfg.LocatorsMaxMulticast),
	}
}

func (e *Endpoint) Lock()   { e.mu.Lock() }
func (e *Endpoint) Unlock() { e.mu.Unlock() }

func (e *Endpoint) Init(guid rtpsid.GUID) bool {
	if e.assigned {
		return false
	}
	e.guid = guid
	e.assigned = true
	return true
}

func (e *Endpoint) GUID() rtpsid.GUID { return e.guid }

// EndpointSnapshot is the immutable view handed to listeners.
type EndpointSnapshot struct {
	GUID              rtpsid.GUID
	UnicastLocators   []rtpsid.Locator
	MulticastLocators []rtpsid.Locator
	QoS               QoSSummary
	TopicName         string
	TypeName          string
}

func (e *Endpoint) snapshot() EndpointSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// snapshotLocked builds the snapshot assuming the caller already holds the
// endpoint lock, for use by code that must emit an event without releasing
// and re-acquiring a non-reentrant mutex (spec.md §4.2's
// add_{reader,writer}_proxy_data: "invoke initializer... under the PPD and
// endpoint locks and emit a CHANGED_QOS event").
func (e *Endpoint) snapshotLocked() EndpointSnapshot {
	return EndpointSnapshot{
		GUID:              e.guid,
		UnicastLocators:   e.UnicastLocators.Items(),
		MulticastLocators: e.MulticastLocators.Items(),
		QoS:               e.QoS,
		TopicName:         e.TopicName,
		TypeName:          e.TypeName,
	}
}

func (e *Endpoint) clearAndGUID() rtpsid.GUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	guid := e.guid
	e.guid = rtpsid.GUID{}
	e.assigned = false
	e.UnicastLocators.Clear()
	e.MulticastLocators.Clear()
	e.QoS = QoSSummary{}
	e.TopicName = ""
	e.TypeName = ""
	return guid
}

// Reader is a per-endpoint record for a remote DataReader (spec.md §3
// "ReaderProxyData").
type Reader struct {
	Endpoint
}

func NewReader(cfg config.AllocationConfig) *Reader {
	return &Reader{Endpoint: newEndpoint(cfg)}
}

func (r *Reader) Snapshot() EndpointSnapshot       { return r.snapshot() }
func (r *Reader) SnapshotLocked() EndpointSnapshot { return r.snapshotLocked() }
func (r *Reader) ClearAndGUID() rtpsid.GUID        { return r.clearAndGUID() }

// Writer is a per-endpoint record for a remote DataWriter (spec.md §3
// "WriterProxyData").
type Writer struct {
	Endpoint
}

func NewWriter(cfg config.AllocationConfig) *Writer {
	return &Writer{Endpoint: newEndpoint(cfg)}
}

func (w *Writer) Snapshot() EndpointSnapshot       { return w.snapshot() }
func (w *Writer) SnapshotLocked() EndpointSnapshot { return w.snapshotLocked() }
func (w *Writer) ClearAndGUID() rtpsid.GUID        { return w.clearAndGUID() }
