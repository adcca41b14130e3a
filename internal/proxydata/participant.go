// Package proxydata implements the shareable proxy records of spec.md §3:
// ParticipantProxyData, ReaderProxyData and WriterProxyData. Each carries
// its own lock (ppd_mutex / endpoint_mutex in spec.md §5) and is designed to
// be pooled and recycled by package proxypool.
package proxydata

import (
	"sync"
	"time"

	"github.com/go-rtps/pdp/internal/config"
	"github.com/go-rtps/pdp/internal/rtpsid"
)

// Participant is the authoritative, shareable record of one participant's
// advertised state (spec.md §3 "ParticipantProxyData").
type Participant struct {
	mu sync.Mutex // ppd_mutex

	assigned bool
	guid     rtpsid.GUID

	VendorID                   rtpsid.VendorID
	ProtoVersion               rtpsid.ProtoVersion
	AvailableBuiltinEndpoints  config.BuiltinEndpointMask
	MetatrafficUnicastLocators *rtpsid.LocatorSet
	MetatrafficMulticastLocators *rtpsid.LocatorSet
	DefaultUnicastLocators     *rtpsid.LocatorSet
	DefaultMulticastLocators   *rtpsid.LocatorSet
	ParticipantName            string
	UserData                   []byte
	LeaseDuration              time.Duration

	// ManifestVersion is the monotonic announcement sequence number
	// (spec.md §3: "monotonic announcement version").
	ManifestVersion int64

	// PersistenceGUIDPrefix is optional (spec.md §3).
	PersistenceGUIDPrefix *rtpsid.GUIDPrefix

	// IdentityToken/PermissionsToken/SecurityAttributes pass through
	// opaquely (spec.md §1 excludes security token handling from scope).
	IdentityToken      []byte
	PermissionsToken   []byte
	SecurityAttributes uint32
}

// NewParticipant allocates a fresh, unassigned Participant sized according
// to cfg's locator capacities.
func NewParticipant(cfg config.AllocationConfig) *Participant {
	return &Participant{
		MetatrafficUnicastLocators:   rtpsid.NewLocatorSet(cfg.LocatorsMaxUnicast),
		MetatrafficMulticastLocators: rtpsid.NewLocatorSet(cfg.LocatorsMaxMulticast),
		DefaultUnicastLocators:       rtpsid.NewLocatorSet(cfg.LocatorsMaxUnicast),
		DefaultMulticastLocators:     rtpsid.NewLocatorSet(cfg.LocatorsMaxMulticast),
	}
}

// Lock/Unlock expose ppd_mutex directly to callers that must initialize or
// inspect several fields atomically (spec.md §9 "Lock-held returns").
func (p *Participant) Lock()   { p.mu.Lock() }
func (p *Participant) Unlock() { p.mu.Unlock() }

// Init assigns guid if the participant has not yet been assigned one.
// It reports false if guid is already set (spec.md §3 invariant: "a PPD's
// GUID is immutable after first assignment until it is cleared"). Callers
// must hold the lock.
func (p *Participant) Init(guid rtpsid.GUID) bool {
	if p.assigned {
		return false
	}
	p.guid = guid
	p.assigned = true
	return true
}

// GUID returns the participant's identity. Callers must hold the lock, or
// accept that it may be read mid-clear.
func (p *Participant) GUID() rtpsid.GUID { return p.guid }

// ParticipantSnapshot is an immutable, independently-readable copy of the fields that
// matter for listener delivery and CHANGED_QOS comparison.
type ParticipantSnapshot struct {
	GUID                       rtpsid.GUID
	VendorID                   rtpsid.VendorID
	ProtoVersion               rtpsid.ProtoVersion
	AvailableBuiltinEndpoints  config.BuiltinEndpointMask
	MetatrafficUnicastLocators []rtpsid.Locator
	MetatrafficMulticastLocators []rtpsid.Locator
	DefaultUnicastLocators     []rtpsid.Locator
	DefaultMulticastLocators   []rtpsid.Locator
	ParticipantName            string
	UserData                   []byte
	LeaseDuration              time.Duration
	ManifestVersion            int64
}

// Snapshot copies out the observable fields under the lock.
func (p *Participant) Snapshot() ParticipantSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.SnapshotLocked()
}

// SnapshotLocked builds the snapshot assuming the caller already holds the
// lock, for callers that must read then emit an event without releasing a
// non-reentrant mutex (mirrors Reader.SnapshotLocked/Writer.SnapshotLocked).
func (p *Participant) SnapshotLocked() ParticipantSnapshot {
	return ParticipantSnapshot{
		GUID:                         p.guid,
		VendorID:                     p.VendorID,
		ProtoVersion:                 p.ProtoVersion,
		AvailableBuiltinEndpoints:    p.AvailableBuiltinEndpoints,
		MetatrafficUnicastLocators:   p.MetatrafficUnicastLocators.Items(),
		MetatrafficMulticastLocators: p.MetatrafficMulticastLocators.Items(),
		DefaultUnicastLocators:       p.DefaultUnicastLocators.Items(),
		DefaultMulticastLocators:     p.DefaultMulticastLocators.Items(),
		ParticipantName:              p.ParticipantName,
		UserData:                     append([]byte(nil), p.UserData...),
		LeaseDuration:                p.LeaseDuration,
		ManifestVersion:              p.ManifestVersion,
	}
}

// ObservablyDiffers reports whether b differs from a in any field a remote
// listener should be told about: participant name, builtin endpoint mask,
// lease duration, user data, or any of the four locator lists. Vendor id,
// protocol version and ManifestVersion are not compared.
func (a ParticipantSnapshot) ObservablyDiffers(b ParticipantSnapshot) bool {
	if a.ParticipantName != b.ParticipantName {
		return true
	}
	if a.AvailableBuiltinEndpoints != b.AvailableBuiltinEndpoints {
		return true
	}
	if a.LeaseDuration != b.LeaseDuration {
		return true
	}
	if string(a.UserData) != string(b.UserData) {
		return true
	}
	if !locatorsEqual(a.MetatrafficUnicastLocators, b.MetatrafficUnicastLocators) ||
		!locatorsEqual(a.MetatrafficMulticastLocators, b.MetatrafficMulticastLocators) ||
		!locatorsEqual(a.DefaultUnicastLocators, b.DefaultUnicastLocators) ||
		!locatorsEqual(a.DefaultMulticastLocators, b.DefaultMulticastLocators) {
		return true
	}
	return false
}

func locatorsEqual(a, b []rtpsid.Locator) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || a[i].Port != b[i].Port || a[i].Addr.String() != b[i].Addr.String() {
			return false
		}
	}
	return true
}

// ClearAndGUID wipes all mutable state under the lock and returns the GUID
// it held immediately prior, the way the pool's release hook needs to
// "wipe mutable fields under its own lock, read and cache the GUID"
// (spec.md §4.1). Only package proxypool calls this, on last release.
func (p *Participant) ClearAndGUID() rtpsid.GUID {
	p.mu.Lock()
	defer p.mu.Unlock()

	guid := p.guid
	p.guid = rtpsid.GUID{}
	p.assigned = false
	p.VendorID = 0
	p.ProtoVersion = rtpsid.ProtoVersion{}
	p.AvailableBuiltinEndpoints = 0
	p.MetatrafficUnicastLocators.Clear()
	p.MetatrafficMulticastLocators.Clear()
	p.DefaultUnicastLocators.Clear()
	p.DefaultMulticastLocators.Clear()
	p.ParticipantName = ""
	p.UserData = nil
	p.LeaseDuration = 0
	p.ManifestVersion = 0
	p.PersistenceGUIDPrefix = nil
	p.IdentityToken = nil
	p.PermissionsToken = nil
	p.SecurityAttributes = 0
	return guid
}
