// Package config holds the plain value structs the PDP core is constructed
// with, the way _examples/dep2p-go-dep2p/internal/config threads
// LivenessConfig/... into each service's constructor. No file-parsing layer
// lives here — spec.md §1 excludes XML policy parsing, and these structs are
// assumed already populated by the caller.
package config

import (
	"time"

	"github.com/google/uuid"

	"github.com/go-rtps/pdp/internal/rtpsid"
)

// AllocationConfig is the "allocation attributes" block of spec.md §6.
type AllocationConfig struct {
	ParticipantsInitial int
	ParticipantsMax     int

	ReadersInitial int
	ReadersMax     int

	WritersInitial int
	WritersMax     int

	LocatorsMaxUnicast   int
	LocatorsMaxMulticast int
}

// DefaultAllocationConfig returns conservative defaults suitable for a
// single embedded participant.
func DefaultAllocationConfig() AllocationConfig {
	return AllocationConfig{
		ParticipantsInitial: 4,
		ParticipantsMax:     64,
		ReadersInitial:      8,
		ReadersMax:          256,
		WritersInitial:      8,
		WritersMax:          256,
		LocatorsMaxUnicast:  4,
		LocatorsMaxMulticast: 1,
	}
}

// BuiltinEndpointMask mirrors spec.md §6's "builtin endpoint mask flags".
type BuiltinEndpointMask uint32

const (
	BuiltinParticipantAnnouncer BuiltinEndpointMask = 1 << iota
	BuiltinParticipantDetector
	BuiltinPublicationAnnouncer
	BuiltinPublicationDetector
	BuiltinSubscriptionAnnouncer
	BuiltinSubscriptionDetector
	BuiltinParticipantMessageWriter
	BuiltinParticipantMessageReader
	// BuiltinWriterLiveliness is the optional writer-liveliness protocol
	// flag named in spec.md §6.
	BuiltinWriterLiveliness
)

// DiscoveryConfig is the "discovery" block of spec.md §6.
type DiscoveryConfig struct {
	LeaseDuration               time.Duration
	LeaseDurationAnnouncePeriod time.Duration

	InitialAnnouncementsCount  int
	InitialAnnouncementsPeriod time.Duration

	AvoidBuiltinMulticast bool

	BuiltinEndpoints BuiltinEndpointMask
}

// DefaultDiscoveryConfig returns general-purpose defaults: a 20s lease, a
// 1s steady-state announcement period, and an initial burst of 5
// announcements 100ms apart.
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		LeaseDuration:               20 * time.Second,
		LeaseDurationAnnouncePeriod: time.Second,
		InitialAnnouncementsCount:   5,
		InitialAnnouncementsPeriod:  100 * time.Millisecond,
		BuiltinEndpoints:            BuiltinParticipantAnnouncer | BuiltinParticipantDetector,
	}
}

// Normalized returns a copy with the clamps spec.md §8 requires applied:
// a non-positive initial-announcement period is forced to 1ms.
func (d DiscoveryConfig) Normalized() DiscoveryConfig {
	if d.InitialAnnouncementsPeriod <= 0 {
		d.InitialAnnouncementsPeriod = time.Millisecond
	}
	return d
}

// LocalIdentity names the local participant's GUID prefix and human-facing
// name.
type LocalIdentity struct {
	GUIDPrefix rtpsid.GUIDPrefix
	Name       string
}

// NewLocalIdentity returns a LocalIdentity named name with a random GUID
// prefix, the way a freshly constructed host needs some unique identity
// before it has ever been configured.
func NewLocalIdentity(name string) LocalIdentity {
	id := uuid.New()
	var prefix rtpsid.GUIDPrefix
	copy(prefix[:], id[:rtpsid.GUIDPrefixLen])
	return LocalIdentity{GUIDPrefix: prefix, Name: name}
}
