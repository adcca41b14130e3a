// Package rtpsid implements the RTPS entity identity types: GUID, GUIDPrefix
// and EntityID. Layout and well-known values follow the RTPS wire spec the
// way _examples/liamstask-go-rtps/rtps/id.go encodes them.
package rtpsid

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// GUIDPrefixLen is the length in bytes of a GuidPrefix_t.
const GUIDPrefixLen = 12

// InstanceKeyLen is the length in bytes of the 16-byte instance key derived
// from a GUID (prefix || entity id, big endian).
const InstanceKeyLen = 16

// Well-known EntityId_t values (RTPS spec 9.3.1.2, PSM table).
const (
	EntityIDUnknown     EntityID = 0x00000000
	EntityIDParticipant EntityID = 0x000001c1

	EntityIDSPDPParticipantWriter EntityID = 0x000100c2
	EntityIDSPDPParticipantReader EntityID = 0x000100c7

	EntityIDSEDPPublicationsWriter  EntityID = 0x000003c2
	EntityIDSEDPPublicationsReader  EntityID = 0x000003c7
	EntityIDSEDPSubscriptionsWriter EntityID = 0x000004c2
	EntityIDSEDPSubscriptionsReader EntityID = 0x000004c7

	EntityIDParticipantMessageWriter EntityID = 0x000200c2
	EntityIDParticipantMessageReader EntityID = 0x000200c7
)

const (
	entityKindSourceMask    = 0xc0
	entityKindSourceBuiltin = 0xc0
)

// VendorID identifies the implementation that produced a message.
type VendorID uint16

// GoRTPSVendorID is this implementation's vendor id.
const GoRTPSVendorID VendorID = 0x01ff

// ProtoVersion is the RTPS protocol version carried in the message header.
type ProtoVersion struct {
	Major uint8
	Minor uint8
}

// GUIDPrefix identifies a participant; it is shared by every entity the
// participant owns.
type GUIDPrefix [GUIDPrefixLen]byte

func (p GUIDPrefix) String() string {
	return hex.EncodeToString(p[:])
}

// IsUnknown reports whether p is the all-zero prefix.
func (p GUIDPrefix) IsUnknown() bool {
	return p == GUIDPrefix{}
}

// EntityID identifies an entity within a participant. It is always encoded
// big-endian on the wire regardless of the submessage endianness flag.
type EntityID uint32

// IsBuiltin reports whether the entity is one of the builtin discovery
// endpoints rather than a user-created reader or writer.
func (e EntityID) IsBuiltin() bool {
	b := byte(e & entityKindSourceMask)
	return b == entityKindSourceBuiltin
}

// GUID is the (GuidPrefix, EntityId) pair that globally identifies one
// RTPS entity.
type GUID struct {
	Prefix GUIDPrefix
	Entity EntityID
}

// IsUnknown reports whether g carries no identity at all.
func (g GUID) IsUnknown() bool {
	return g.Prefix.IsUnknown() && g.Entity == EntityIDUnknown
}

// ParticipantGUID returns the GUID that denotes the participant itself
// (entity id ENTITYID_PARTICIPANT) within prefix.
func ParticipantGUID(prefix GUIDPrefix) GUID {
	return GUID{Prefix: prefix, Entity: EntityIDParticipant}
}

// InstanceKey returns the 16-byte instance handle derived from the GUID:
// prefix concatenated with the big-endian entity id.
func (g GUID) InstanceKey() [InstanceKeyLen]byte {
	var key [InstanceKeyLen]byte
	copy(key[:GUIDPrefixLen], g.Prefix[:])
	binary.BigEndian.PutUint32(key[GUIDPrefixLen:], uint32(g.Entity))
	return key
}

func (g GUID) String() string {
	return fmt.Sprintf("%s:%08x", g.Prefix.String(), uint32(g.Entity))
}

// GUIDFromInstanceKey reconstructs the GUID encoded in a 16-byte instance
// key (prefix ‖ big-endian entity id), the inverse of GUID.InstanceKey.
func GUIDFromInstanceKey(key [InstanceKeyLen]byte) GUID {
	var prefix GUIDPrefix
	copy(prefix[:], key[:GUIDPrefixLen])
	return GUID{Prefix: prefix, Entity: EntityID(binary.BigEndian.Uint32(key[GUIDPrefixLen:]))}
}

// NewGUIDPrefix copies b (which must be GUIDPrefixLen bytes) into a
// GUIDPrefix value.
func NewGUIDPrefix(b []byte) (GUIDPrefix, error) {
	var p GUIDPrefix
	if len(b) != GUIDPrefixLen {
		return p, fmt.Errorf("rtpsid: guid prefix must be %d bytes, got %d", GUIDPrefixLen, len(b))
	}
	copy(p[:], b)
	return p, nil
}
