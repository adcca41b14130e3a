// Package wire implements CDR parameter-list encoding of
// ParticipantProxyData (spec.md §6 "Wire"), grounded on the PID layout and
// param-list framing of
// _examples/liamstask-go-rtps/rtps/proto.go. Full CDR correctness for every
// RTPS PID is out of scope (spec.md §1); this package only carries the
// fields ParticipantSnapshot exposes, enough to satisfy the round-trip
// testable property in spec.md §8.
package wire

import (
	"encoding/binary"
	"errors"
	"net"
	"time"

	"github.com/go-rtps/pdp/internal/config"
	"github.com/go-rtps/pdp/internal/proxydata"
	"github.com/go-rtps/pdp/internal/rtpsid"
)

// Endianness selects the representation_id tagged in the payload header
// (spec.md §6: "tagged PL_CDR_LE or PL_CDR_BE").
type Endianness int

const (
	LittleEndian Endianness = iota
	BigEndian
)

const (
	representationPLCDRBE uint16 = 0x0002
	representationPLCDRLE uint16 = 0x0003
)

// Parameter IDs, following the RTPS PSM table the way
// _examples/liamstask-go-rtps/rtps/proto.go names its PID_* constants.
const (
	pidSentinel                    uint16 = 0x0001
	pidParticipantLeaseDuration     uint16 = 0x0002
	pidProtocolVersion              uint16 = 0x0015
	pidVendorID                      uint16 = 0x0016
	pidDefaultUnicastLocator         uint16 = 0x0031
	pidMetatrafficUnicastLocator     uint16 = 0x0032
	pidMetatrafficMulticastLocator   uint16 = 0x0033
	pidUserData                      uint16 = 0x002c
	pidDefaultMulticastLocator       uint16 = 0x0048
	pidParticipantGUID               uint16 = 0x0050
	pidEntityName                    uint16 = 0x0062
	pidBuiltinEndpointSet            uint16 = 0x0058

	// pidManifestVersion is a vendor-specific extension (vendor range
	// starts at 0x8000 in the RTPS PSM) carrying ParticipantSnapshot's
	// monotonic announcement sequence number, which has no standard PID.
	pidManifestVersion uint16 = 0x8001
)

var (
	ErrTruncated     = errors.New("wire: parameter list truncated")
	ErrBadRepresentation = errors.New("wire: unrecognized representation id")
	ErrMissingGUID   = errors.New("wire: parameter list has no PID_PARTICIPANT_GUID")
)

// Encode serializes snap as a CDR parameter list with a 4-byte
// representation header followed by (pid, length, value) entries padded to
// 4-byte boundaries, terminated by PID_SENTINEL.
func Encode(snap proxydata.ParticipantSnapshot, endian Endianness) []byte {
	order := byteOrder(endian)
	buf := make([]byte, 4)
	// The representation id itself is always written in the same two bytes
	// regardless of payload endianness, the way a CDR encapsulation header
	// is conventionally laid out; only the parameters that follow switch
	// byte order.
	if endian == BigEndian {
		binary.BigEndian.PutUint16(buf[0:2], representationPLCDRBE)
	} else {
		binary.BigEndian.PutUint16(buf[0:2], representationPLCDRLE)
	}
	// buf[2:4] are the two options bytes, unused here and left zero.

	appendParam(&buf, order, pidParticipantGUID, encodeGUID(snap.GUID))
	appendParam(&buf, order, pidVendorID, encodeVendorID(snap.VendorID, order))
	appendParam(&buf, order, pidProtocolVersion, []byte{snap.ProtoVersion.Major, snap.ProtoVersion.Minor, 0, 0})
	appendParam(&buf, order, pidBuiltinEndpointSet, encodeUint32(uint32(snap.AvailableBuiltinEndpoints), order))
	appendParam(&buf, order, pidMetatrafficUnicastLocator, encodeLocators(snap.MetatrafficUnicastLocators, order))
	appendParam(&buf, order, pidMetatrafficMulticastLocator, encodeLocators(snap.MetatrafficMulticastLocators, order))
	appendParam(&buf, order, pidDefaultUnicastLocator, encodeLocators(snap.DefaultUnicastLocators, order))
	appendParam(&buf, order, pidDefaultMulticastLocator, encodeLocators(snap.DefaultMulticastLocators, order))
	appendParam(&buf, order, pidEntityName, encodeString(snap.ParticipantName))
	appendParam(&buf, order, pidUserData, encodeBytes(snap.UserData))
	appendParam(&buf, order, pidParticipantLeaseDuration, encodeDuration(snap.LeaseDuration, order))
	appendParam(&buf, order, pidManifestVersion, encodeInt64(snap.ManifestVersion, order))
	appendSentinel(&buf, order)

	return buf
}

// Decode parses data produced by Encode back into a ParticipantSnapshot.
// cfg bounds the locator-set capacities allocated for the result, mirroring
// how a freshly pooled PPD would be sized (spec.md §3).
func Decode(data []byte, cfg config.AllocationConfig) (proxydata.ParticipantSnapshot, error) {
	var snap proxydata.ParticipantSnapshot
	if len(data) < 4 {
		return snap, ErrTruncated
	}
	rep := binary.BigEndian.Uint16(data[0:2])
	var order binary.ByteOrder
	switch rep {
	case representationPLCDRBE:
		order = binary.BigEndian
	case representationPLCDRLE:
		order = binary.LittleEndian
	default:
		return snap, ErrBadRepresentation
	}

	uniMeta := rtpsid.NewLocatorSet(cfg.LocatorsMaxUnicast)
	multiMeta := rtpsid.NewLocatorSet(cfg.LocatorsMaxMulticast)
	uniDefault := rtpsid.NewLocatorSet(cfg.LocatorsMaxUnicast)
	multiDefault := rtpsid.NewLocatorSet(cfg.LocatorsMaxMulticast)

	haveGUID := false
	off := 4
	for {
		if off+4 > len(data) {
			return snap, ErrTruncated
		}
		pid := order.Uint16(data[off : off+2])
		length := int(order.Uint16(data[off+2 : off+4]))
		off += 4
		if pid == pidSentinel {
			break
		}
		if off+length > len(data) {
			return snap, ErrTruncated
		}
		value := data[off : off+length]
		off += length

		switch pid {
		case pidParticipantGUID:
			g, err := decodeGUID(value)
			if err != nil {
				return snap, err
			}
			snap.GUID = g
			haveGUID = true
		case pidVendorID:
			snap.VendorID = rtpsid.VendorID(order.Uint16(value[0:2]))
		case pidProtocolVersion:
			snap.ProtoVersion = rtpsid.ProtoVersion{Major: value[0], Minor: value[1]}
		case pidBuiltinEndpointSet:
			snap.AvailableBuiltinEndpoints = config.BuiltinEndpointMask(order.Uint32(value[0:4]))
		case pidMetatrafficUnicastLocator:
			decodeLocators(value, order, uniMeta)
		case pidMetatrafficMulticastLocator:
			decodeLocators(value, order, multiMeta)
		case pidDefaultUnicastLocator:
			decodeLocators(value, order, uniDefault)
		case pidDefaultMulticastLocator:
			decodeLocators(value, order, multiDefault)
		case pidEntityName:
			snap.ParticipantName = decodeString(value)
		case pidUserData:
			snap.UserData = decodeBytes(value)
		case pidParticipantLeaseDuration:
			snap.LeaseDuration = decodeDuration(value, order)
		case pidManifestVersion:
			snap.ManifestVersion = int64(order.Uint64(value[0:8]))
		}
	}

	if !haveGUID {
		return snap, ErrMissingGUID
	}
	snap.MetatrafficUnicastLocators = uniMeta.Items()
	snap.MetatrafficMulticastLocators = multiMeta.Items()
	snap.DefaultUnicastLocators = uniDefault.Items()
	snap.DefaultMulticastLocators = multiDefault.Items()
	return snap, nil
}

func byteOrder(e Endianness) binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func appendParam(buf *[]byte, order binary.ByteOrder, pid uint16, value []byte) {
	padded := pad4(value)
	hdr := make([]byte, 4)
	order.PutUint16(hdr[0:2], pid)
	order.PutUint16(hdr[2:4], uint16(len(padded)))
	*buf = append(*buf, hdr...)
	*buf = append(*buf, padded...)
}

func appendSentinel(buf *[]byte, order binary.ByteOrder) {
	hdr := make([]byte, 4)
	order.PutUint16(hdr[0:2], pidSentinel)
	*buf = append(*buf, hdr...)
}

func pad4(b []byte) []byte {
	n := len(b)
	rem := n % 4
	if rem == 0 {
		return b
	}
	return append(append([]byte{}, b...), make([]byte, 4-rem)...)
}

func encodeGUID(g rtpsid.GUID) []byte {
	out := make([]byte, 16)
	copy(out, g.Prefix[:])
	binary.BigEndian.PutUint32(out[12:], uint32(g.Entity))
	return out
}

func decodeGUID(b []byte) (rtpsid.GUID, error) {
	if len(b) < 16 {
		return rtpsid.GUID{}, ErrTruncated
	}
	prefix, err := rtpsid.NewGUIDPrefix(b[:12])
	if err != nil {
		return rtpsid.GUID{}, err
	}
	return rtpsid.GUID{Prefix: prefix, Entity: rtpsid.EntityID(binary.BigEndian.Uint32(b[12:16]))}, nil
}

func encodeVendorID(v rtpsid.VendorID, order binary.ByteOrder) []byte {
	out := make([]byte, 4)
	order.PutUint16(out[0:2], uint16(v))
	return out
}

func encodeUint32(v uint32, order binary.ByteOrder) []byte {
	out := make([]byte, 4)
	order.PutUint32(out, v)
	return out
}

func encodeInt64(v int64, order binary.ByteOrder) []byte {
	out := make([]byte, 8)
	order.PutUint64(out, uint64(v))
	return out
}

func encodeDuration(d time.Duration, order binary.ByteOrder) []byte {
	out := make([]byte, 8)
	sec := int32(d / time.Second)
	nsec := uint32(d % time.Second)
	order.PutUint32(out[0:4], uint32(sec))
	order.PutUint32(out[4:8], nsec)
	return out
}

func decodeDuration(b []byte, order binary.ByteOrder) time.Duration {
	sec := int32(order.Uint32(b[0:4]))
	nsec := order.Uint32(b[4:8])
	return time.Duration(sec)*time.Second + time.Duration(nsec)
}

func encodeString(s string) []byte {
	b := []byte(s)
	out := make([]byte, 4+len(b)+1)
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(b)+1))
	copy(out[4:], b)
	return out
}

func decodeString(b []byte) string {
	if len(b) < 4 {
		return ""
	}
	n := int(binary.LittleEndian.Uint32(b[0:4]))
	if n == 0 || 4+n > len(b) {
		return ""
	}
	s := b[4 : 4+n]
	if len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return string(s)
}

func encodeBytes(b []byte) []byte {
	out := make([]byte, 4+len(b))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(b)))
	copy(out[4:], b)
	return out
}

func decodeBytes(b []byte) []byte {
	if len(b) < 4 {
		return nil
	}
	n := int(binary.LittleEndian.Uint32(b[0:4]))
	if n == 0 || 4+n > len(b) {
		return nil
	}
	return append([]byte(nil), b[4:4+n]...)
}

func encodeLocators(locs []rtpsid.Locator, order binary.ByteOrder) []byte {
	out := make([]byte, 4)
	order.PutUint32(out[0:4], uint32(len(locs)))
	for _, l := range locs {
		entry := make([]byte, 24)
		order.PutUint32(entry[0:4], uint32(l.Kind))
		order.PutUint32(entry[4:8], l.Port)
		ip4 := l.Addr.To4()
		if ip4 != nil {
			copy(entry[20:24], ip4)
		} else if ip6 := l.Addr.To16(); ip6 != nil {
			copy(entry[8:24], ip6)
		}
		out = append(out, entry...)
	}
	return out
}

func decodeLocators(b []byte, order binary.ByteOrder, into *rtpsid.LocatorSet) {
	if len(b) < 4 {
		return
	}
	n := int(order.Uint32(b[0:4]))
	off := 4
	for i := 0; i < n && off+24 <= len(b); i++ {
		entry := b[off : off+24]
		kind := int32(order.Uint32(entry[0:4]))
		port := order.Uint32(entry[4:8])
		var addr net.IP
		if kind == rtpsid.LocatorKindUDPv4 {
			addr = net.IPv4(entry[20], entry[21], entry[22], entry[23])
		} else {
			addr = net.IP(append([]byte(nil), entry[8:24]...))
		}
		into.Add(rtpsid.Locator{Kind: kind, Port: port, Addr: addr})
		off += 24
	}
}
