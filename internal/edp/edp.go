// Package edp declares the narrow interface PDPStore uses to reach the
// Endpoint Discovery Protocol collaborator (spec.md §6 "EDP (consumed)").
// The EDP implementation itself is out of scope (spec.md §1); this package
// only defines the contract and a no-op stand-in so the PDP core is
// exercisable without a real EDP wired up.
package edp

import (
	"github.com/go-rtps/pdp/internal/proxydata"
	"github.com/go-rtps/pdp/internal/rtpsid"
)

// Collaborator is implemented by whatever owns SEDP pairing. PDPStore calls
// it on endpoint and participant removal, and DiscoveryReceiver calls it on
// participant discovery; it never
// calls back into PDPStore, matching spec.md §5's "user-supplied
// initializer callbacks... must not acquire store_mutex" discipline applied
// to this collaborator as well.
type Collaborator interface {
	// UnpairReaderProxy is called from remove_reader_proxy_data before the
	// reader's strong reference is dropped.
	UnpairReaderProxy(participantGUID, readerGUID rtpsid.GUID) error
	// UnpairWriterProxy is the writer counterpart.
	UnpairWriterProxy(participantGUID, writerGUID rtpsid.GUID) error
	// RemoveRemoteEndpoints purges any bookkeeping EDP keeps keyed by the
	// departing participant's PPD (spec.md §4.2's remove_remote_participant
	// step "ask WLP/EDP/self to purge any remote-endpoint bookkeeping").
	RemoveRemoteEndpoints(participant proxydata.ParticipantSnapshot) error
	// ParticipantDiscovered is called once a newly discovered participant's
	// builtin endpoint mask indicates it participates in SEDP (SPEC_FULL.md §12's
	// builtin-endpoint-mask gating); it is not told about participants that
	// advertise no SEDP endpoints.
	ParticipantDiscovered(participant proxydata.ParticipantSnapshot)
}

// Noop implements Collaborator with no-ops, for tests and the demo binary
// where no real EDP/WLP is wired up.
type Noop struct{}

func (Noop) UnpairReaderProxy(rtpsid.GUID, rtpsid.GUID) error               { return nil }
func (Noop) UnpairWriterProxy(rtpsid.GUID, rtpsid.GUID) error               { return nil }
func (Noop) RemoveRemoteEndpoints(proxydata.ParticipantSnapshot) error      { return nil }
func (Noop) ParticipantDiscovered(proxydata.ParticipantSnapshot)            {}
