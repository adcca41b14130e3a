// Package discoveryrx implements DiscoveryReceiver (spec.md §4.5): the
// sole consumer of the builtin SPDP reader's delivered cache changes,
// grounded on the callback-driven consumption shape of
// _examples/dep2p-go-dep2p/internal/core/discovery's finder.
package discoveryrx

import (
	"github.com/go-rtps/pdp/internal/builtin"
	"github.com/go-rtps/pdp/internal/config"
	"github.com/go-rtps/pdp/internal/edp"
	"github.com/go-rtps/pdp/internal/lease"
	"github.com/go-rtps/pdp/internal/listener"
	"github.com/go-rtps/pdp/internal/pdpstore"
	"github.com/go-rtps/pdp/internal/proxydata"
	"github.com/go-rtps/pdp/internal/rtpsid"
	"github.com/go-rtps/pdp/internal/rtpslog"
	"github.com/go-rtps/pdp/internal/wire"
)

var log = rtpslog.Named("core/discoveryrx")

// Receiver consumes builtin.Reader deliveries and routes them to the store.
type Receiver struct {
	store     *pdpstore.Store
	lease     *lease.Engine
	edpCollab edp.Collaborator
	dispatch  *listener.Dispatcher
	allocCfg  config.AllocationConfig
}

// New wires receiver onto reader's callback (spec.md §6: "the
// DiscoveryReceiver is its sole consumer").
func New(store *pdpstore.Store, leaseEngine *lease.Engine, reader *builtin.Reader, edpCollab edp.Collaborator, dispatch *listener.Dispatcher, allocCfg config.AllocationConfig) *Receiver {
	r := &Receiver{store: store, lease: leaseEngine, edpCollab: edpCollab, dispatch: dispatch, allocCfg: allocCfg}
	reader.SetCallback(r.onChange)
	return r
}

func (r *Receiver) onChange(c *builtin.CacheChange) {
	switch c.Kind {
	case builtin.Alive:
		r.handleAlive(c)
	case builtin.NotAliveDisposedUnregistered:
		r.handleNotAlive(c)
	}
}

func (r *Receiver) handleAlive(c *builtin.CacheChange) {
	temp, err := wire.Decode(c.Payload, r.allocCfg)
	if err != nil {
		log.Warn("discarding malformed inbound PPD", "err", err)
		return
	}
	guid := temp.GUID

	// "Always assert liveliness on the source participant prior to
	// routing" (spec.md §4.5) — a no-op if guid is not yet known.
	r.lease.AssertLiveliness(guid)

	if shell, ok := r.store.Lookup(guid); ok {
		r.handleKnown(shell, temp)
		return
	}
	r.handleUnknown(guid, temp)
}

func (r *Receiver) handleKnown(shell *pdpstore.ParticipantProxy, temp proxydata.ParticipantSnapshot) {
	pd := shell.Participant()
	pd.Lock()
	before := pd.SnapshotLocked()

	if !protocolCompatible(before.VendorID, before.ProtoVersion, temp.VendorID, temp.ProtoVersion) {
		pd.Unlock()
		r.dispatch.EmitParticipant(listener.ParticipantInfo{Kind: listener.Ignored, Participant: before})
		return
	}

	mergeParticipant(pd, temp)
	after := pd.SnapshotLocked()
	pd.Unlock()

	if before.ObservablyDiffers(after) {
		r.dispatch.EmitParticipant(listener.ParticipantInfo{Kind: listener.ChangedQoS, Participant: after})
	}
}

func (r *Receiver) handleUnknown(guid rtpsid.GUID, temp proxydata.ParticipantSnapshot) {
	shell, ok := r.store.AddParticipantProxy(guid, true)
	if !ok {
		log.Warn("participant capacity reached, dropping discovery", "guid", guid.String())
		return
	}
	pd := shell.Participant()
	mergeParticipant(pd, temp)
	r.store.ArmLease(shell)
	snap := pd.SnapshotLocked()
	pd.Unlock()

	// Builtin-endpoint-mask gating (SPEC_FULL.md §12): only tell EDP about
	// participants that advertise at least one SEDP endpoint.
	const sedpMask = config.BuiltinPublicationAnnouncer | config.BuiltinPublicationDetector |
		config.BuiltinSubscriptionAnnouncer | config.BuiltinSubscriptionDetector
	if snap.AvailableBuiltinEndpoints&sedpMask != 0 {
		r.edpCollab.ParticipantDiscovered(snap)
	}

	r.dispatch.EmitParticipant(listener.ParticipantInfo{Kind: listener.Discovered, Participant: snap})
}

func (r *Receiver) handleNotAlive(c *builtin.CacheChange) {
	guid := rtpsid.GUIDFromInstanceKey(c.InstanceKey)
	r.store.RemoveRemoteParticipant(guid, listener.Removed)
}

// protocolCompatible implements spec.md §7's "Protocol violation" check: an
// inbound change referencing a known participant with a different vendor
// or a different major protocol version is incompatible.
func protocolCompatible(existingVendor rtpsid.VendorID, existingProto rtpsid.ProtoVersion, newVendor rtpsid.VendorID, newProto rtpsid.ProtoVersion) bool {
	if existingVendor != newVendor {
		return false
	}
	return existingProto.Major == newProto.Major
}

// mergeParticipant copies every observable field of src onto pd. The
// caller must hold pd's lock.
func mergeParticipant(pd *proxydata.Participant, src proxydata.ParticipantSnapshot) {
	pd.VendorID = src.VendorID
	pd.ProtoVersion = src.ProtoVersion
	pd.AvailableBuiltinEndpoints = src.AvailableBuiltinEndpoints
	pd.MetatrafficUnicastLocators.Set(src.MetatrafficUnicastLocators)
	pd.MetatrafficMulticastLocators.Set(src.MetatrafficMulticastLocators)
	pd.DefaultUnicastLocators.Set(src.DefaultUnicastLocators)
	pd.DefaultMulticastLocators.Set(src.DefaultMulticastLocators)
	pd.ParticipantName = src.ParticipantName
	pd.UserData = append([]byte(nil), src.UserData...)
	pd.LeaseDuration = src.LeaseDuration
	pd.ManifestVersion = src.ManifestVersion
}
