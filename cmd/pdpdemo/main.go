// Command pdpdemo wires one local participant's PDP core end-to-end: a
// ProxyPool, a PDPStore with the local participant installed, an
// AnnounceEngine driving a builtin SPDP writer, a LeaseEngine, and a
// DiscoveryReceiver consuming a builtin SPDP reader. It then simulates a
// single remote participant's ALIVE announcement to exercise discovery.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-rtps/pdp/internal/announce"
	"github.com/go-rtps/pdp/internal/builtin"
	"github.com/go-rtps/pdp/internal/config"
	"github.com/go-rtps/pdp/internal/discoveryrx"
	"github.com/go-rtps/pdp/internal/edp"
	"github.com/go-rtps/pdp/internal/lease"
	"github.com/go-rtps/pdp/internal/listener"
	"github.com/go-rtps/pdp/internal/metrics"
	"github.com/go-rtps/pdp/internal/pdpstore"
	"github.com/go-rtps/pdp/internal/proxydata"
	"github.com/go-rtps/pdp/internal/proxypool"
	"github.com/go-rtps/pdp/internal/rtpsid"
	"github.com/go-rtps/pdp/internal/rtpslog"
	"github.com/go-rtps/pdp/internal/wire"
	"github.com/go-rtps/pdp/internal/wlp"
)

type stdoutListener struct{}

func (stdoutListener) OnParticipantDiscovery(info listener.ParticipantInfo) {
	fmt.Printf("participant %s: %s name=%q\n", info.Kind, info.Participant.GUID, info.Participant.ParticipantName)
}

func (stdoutListener) OnReaderDiscovery(info listener.ReaderInfo) {
	fmt.Printf("reader %s: %s on participant %s\n", info.Kind, info.Reader.GUID, info.ParticipantGUID)
}

func (stdoutListener) OnWriterDiscovery(info listener.WriterInfo) {
	fmt.Printf("writer %s: %s on participant %s\n", info.Kind, info.Writer.GUID, info.ParticipantGUID)
}

func main() {
	rtpslog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	allocCfg := config.DefaultAllocationConfig()
	discCfg := config.DefaultDiscoveryConfig()
	local := config.NewLocalIdentity("pdpdemo")

	reg := prometheus.NewRegistry()
	m := metrics.NewSet(reg)

	pool := proxypool.New(allocCfg, m)
	clk := clock.New()

	dispatch := listener.New(stdoutListener{}, 64)
	defer dispatch.Close()

	spdpWriter := builtin.NewWriter(1)
	spdpReader := builtin.NewReader(1)

	localGUID := rtpsid.ParticipantGUID(local.GUIDPrefix)
	store, err := pdpstore.New(pool, allocCfg, allocCfg.ParticipantsMax, localGUID, edp.Noop{}, wlp.Noop{}, dispatch, spdpReader.History, m)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to construct store:", err)
		os.Exit(1)
	}

	leaseEngine := lease.New(store, clk, m)
	store.SetLeaseArmer(leaseEngine.Arm)

	localPD := store.Local().Participant()
	localPD.Lock()
	localPD.VendorID = rtpsid.GoRTPSVendorID
	localPD.ProtoVersion = rtpsid.ProtoVersion{Major: 2, Minor: 3}
	localPD.AvailableBuiltinEndpoints = discCfg.BuiltinEndpoints
	localPD.ParticipantName = local.Name
	localPD.ManifestVersion = 1
	localPD.Unlock()

	discoveryrx.New(store, leaseEngine, spdpReader, edp.Noop{}, dispatch, allocCfg)

	announcer := announce.New(store, spdpWriter, discCfg, clk, m)
	announcer.Start()
	defer announcer.Dispose()

	deliverSimulatedRemote(spdpReader)

	time.Sleep(10 * time.Millisecond)
	leaseEngine.Stop()
}

// deliverSimulatedRemote feeds the builtin reader one ALIVE change for a
// fabricated remote participant, standing in for a real inbound RTPS
// message.
func deliverSimulatedRemote(reader *builtin.Reader) {
	prefix, err := rtpsid.NewGUIDPrefix([]byte("remote-parti"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad demo guid prefix:", err)
		return
	}
	guid := rtpsid.ParticipantGUID(prefix)

	snap := proxydata.ParticipantSnapshot{
		GUID:            guid,
		VendorID:        rtpsid.GoRTPSVendorID,
		ProtoVersion:    rtpsid.ProtoVersion{Major: 2, Minor: 3},
		ParticipantName: "remote-demo",
		LeaseDuration:   300 * time.Millisecond,
		ManifestVersion: 1,
	}
	payload := wire.Encode(snap, wire.LittleEndian)
	reader.Deliver(&builtin.CacheChange{
		Kind:        builtin.Alive,
		InstanceKey: guid.InstanceKey(),
		Payload:     payload,
	})
}
