// Package lease implements LeaseEngine (spec.md §4.4): a one-shot timer
// per non-local ParticipantProxy, restarted on every asserted liveliness
// and driving remove_remote_participant on expiry. Timers are built on
// github.com/benbjohnson/clock so expiry is testable by advancing a fake
// clock instead of sleeping, the way
// _examples/dep2p-go-dep2p/internal/core/liveness.Service tracks per-peer
// deadlines (there via a plain time.Time comparison on a ticking loop; here
// via one timer per remote, since lease durations can differ per
// participant).
package lease

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/go-rtps/pdp/internal/listener"
	"github.com/go-rtps/pdp/internal/metrics"
	"github.com/go-rtps/pdp/internal/pdpstore"
	"github.com/go-rtps/pdp/internal/rtpsid"
	"github.com/go-rtps/pdp/internal/rtpslog"
)

var log = rtpslog.Named("core/lease")

// Engine owns one clock.Timer per live remote participant.
type Engine struct {
	store *pdpstore.Store
	clock clock.Clock

	mu      sync.Mutex
	timers  map[rtpsid.GUID]*clock.Timer
	stopped bool

	metrics *metrics.Set
}

// New constructs an Engine bound to store. Call store.SetLeaseArmer(e.Arm)
// so Store.ArmLease can arm new remotes as they are discovered.
func New(store *pdpstore.Store, clk clock.Clock, m *metrics.Set) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	return &Engine{
		store:   store,
		clock:   clk,
		timers:  make(map[rtpsid.GUID]*clock.Timer),
		metrics: m,
	}
}

// Arm installs a one-shot lease timer for shell's current lease duration
// and wires AssertLiveliness's reset/cancel hooks to it
// (spec.md §4.4: "Each non-local ParticipantProxy carries a one-shot timer
// initialized to the PPD's lease duration"). The caller must hold shell's
// PPD lock (as returned by Store.AddParticipantProxy) when calling Arm, so
// LeaseDuration can be read without a second lock acquisition.
func (e *Engine) Arm(shell *pdpstore.ParticipantProxy) {
	if shell.IsLocal() {
		return
	}
	guid := shell.GUID()
	leaseDuration := shell.Participant().LeaseDuration
	if leaseDuration <= 0 {
		log.Warn("refusing to arm lease with non-positive duration", "guid", guid.String())
		return
	}

	now := e.clock.Now()
	shell.AssertLiveliness(now)

	timer := e.clock.AfterFunc(leaseDuration, func() { e.onExpire(guid) })

	e.mu.Lock()
	if old, ok := e.timers[guid]; ok {
		old.Stop()
	}
	e.timers[guid] = timer
	e.mu.Unlock()

	shell.SetLeaseCallbacks(
		func() { e.reset(guid) },
		func() { e.cancel(guid) },
	)
}

func (e *Engine) reset(guid rtpsid.GUID) {
	shell, ok := e.store.Lookup(guid)
	if !ok {
		return
	}
	leaseDuration := shell.Participant().Snapshot().LeaseDuration
	e.mu.Lock()
	timer, ok := e.timers[guid]
	e.mu.Unlock()
	if ok {
		timer.Reset(leaseDuration)
	}
}

func (e *Engine) cancel(guid rtpsid.GUID) {
	e.mu.Lock()
	timer, ok := e.timers[guid]
	delete(e.timers, guid)
	e.mu.Unlock()
	if ok {
		timer.Stop()
	}
}

// onExpire implements spec.md §4.4's "on timer fire" logic, and spec.md
// §4.8's "lease-timer fire racing with voluntary removal: removal wins".
func (e *Engine) onExpire(guid rtpsid.GUID) {
	shell, ok := e.store.Lookup(guid)
	if !ok {
		return
	}
	now := e.clock.Now()
	last := shell.LastReceived()
	snap := shell.Participant().Snapshot()

	if now.Sub(last) > snap.LeaseDuration {
		if e.store.RemoveRemoteParticipant(guid, listener.Dropped) {
			if e.metrics != nil {
				e.metrics.LeasesExpired.Inc()
			}
		}
		e.mu.Lock()
		delete(e.timers, guid)
		e.mu.Unlock()
		return
	}

	residual := snap.LeaseDuration - now.Sub(last)
	if residual < time.Millisecond {
		residual = time.Millisecond
	}
	e.mu.Lock()
	timer, ok := e.timers[guid]
	e.mu.Unlock()
	if ok {
		timer.Reset(residual)
	}
}

// AssertLiveliness is the public liveness-assertion entry point described
// in the original's writer-liveliness integration (a remote can be kept
// alive by WLP traffic alone, without a fresh PDP message). Returns false
// if guid is not a known remote.
func (e *Engine) AssertLiveliness(guid rtpsid.GUID) bool {
	shell, ok := e.store.Lookup(guid)
	if !ok || shell.IsLocal() {
		return false
	}
	shell.AssertLiveliness(e.clock.Now())
	return true
}

// Stop cancels every outstanding lease timer (spec.md §5: "on store
// destruction all timers are cancelled and joined before state is freed").
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	timers := e.timers
	e.timers = make(map[rtpsid.GUID]*clock.Timer)
	e.mu.Unlock()

	for _, t := range timers {
		t.Stop()
	}
}
