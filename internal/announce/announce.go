// Package announce implements AnnounceEngine (spec.md §4.3): the local
// participant's periodic self-announcement, grounded on the timer-phase
// shape of _examples/dep2p-go-dep2p/internal/core/discovery's announcer,
// using github.com/benbjohnson/clock so the initial-burst/steady-state
// transition is testable without real sleeps.
package announce

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/go-rtps/pdp/internal/builtin"
	"github.com/go-rtps/pdp/internal/config"
	"github.com/go-rtps/pdp/internal/metrics"
	"github.com/go-rtps/pdp/internal/pdpstore"
	"github.com/go-rtps/pdp/internal/rtpslog"
	"github.com/go-rtps/pdp/internal/wire"
)

var log = rtpslog.Named("core/announce")

// Engine drives spec.md §4.3's two phases: a configured count of extra
// announcements at a short initial period, then steady-state announcements
// at leaseDuration_announcementperiod.
type Engine struct {
	store  *pdpstore.Store
	writer *builtin.Writer
	cfg    config.DiscoveryConfig
	clock  clock.Clock

	mu              sync.Mutex
	timer           *clock.Timer
	remainingBursts int
	hasChangedLocal bool
	stopped         bool

	metrics *metrics.Set
}

// New constructs an Engine. cfg is normalized (spec.md §8's "initial
// announcement period equal to zero is clamped to 1ms") before use.
func New(store *pdpstore.Store, writer *builtin.Writer, cfg config.DiscoveryConfig, clk clock.Clock, m *metrics.Set) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	cfg = cfg.Normalized()
	return &Engine{
		store:           store,
		writer:          writer,
		cfg:             cfg,
		clock:           clk,
		remainingBursts: cfg.InitialAnnouncementsCount,
		hasChangedLocal: true,
		metrics:         m,
	}
}

// MarkChanged sets has_changed_local so the next explicit
// Announce(false, false) is not suppressed. Scheduled ticks announce
// whether or not it is set.
func (e *Engine) MarkChanged() {
	e.mu.Lock()
	e.hasChangedLocal = true
	e.mu.Unlock()
}

// Start fires the first announcement immediately (spec.md §8 scenario 1:
// "two ALIVE changes... at t≈0 and t≈50ms"), then arms the periodic timer
// from onTick.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	e.onTick()
}

func (e *Engine) periodLocked() time.Duration {
	if e.remainingBursts > 0 {
		return e.cfg.InitialAnnouncementsPeriod
	}
	return e.cfg.LeaseDurationAnnouncePeriod
}

// onTick runs once per scheduled tick, burst or steady-state. Every
// scheduled tick announces unconditionally: has_changed_local only gates an
// explicit, out-of-schedule Announce(false, false) call, never the periodic
// timer itself — otherwise a participant whose local PPD never changes
// again would stop refreshing every remote's lease after its first
// announcement, per spec.md §4.3/§4.4.
func (e *Engine) onTick() {
	e.Announce(true, false)

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	if e.remainingBursts > 0 {
		e.remainingBursts--
	}
	period := e.periodLocked()
	e.timer = e.clock.AfterFunc(period, e.onTick)
	e.mu.Unlock()
}

// Announce implements spec.md §4.3's on-tick/explicit announce behavior.
// newChange forces an announcement even if nothing has changed; dispose
// emits a NOT_ALIVE_DISPOSED_UNREGISTERED change instead of ALIVE and is
// used on shutdown.
func (e *Engine) Announce(newChange, dispose bool) {
	e.mu.Lock()
	force := newChange || dispose
	if !force && !e.hasChangedLocal {
		e.mu.Unlock()
		return
	}
	e.hasChangedLocal = false
	e.mu.Unlock()

	snap := e.store.Local().Participant().Snapshot()
	payload := wire.Encode(snap, wire.LittleEndian)

	e.writer.History.RemoveMinChange()

	kind := builtin.Alive
	if dispose {
		kind = builtin.NotAliveDisposedUnregistered
	}
	change := e.writer.NewChange(kind, snap.GUID.InstanceKey(), payload)
	e.writer.History.AddChange(change)

	if e.metrics != nil {
		e.metrics.Announcements.Inc()
	}
	log.Debug("announced local participant", "kind", kind.String(), "version", snap.ManifestVersion)
}

// Stop cancels the periodic timer. The store remains queryable
// (spec.md §5: "stopping announcements cancels only the periodic timer").
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	t := e.timer
	e.mu.Unlock()
	if t != nil {
		t.Stop()
	}
}

// Dispose sends a final NOT_ALIVE_DISPOSED_UNREGISTERED announcement and
// stops the periodic timer, the way a graceful shutdown must (spec.md
// §4.3's dispose variant).
func (e *Engine) Dispose() {
	e.Announce(true, true)
	e.Stop()
}
