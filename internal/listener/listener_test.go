package listener

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-rtps/pdp/internal/proxydata"
)

type recordingListener struct {
	mu     sync.Mutex
	events []EventKind
}

func (l *recordingListener) OnParticipantDiscovery(info ParticipantInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, info.Kind)
}

func (l *recordingListener) OnReaderDiscovery(ReaderInfo) {}
func (l *recordingListener) OnWriterDiscovery(WriterInfo) {}

func (l *recordingListener) snapshot() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]EventKind(nil), l.events...)
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	rec := &recordingListener{}
	d := New(rec, 8)
	defer d.Close()

	d.EmitParticipant(ParticipantInfo{Kind: Discovered})
	d.EmitParticipant(ParticipantInfo{Kind: ChangedQoS})
	d.EmitParticipant(ParticipantInfo{Kind: Removed})

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 3
	}, time.Second, time.Millisecond)

	assert.Equal(t, []EventKind{Discovered, ChangedQoS, Removed}, rec.snapshot())
}

type panickingListener struct{ called chan struct{} }

func (p panickingListener) OnParticipantDiscovery(ParticipantInfo) {
	defer close(p.called)
	panic("boom")
}
func (panickingListener) OnReaderDiscovery(ReaderInfo) {}
func (panickingListener) OnWriterDiscovery(WriterInfo) {}

func TestDispatcherRecoversFromPanickingListener(t *testing.T) {
	p := panickingListener{called: make(chan struct{})}
	d := New(p, 4)
	defer d.Close()

	d.EmitParticipant(ParticipantInfo{Kind: Discovered, Participant: proxydata.ParticipantSnapshot{}})

	select {
	case <-p.called:
	case <-time.After(time.Second):
		t.Fatal("listener was never invoked")
	}

	// The dispatcher goroutine must still be alive after a panic.
	d.EmitParticipant(ParticipantInfo{Kind: Removed})
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "DISCOVERED", Discovered.String())
	assert.Equal(t, "IGNORED", Ignored.String())
}
