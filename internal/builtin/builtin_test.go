package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryAddChangeEvictsOldestAtCapacity(t *testing.T) {
	h := NewHistory(2)
	h.AddChange(&CacheChange{SequenceNumber: 1})
	h.AddChange(&CacheChange{SequenceNumber: 2})
	h.AddChange(&CacheChange{SequenceNumber: 3})

	got := h.Changes()
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].SequenceNumber)
	assert.Equal(t, int64(3), got[1].SequenceNumber)
}

func TestHistoryRemoveMinChangeOnEmptyIsSafe(t *testing.T) {
	h := NewHistory(0)
	_, ok := h.RemoveMinChange()
	assert.False(t, ok)
}

func TestHistoryRemoveByInstanceKey(t *testing.T) {
	h := NewHistory(0)
	key := [16]byte{1}
	h.AddChange(&CacheChange{InstanceKey: key, SequenceNumber: 1})
	h.AddChange(&CacheChange{InstanceKey: [16]byte{2}, SequenceNumber: 2})

	assert.True(t, h.RemoveByInstanceKey(key))
	assert.False(t, h.RemoveByInstanceKey(key))

	got := h.Changes()
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].SequenceNumber)
}

func TestWriterNewChangeAssignsIncreasingSequenceNumbers(t *testing.T) {
	w := NewWriter(0)
	c1 := w.NewChange(Alive, [16]byte{}, nil)
	c2 := w.NewChange(Alive, [16]byte{}, nil)
	assert.Less(t, c1.SequenceNumber, c2.SequenceNumber)
}

func TestReaderDeliverInvokesCallback(t *testing.T) {
	r := NewReader(4)
	var got *CacheChange
	r.SetCallback(func(c *CacheChange) { got = c })

	change := &CacheChange{Kind: NotAliveDisposedUnregistered}
	r.Deliver(change)

	require.NotNil(t, got)
	assert.Equal(t, NotAliveDisposedUnregistered, got.Kind)
	assert.Len(t, r.History.Changes(), 1)
}
