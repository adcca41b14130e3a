package rtpsid

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocatorSetCapacity(t *testing.T) {
	s := NewLocatorSet(2)
	assert.True(t, s.Add(NewUDPv4Locator(net.IPv4(1, 2, 3, 4), 7400)))
	assert.True(t, s.Add(NewUDPv4Locator(net.IPv4(1, 2, 3, 5), 7401)))
	assert.False(t, s.Add(NewUDPv4Locator(net.IPv4(1, 2, 3, 6), 7402)))
	assert.Len(t, s.Items(), 2)
}

func TestLocatorSetSetTruncates(t *testing.T) {
	s := NewLocatorSet(1)
	s.Set([]Locator{
		NewUDPv4Locator(net.IPv4(1, 1, 1, 1), 1),
		NewUDPv4Locator(net.IPv4(2, 2, 2, 2), 2),
	})
	assert.Len(t, s.Items(), 1)
}

func TestLocatorSetClear(t *testing.T) {
	s := NewLocatorSet(2)
	s.Add(NewUDPv4Locator(net.IPv4(1, 1, 1, 1), 1))
	s.Clear()
	assert.Empty(t, s.Items())
	assert.Equal(t, 2, s.Cap())
}
