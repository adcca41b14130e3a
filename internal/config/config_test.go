package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizedClampsNonPositiveInitialPeriod(t *testing.T) {
	d := DiscoveryConfig{InitialAnnouncementsPeriod: 0}
	assert.Equal(t, time.Millisecond, d.Normalized().InitialAnnouncementsPeriod)

	d = DiscoveryConfig{InitialAnnouncementsPeriod: -5 * time.Second}
	assert.Equal(t, time.Millisecond, d.Normalized().InitialAnnouncementsPeriod)

	d = DiscoveryConfig{InitialAnnouncementsPeriod: 100 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, d.Normalized().InitialAnnouncementsPeriod)
}

func TestNewLocalIdentityAssignsDistinctPrefixes(t *testing.T) {
	a := NewLocalIdentity("host-a")
	b := NewLocalIdentity("host-b")

	assert.Equal(t, "host-a", a.Name)
	assert.NotEqual(t, a.GUIDPrefix, b.GUIDPrefix)
}
