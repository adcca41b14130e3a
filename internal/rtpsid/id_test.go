package rtpsid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGUIDInstanceKeyRoundTrip(t *testing.T) {
	prefix, err := NewGUIDPrefix([]byte("123456789012"))
	require.NoError(t, err)
	guid := GUID{Prefix: prefix, Entity: EntityIDParticipant}

	key := guid.InstanceKey()
	back := GUIDFromInstanceKey(key)

	assert.Equal(t, guid, back)
}

func TestNewGUIDPrefixRejectsWrongLength(t *testing.T) {
	_, err := NewGUIDPrefix([]byte("short"))
	assert.Error(t, err)
}

func TestGUIDIsUnknown(t *testing.T) {
	var g GUID
	assert.True(t, g.IsUnknown())

	prefix, err := NewGUIDPrefix([]byte("123456789012"))
	require.NoError(t, err)
	g = ParticipantGUID(prefix)
	assert.False(t, g.IsUnknown())
}

func TestEntityIDIsBuiltin(t *testing.T) {
	assert.True(t, EntityIDSPDPParticipantWriter.IsBuiltin())
	assert.False(t, EntityID(0x00000103).IsBuiltin())
}
