package runtimevalue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryLookupFindsRegisteredKey(t *testing.T) {
	r := NewCoreRegistry()

	k, err := r.Lookup("SeatId")
	require.NoError(t, err)
	require.Equal(t, "SHINYPROXY_SEAT_ID", k.EnvVarName())
	require.False(t, k.IncludeInAPI())
}

func TestRegistryLookupUnknownKeyFails(t *testing.T) {
	r := NewCoreRegistry()

	_, err := r.Lookup("NotARealKey")
	require.Error(t, err)
}

func TestRegistryRegisterDuplicatePanics(t *testing.T) {
	r := NewCoreRegistry()

	require.Panics(t, func() {
		r.Register(SeatId)
	})
}

func TestBoolCodecRoundTrips(t *testing.T) {
	encoded := BoolCodec.Encode(true)
	require.Equal(t, "true", encoded)

	decoded, err := BoolCodec.Decode(encoded)
	require.NoError(t, err)
	require.True(t, decoded)

	_, err = BoolCodec.Decode("nonsense")
	require.Error(t, err)
}
