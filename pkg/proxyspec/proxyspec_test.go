package proxyspec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSupportsSharingRequiresMinimumSeatsAvailable(t *testing.T) {
	require.False(t, SupportsSharing(&Spec{ID: "s1"}))
	require.False(t, SupportsSharing(&Spec{ID: "s1", Sharing: &SharingExtension{}}))

	min := 2
	require.True(t, SupportsSharing(&Spec{ID: "s1", Sharing: &SharingExtension{MinimumSeatsAvailable: &min}}))
}
