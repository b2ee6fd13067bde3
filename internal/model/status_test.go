package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusTranslating, StatusTranslated, StatusFailed, StatusApproved} {
		require.True(t, s.Valid(), s)
	}
	require.False(t, Status("DONE").Valid())
	require.False(t, Status("").Valid())
}

func TestStatusTerminal(t *testing.T) {
	require.True(t, StatusTranslated.Terminal())
	// FAILED rows stay claimable, so they are not terminal.
	require.False(t, StatusFailed.Terminal())
	require.False(t, StatusPending.Terminal())
	require.False(t, StatusTranslating.Terminal())
}
