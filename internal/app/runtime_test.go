package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInTestModeTracksEnvironment(t *testing.T) {
	require.True(t, InTestMode())

	t.Setenv(testModeEnv, "0")
	require.False(t, InTestMode())

	t.Setenv(testModeEnv, "1")
	require.True(t, InTestMode())
}
