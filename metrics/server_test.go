package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfig_Check(t *testing.T) {
	require.NoError(t, Config{Enabled: false, Port: -1}.Check())
	require.NoError(t, Config{Enabled: true, Port: 7300}.Check())
	require.ErrorIs(t, Config{Enabled: true, Port: -1}.Check(), ErrInvalidPort)
	require.ErrorIs(t, Config{Enabled: true, Port: 70000}.Check(), ErrInvalidPort)
}
