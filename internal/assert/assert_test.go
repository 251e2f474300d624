package assert

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLength(t *testing.T) {
	require.NotPanics(t, func() { Length("code", "123456", 6) })
	require.PanicsWithValue(t, "assert.Length code: expected 6 actual 5", func() { Length("code", "12345", 6) })
}
