package connectors

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePermissionListJSONArray(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, ParsePermissionList(`["a","b"]`))
}

func TestParsePermissionListPythonLiteral(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, ParsePermissionList(`['a', 'b']`))
}

func TestParsePermissionListCommaSeparated(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, ParsePermissionList("a, b,c"))
}

func TestParsePermissionListSemicolonSeparated(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, ParsePermissionList("a; b"))
}

func TestParsePermissionListEmpty(t *testing.T) {
	require.Nil(t, ParsePermissionList(""))
}
