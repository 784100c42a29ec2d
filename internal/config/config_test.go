package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultHasDefaultContainer(t *testing.T) {
	cfg := Default()
	require.Equal(t, DefaultContainerName, cfg.ActiveContainer)
	require.Contains(t, cfg.Containers, DefaultContainerName)
}

func TestTableNameSanitizes(t *testing.T) {
	require.Equal(t, "c_myproject", TableName("myproject"))
	require.Equal(t, "c_a_b-c.d", TableName("a_b-c.d"))
	require.NotEqual(t, TableName("a b"), "c_a b")
	require.Contains(t, TableName("a b"), "0020")
}
