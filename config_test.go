package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringEnv(t *testing.T) {
	t.Setenv("GRAPH_BENCHMARK_TEST_STRING", "value")
	require.Equal(t, "value", StringEnv("GRAPH_BENCHMARK_TEST_STRING", "default"))
	require.Equal(t, "default", StringEnv("GRAPH_BENCHMARK_TEST_UNSET", "default"))
}

func TestIntEnv(t *testing.T) {
	t.Setenv("GRAPH_BENCHMARK_TEST_INT", "8080")
	require.Equal(t, 8080, IntEnv("GRAPH_BENCHMARK_TEST_INT", 1))
	require.Equal(t, 1, IntEnv("GRAPH_BENCHMARK_TEST_UNSET", 1))

	t.Setenv("GRAPH_BENCHMARK_TEST_INT", "not-a-number")
	require.Equal(t, 1, IntEnv("GRAPH_BENCHMARK_TEST_INT", 1))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()
	require.Equal(t, "memory", cfg.Backend)
	require.Equal(t, 50080, cfg.Port)
	require.Equal(t, "sqlite3", cfg.SQLDriver)
}
