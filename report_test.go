package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewBenchmarkRun(t *testing.T) {
	run := NewBenchmarkRun("memory", "/data/datasets/delaunay_n13", "insert_heavy")
	require.NotEmpty(t, run.RunID)
	require.Equal(t, "memory", run.Database)
	require.Equal(t, "delaunay_n13", run.Dataset)
	require.Equal(t, "insert_heavy", run.Workload)
	require.NotEmpty(t, run.Timestamp)
	require.Empty(t, run.Results)

	run.Append(TaskResult{TaskType: TaskLoadGraph, Status: StatusSuccess})
	require.Len(t, run.Results, 1)
}

func TestDatasetName(t *testing.T) {
	require.Equal(t, "roadNet-CA", datasetName("/data/datasets/roadNet-CA.mtx"))
	require.Equal(t, "delaunay_n13", datasetName("/data/datasets/delaunay_n13/"))
	require.Equal(t, ".hidden", datasetName(".hidden"))
}
