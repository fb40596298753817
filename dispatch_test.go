package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testBackendConfig(t *testing.T) Config {
	t.Helper()
	base := t.TempDir()
	return Config{
		DatabasePath: filepath.Join(base, "db"),
		SnapshotPath: filepath.Join(base, "snapshot"),
	}
}

func TestExecuteBenchmarkFullWorkload(t *testing.T) {
	dataset := simpleDataset(t)
	workloads := t.TempDir()
	writeWorkloadFile(t, workloads, "00_load_graph.json", map[string]any{
		"task_type": "LOAD_GRAPH",
	})
	writeWorkloadFile(t, workloads, "01_add_vertex.json", map[string]any{
		"task_type":   "ADD_VERTEX",
		"ops_count":   20,
		"parameters":  map[string]any{"count": 20},
		"batch_sizes": []int{1, 10},
	})
	writeWorkloadFile(t, workloads, "02_get_nbrs.json", map[string]any{
		"task_type":  "GET_NBRS",
		"parameters": map[string]any{"direction": "BOTH", "ids": []int64{1, 2, 3, 999}},
	})

	m := NewMemoryBackend(testBackendConfig(t))
	dispatcher := NewDispatcher(m, dataset, noopReporter())
	run, err := dispatcher.ExecuteBenchmark(workloads)
	require.Nil(t, err)
	require.Len(t, run.Results, 3)

	load := run.Results[0]
	require.Equal(t, TaskLoadGraph, load.TaskType)
	require.Equal(t, StatusSuccess, load.Status)
	require.Equal(t, 4, load.Load.Nodes)
	require.Equal(t, 4, load.Load.Edges)

	addVertex := run.Results[1]
	require.Equal(t, StatusSuccess, addVertex.Status)
	require.Len(t, addVertex.BatchResults, 2)
	require.Equal(t, 20, addVertex.BatchResults[0].OriginalOpsCount)
	require.Equal(t, 0, addVertex.BatchResults[0].FilteredOpsCount)

	getNbrs := run.Results[2]
	require.Equal(t, StatusSuccess, getNbrs.Status)
	require.Len(t, getNbrs.BatchResults, 1)
	require.Equal(t, 4, getNbrs.BatchResults[0].OriginalOpsCount)
	require.Equal(t, 3, getNbrs.BatchResults[0].ValidOpsCount)
	require.Equal(t, 1, getNbrs.BatchResults[0].FilteredOpsCount)
	require.Equal(t, 4, getNbrs.OpsCount)
}

func TestExecuteBenchmarkAbortsWhenLoadFails(t *testing.T) {
	workloads := t.TempDir()
	writeWorkloadFile(t, workloads, "00_load_graph.json", map[string]any{
		"task_type": "LOAD_GRAPH",
	})
	writeWorkloadFile(t, workloads, "01_add_vertex.json", map[string]any{
		"task_type":  "ADD_VERTEX",
		"parameters": map[string]any{"count": 10},
	})

	m := NewMemoryBackend(testBackendConfig(t))
	dispatcher := NewDispatcher(m, filepath.Join(t.TempDir(), "no-such-dataset"), noopReporter())
	run, err := dispatcher.ExecuteBenchmark(workloads)
	require.NotNil(t, err)
	require.True(t, errors.Is(err, ErrLoadFailed))
	require.NotNil(t, run)
	require.Len(t, run.Results, 1)
	require.Equal(t, StatusFailed, run.Results[0].Status)

	// The abort path still tears down: storage directories are removed.
	require.NoDirExists(t, m.DatabasePath())
	require.NoDirExists(t, m.SnapshotPath())
}

func TestExecuteBenchmarkSkipsUnrecognizedTask(t *testing.T) {
	workloads := t.TempDir()
	writeWorkloadFile(t, workloads, "00_load_graph.json", map[string]any{
		"task_type": "LOAD_GRAPH",
	})
	writeWorkloadFile(t, workloads, "01_mystery.json", map[string]any{
		"task_type": "SHORTEST_PATH",
	})

	m := NewMemoryBackend(testBackendConfig(t))
	dispatcher := NewDispatcher(m, simpleDataset(t), noopReporter())
	run, err := dispatcher.ExecuteBenchmark(workloads)
	require.Nil(t, err)
	require.Len(t, run.Results, 2)
	require.Equal(t, StatusSkipped, run.Results[1].Status)
	require.NotEmpty(t, run.Results[1].Message)
}

func TestExecuteBenchmarkSkipsPropertyTasksOnBareDataset(t *testing.T) {
	workloads := t.TempDir()
	writeWorkloadFile(t, workloads, "00_load_graph.json", map[string]any{
		"task_type": "LOAD_GRAPH",
	})
	writeWorkloadFile(t, workloads, "01_update_vertex_property.json", map[string]any{
		"task_type": "UPDATE_VERTEX_PROPERTY",
		"parameters": map[string]any{
			"updates": []map[string]any{{"id": 1, "properties": map[string]any{"name": "x"}}},
		},
	})

	m := NewMemoryBackend(testBackendConfig(t))
	dispatcher := NewDispatcher(m, simpleDataset(t), noopReporter())
	run, err := dispatcher.ExecuteBenchmark(workloads)
	require.Nil(t, err)
	require.Equal(t, StatusSkipped, run.Results[1].Status)
}

func TestExecuteBenchmarkRunsPropertyTasksWithColumns(t *testing.T) {
	workloads := t.TempDir()
	writeWorkloadFile(t, workloads, "00_load_graph.json", map[string]any{
		"task_type": "LOAD_GRAPH",
	})
	writeWorkloadFile(t, workloads, "01_update_vertex_property.json", map[string]any{
		"task_type": "UPDATE_VERTEX_PROPERTY",
		"parameters": map[string]any{
			"updates": []map[string]any{
				{"id": 1, "properties": map[string]any{"rank": 99}},
				{"id": 999, "properties": map[string]any{"rank": 1}},
			},
		},
	})
	writeWorkloadFile(t, workloads, "02_get_vertex_by_property.json", map[string]any{
		"task_type": "GET_VERTEX_BY_PROPERTY",
		"parameters": map[string]any{
			"queries": []map[string]any{{"key": "name", "value": "alpha"}},
		},
	})

	m := NewMemoryBackend(testBackendConfig(t))
	dispatcher := NewDispatcher(m, propertyDataset(t), noopReporter())
	run, err := dispatcher.ExecuteBenchmark(workloads)
	require.Nil(t, err)
	require.Len(t, run.Results, 3)

	update := run.Results[1]
	require.Equal(t, StatusSuccess, update.Status)
	require.Equal(t, 2, update.BatchResults[0].OriginalOpsCount)
	require.Equal(t, 1, update.BatchResults[0].FilteredOpsCount)

	query := run.Results[2]
	require.Equal(t, StatusSuccess, query.Status)
	require.Equal(t, 1, query.BatchResults[0].ValidOpsCount)
}

func TestExecuteBenchmarkFailsTaskOnUnparsableFile(t *testing.T) {
	workloads := t.TempDir()
	writeWorkloadFile(t, workloads, "00_load_graph.json", map[string]any{
		"task_type": "LOAD_GRAPH",
	})
	require.Nil(t, os.WriteFile(filepath.Join(workloads, "01_broken.json"), []byte("{not json"), 0o644))

	m := NewMemoryBackend(testBackendConfig(t))
	dispatcher := NewDispatcher(m, simpleDataset(t), noopReporter())
	run, err := dispatcher.ExecuteBenchmark(workloads)
	require.Nil(t, err)
	require.Len(t, run.Results, 2)
	require.Equal(t, StatusFailed, run.Results[1].Status)
	require.Equal(t, "UNKNOWN", run.Results[1].TaskType)
}

func TestExecuteBenchmarkFailsWithoutWorkloadFiles(t *testing.T) {
	m := NewMemoryBackend(testBackendConfig(t))
	dispatcher := NewDispatcher(m, simpleDataset(t), noopReporter())
	_, err := dispatcher.ExecuteBenchmark(t.TempDir())
	require.NotNil(t, err)
	require.False(t, errors.Is(err, ErrLoadFailed))
	// The backend was never touched: its storage directory was not created.
	require.NoDirExists(t, m.DatabasePath())
}

func TestExecuteBenchmarkUnreachableCallbackDoesNotFailRun(t *testing.T) {
	workloads := t.TempDir()
	writeWorkloadFile(t, workloads, "00_load_graph.json", map[string]any{
		"task_type": "LOAD_GRAPH",
	})

	m := NewMemoryBackend(testBackendConfig(t))
	dispatcher := NewDispatcher(m, simpleDataset(t), NewProgressReporter("http://127.0.0.1:1/unreachable"))
	run, err := dispatcher.ExecuteBenchmark(workloads)
	require.Nil(t, err)
	require.Equal(t, StatusSuccess, run.Results[0].Status)
}
