package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeDataset(t *testing.T, nodes string, edges string) string {
	t.Helper()
	dir := t.TempDir()
	require.Nil(t, os.WriteFile(filepath.Join(dir, "nodes.csv"), []byte(nodes), 0o644))
	require.Nil(t, os.WriteFile(filepath.Join(dir, "edges.csv"), []byte(edges), 0o644))
	return dir
}

func simpleDataset(t *testing.T) string {
	t.Helper()
	return writeDataset(t,
		"id\n1\n2\n3\n4\n",
		"src,dst\n1,2\n2,3\n3,4\n4,1\n")
}

func propertyDataset(t *testing.T) string {
	t.Helper()
	return writeDataset(t,
		"id,name,rank\n1,alpha,10\n2,beta,20\n3,gamma,30\n",
		"src,dst,weight\n1,2,0.5\n2,3,0.7\n")
}

func newTestMemoryBackend(t *testing.T) *MemoryBackend {
	t.Helper()
	base := t.TempDir()
	m := NewMemoryBackend(Config{
		DatabasePath: filepath.Join(base, "db"),
		SnapshotPath: filepath.Join(base, "snapshot"),
	})
	require.Nil(t, m.InitDatabase())
	return m
}

func loadedMemoryBackend(t *testing.T, datasetPath string) *MemoryBackend {
	t.Helper()
	m := newTestMemoryBackend(t)
	_, err := m.LoadGraph(datasetPath)
	require.Nil(t, err)
	return m
}

func writeWorkloadFile(t *testing.T, dir string, name string, task map[string]any) {
	t.Helper()
	data, err := json.Marshal(task)
	require.Nil(t, err)
	require.Nil(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func noopReporter() *ProgressReporter {
	return NewProgressReporter("")
}
