package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotRestoreResetsState(t *testing.T) {
	m := loadedMemoryBackend(t, simpleDataset(t))
	snapshots := NewSnapshotController(m)
	require.Nil(t, snapshots.Snapshot())
	baseline := m.VertexCount()

	_, err := m.AddVertex(10, 5)
	require.Nil(t, err)
	require.Equal(t, baseline+10, m.VertexCount())

	require.Nil(t, snapshots.Restore())
	require.Equal(t, baseline, m.VertexCount())

	// The origin mapping survives the restore cycle.
	_, ok := m.SystemID(1)
	require.True(t, ok)
}

func TestSnapshotFailsWithoutDatabaseDirectory(t *testing.T) {
	m := NewMemoryBackend(Config{
		DatabasePath: t.TempDir() + "/missing-db",
		SnapshotPath: t.TempDir() + "/snapshot",
	})
	require.NotNil(t, NewSnapshotController(m).Snapshot())
}

func TestRestoreFailsWithoutSnapshot(t *testing.T) {
	m := loadedMemoryBackend(t, simpleDataset(t))
	require.NotNil(t, NewSnapshotController(m).Restore())

	// The failure leaves the backend handle open and usable.
	_, err := m.AddVertex(1, 1)
	require.Nil(t, err)
	require.Equal(t, 5, m.VertexCount())
}
