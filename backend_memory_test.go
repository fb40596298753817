package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryBackendPersistenceRoundTrip(t *testing.T) {
	m := loadedMemoryBackend(t, simpleDataset(t))
	id1, ok := m.SystemID(1)
	require.True(t, ok)

	require.Nil(t, m.CloseDatabase())
	require.Nil(t, m.OpenDatabase())

	reloaded, ok := m.SystemID(1)
	require.True(t, ok)
	require.Equal(t, id1, reloaded)
	require.Equal(t, 4, m.VertexCount())
}

func TestMemoryBackendOpenFailsWithoutState(t *testing.T) {
	m := newTestMemoryBackend(t)
	require.NotNil(t, m.OpenDatabase())
}

func TestMemoryBackendOperationsFailWhenClosed(t *testing.T) {
	m := loadedMemoryBackend(t, simpleDataset(t))
	require.Nil(t, m.CloseDatabase())
	_, err := m.AddVertex(1, 1)
	require.NotNil(t, err)
}

func TestMemoryBackendRemoveVertexDropsEdges(t *testing.T) {
	m := loadedMemoryBackend(t, simpleDataset(t))
	id2, _ := m.SystemID(2)

	_, err := m.RemoveVertex([]SystemID{id2}, 1)
	require.Nil(t, err)
	require.Equal(t, 3, m.VertexCount())
	require.Equal(t, 0, m.ErrorCount())

	// The ring 1->2->3->4->1 loses both edges touching vertex 2.
	id1, _ := m.SystemID(1)
	id3, _ := m.SystemID(3)
	require.Nil(t, m.graph.Out[id1][id2])
	require.False(t, m.in[id3][id2])
}

func TestMemoryBackendCountsMissingTargets(t *testing.T) {
	m := loadedMemoryBackend(t, simpleDataset(t))
	id1, _ := m.SystemID(1)

	_, err := m.RemoveVertex([]SystemID{"ghost"}, 1)
	require.Nil(t, err)
	require.Equal(t, 1, m.ErrorCount())

	_, err = m.AddEdge("knows", []EdgePair{{Src: id1, Dst: "ghost"}}, 1)
	require.Nil(t, err)
	require.Equal(t, 2, m.ErrorCount())

	m.ResetErrorCount()
	require.Equal(t, 0, m.ErrorCount())
}

func TestMemoryBackendRemoveEdgeIgnoresLabel(t *testing.T) {
	m := loadedMemoryBackend(t, simpleDataset(t))
	id1, _ := m.SystemID(1)
	id2, _ := m.SystemID(2)

	_, err := m.RemoveEdge("follows", []EdgePair{{Src: id1, Dst: id2}}, 1)
	require.Nil(t, err)
	require.Equal(t, 0, m.ErrorCount())
	require.Nil(t, m.graph.Out[id1][id2])

	_, err = m.RemoveEdge("follows", []EdgePair{{Src: id1, Dst: id2}}, 1)
	require.Nil(t, err)
	require.Equal(t, 1, m.ErrorCount())
}

func TestMemoryBackendDirectionalNeighbors(t *testing.T) {
	m := loadedMemoryBackend(t, simpleDataset(t))
	id1, _ := m.SystemID(1)
	id2, _ := m.SystemID(2)

	require.Len(t, m.graph.Out[id2], 1)
	require.True(t, m.in[id2][id1])

	for _, direction := range []string{"OUT", "IN", "BOTH", ""} {
		latencies, err := m.GetNbrs(direction, []SystemID{id1, id2}, 2)
		require.Nil(t, err)
		require.Len(t, latencies, 1)
	}
	require.Equal(t, 0, m.ErrorCount())
}

func TestMemoryBackendPropertyOperations(t *testing.T) {
	m := loadedMemoryBackend(t, propertyDataset(t))
	id1, _ := m.SystemID(1)
	id2, _ := m.SystemID(2)

	_, err := m.UpdateVertexProperty([]VertexUpdate{
		{ID: id1, Properties: map[string]any{"rank": 99}},
	}, 1)
	require.Nil(t, err)
	require.Equal(t, 99, m.graph.Vertices[id1].Properties["rank"])

	_, err = m.UpdateEdgeProperty("edge", []EdgeUpdate{
		{Src: id1, Dst: id2, Properties: map[string]any{"weight": 0.9}},
	}, 1)
	require.Nil(t, err)
	require.Equal(t, 0.9, m.graph.Out[id1][id2].Properties["weight"])

	_, err = m.GetVertexByProperty([]PropertyQuery{{Key: "name", Value: "alpha"}}, 1)
	require.Nil(t, err)
	_, err = m.GetEdgeByProperty("edge", []PropertyQuery{{Key: "weight", Value: "0.7"}}, 1)
	require.Nil(t, err)
	require.Equal(t, 0, m.ErrorCount())
}

func TestPropertyEquals(t *testing.T) {
	require.True(t, propertyEquals("10", 10))
	require.True(t, propertyEquals("alpha", "alpha"))
	require.False(t, propertyEquals(nil, "alpha"))
	require.False(t, propertyEquals("10", 11))
}
