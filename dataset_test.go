package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadDatasetHeaders(t *testing.T) {
	dir := propertyDataset(t)
	meta, err := ReadDatasetHeaders(dir)
	require.Nil(t, err)
	require.Equal(t, []string{"name", "rank"}, meta.NodeProperties)
	require.Equal(t, []string{"weight"}, meta.EdgeProperties)
}

func TestReadDatasetHeadersRejectsBadColumns(t *testing.T) {
	dir := writeDataset(t, "node_id\n1\n", "src,dst\n1,1\n")
	_, err := ReadDatasetHeaders(dir)
	require.NotNil(t, err)

	dir = writeDataset(t, "id\n1\n", "from,to\n1,1\n")
	_, err = ReadDatasetHeaders(dir)
	require.NotNil(t, err)
}

func TestReadDatasetStreamsRecords(t *testing.T) {
	dir := propertyDataset(t)
	nodes := map[int64]map[string]string{}
	edges := 0
	meta, err := ReadDataset(dir,
		func(id int64, properties map[string]string) error {
			nodes[id] = properties
			return nil
		},
		func(src, dst int64, properties map[string]string) error {
			edges++
			require.NotEmpty(t, properties["weight"])
			return nil
		})
	require.Nil(t, err)
	require.Equal(t, []string{"name", "rank"}, meta.NodeProperties)
	require.Len(t, nodes, 3)
	require.Equal(t, "alpha", nodes[1]["name"])
	require.Equal(t, "30", nodes[3]["rank"])
	require.Equal(t, 2, edges)
}

func TestReadDatasetMissingFiles(t *testing.T) {
	_, err := ReadDataset(t.TempDir(), nil, nil)
	require.NotNil(t, err)
}
