package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// A dataset is a directory holding nodes.csv ("id" plus optional property
// columns) and edges.csv ("src,dst" plus optional property columns). Property
// values stay strings; backends convert what they store.
type DatasetMeta struct {
	NodeProperties []string
	EdgeProperties []string
}

type NodeFunc func(id int64, properties map[string]string) error
type EdgeFunc func(src, dst int64, properties map[string]string) error

func ReadDatasetHeaders(datasetPath string) (DatasetMeta, error) {
	meta := DatasetMeta{}
	nodeHeader, err := readHeader(filepath.Join(datasetPath, "nodes.csv"))
	if err != nil {
		return meta, err
	}
	edgeHeader, err := readHeader(filepath.Join(datasetPath, "edges.csv"))
	if err != nil {
		return meta, err
	}
	if len(nodeHeader) < 1 || nodeHeader[0] != "id" {
		return meta, fmt.Errorf("nodes.csv must start with an id column, got %v", nodeHeader)
	}
	if len(edgeHeader) < 2 || edgeHeader[0] != "src" || edgeHeader[1] != "dst" {
		return meta, fmt.Errorf("edges.csv must start with src,dst columns, got %v", edgeHeader)
	}
	meta.NodeProperties = nodeHeader[1:]
	meta.EdgeProperties = edgeHeader[2:]
	return meta, nil
}

// ReadDataset streams every node and then every edge to the callbacks, so
// backends can load arbitrarily large graphs without materializing them.
func ReadDataset(datasetPath string, nodeFn NodeFunc, edgeFn EdgeFunc) (DatasetMeta, error) {
	meta, err := ReadDatasetHeaders(datasetPath)
	if err != nil {
		return meta, err
	}
	err = readRecords(filepath.Join(datasetPath, "nodes.csv"), func(record []string) error {
		id, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid node id %q: %w", record[0], err)
		}
		return nodeFn(id, zipProperties(meta.NodeProperties, record[1:]))
	})
	if err != nil {
		return meta, err
	}
	err = readRecords(filepath.Join(datasetPath, "edges.csv"), func(record []string) error {
		src, err := strconv.ParseInt(record[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid edge src %q: %w", record[0], err)
		}
		dst, err := strconv.ParseInt(record[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid edge dst %q: %w", record[1], err)
		}
		return edgeFn(src, dst, zipProperties(meta.EdgeProperties, record[2:]))
	})
	return meta, err
}

func readHeader(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file %v: %w", path, err)
	}
	defer file.Close()
	header, err := csv.NewReader(file).Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %v: %w", path, err)
	}
	return header, nil
}

func readRecords(path string, fn func(record []string) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open dataset file %v: %w", path, err)
	}
	defer file.Close()
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	if _, err := reader.Read(); err != nil {
		return fmt.Errorf("failed to read header of %v: %w", path, err)
	}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read record from %v: %w", path, err)
		}
		if err := fn(record); err != nil {
			return err
		}
	}
}

func zipProperties(keys []string, values []string) map[string]string {
	if len(keys) == 0 {
		return nil
	}
	properties := make(map[string]string, len(keys))
	for i, key := range keys {
		if i < len(values) {
			properties[key] = values[i]
		}
	}
	return properties
}
