package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	TaskLoadGraph           = "LOAD_GRAPH"
	TaskAddVertex           = "ADD_VERTEX"
	TaskRemoveVertex        = "REMOVE_VERTEX"
	TaskAddEdge             = "ADD_EDGE"
	TaskRemoveEdge          = "REMOVE_EDGE"
	TaskGetNbrs             = "GET_NBRS"
	TaskUpdateVertexProp    = "UPDATE_VERTEX_PROPERTY"
	TaskUpdateEdgeProp      = "UPDATE_EDGE_PROPERTY"
	TaskGetVertexByProperty = "GET_VERTEX_BY_PROPERTY"
	TaskGetEdgeByProperty   = "GET_EDGE_BY_PROPERTY"
)

// WorkloadTask is one declarative unit of benchmark work, read from a single
// JSON file. Parameters stay raw until the dispatcher knows the task type.
type WorkloadTask struct {
	TaskType   string          `json:"task_type"`
	OpsCount   int             `json:"ops_count"`
	Parameters json.RawMessage `json:"parameters"`
	BatchSizes []int           `json:"batch_sizes"`
}

type OriginPair struct {
	Src int64 `json:"src"`
	Dst int64 `json:"dst"`
}

type OriginVertexUpdate struct {
	ID         int64          `json:"id"`
	Properties map[string]any `json:"properties"`
}

type OriginEdgeUpdate struct {
	Src        int64          `json:"src"`
	Dst        int64          `json:"dst"`
	Properties map[string]any `json:"properties"`
}

type RawPropertyQuery struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type CountParams struct {
	Count int `json:"count"`
}

type IDListParams struct {
	IDs []int64 `json:"ids"`
}

type EdgeParams struct {
	Label string       `json:"label"`
	Pairs []OriginPair `json:"pairs"`
}

type NbrsParams struct {
	Direction string  `json:"direction"`
	IDs       []int64 `json:"ids"`
}

type VertexUpdateParams struct {
	Updates []OriginVertexUpdate `json:"updates"`
}

type EdgeUpdateParams struct {
	Label   string             `json:"label"`
	Updates []OriginEdgeUpdate `json:"updates"`
}

type QueryParams struct {
	Label   string             `json:"label"`
	Queries []RawPropertyQuery `json:"queries"`
}

func ReadWorkloadTask(path string) (WorkloadTask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WorkloadTask{}, fmt.Errorf("failed to read workload file %v: %w", path, err)
	}
	var task WorkloadTask
	if err := json.Unmarshal(data, &task); err != nil {
		return WorkloadTask{}, fmt.Errorf("failed to parse workload file %v: %w", path, err)
	}
	if task.TaskType == "" {
		return WorkloadTask{}, fmt.Errorf("workload file %v has no task_type", path)
	}
	if len(task.BatchSizes) == 0 {
		task.BatchSizes = []int{1}
	}
	for _, size := range task.BatchSizes {
		if size <= 0 {
			return WorkloadTask{}, fmt.Errorf("workload file %v has non-positive batch size %v", path, size)
		}
	}
	return task, nil
}

// ListWorkloadFiles enumerates the .json task files of a workload directory in
// filename order. The sort order is the execution order.
func ListWorkloadFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read workload directory %v: %w", dir, err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no workload files found in %v", dir)
	}
	sort.Strings(files)
	return files, nil
}

// WorkloadName extracts the workload label from a directory name like
// "neo4j_delaunay_n13": the token after the second-to-last underscore.
func WorkloadName(dir string) string {
	name := filepath.Base(filepath.Clean(dir))
	parts := strings.Split(name, "_")
	if len(parts) >= 3 {
		return strings.Join(parts[len(parts)-2:], "_")
	}
	return "unknown"
}
