package main

import (
	"fmt"
	"strings"
	"time"
)

// SystemID is the backend-assigned identifier of a vertex. It is produced
// during graph load, carried through translation and trial execution
// untouched, and interpreted only by the backend that issued it.
type SystemID string

type EdgePair struct {
	Src SystemID
	Dst SystemID
}

type VertexUpdate struct {
	ID         SystemID
	Properties map[string]any
}

type EdgeUpdate struct {
	Src        SystemID
	Dst        SystemID
	Properties map[string]any
}

type PropertyQuery struct {
	Key   string
	Value any
}

type LoadStats struct {
	Nodes           int      `json:"nodes"`
	Edges           int      `json:"edges"`
	DurationSeconds float64  `json:"duration_seconds"`
	NodeProperties  []string `json:"node_properties,omitempty"`
	EdgeProperties  []string `json:"edge_properties,omitempty"`
}

// Executor is the required capability set every backend adapter implements.
//
// Batched operations take pre-translated system ids and a batch size, and
// return one average per-operation latency (microseconds) per executed batch:
// for n operations and batch size b the slice has ceil(n/b) entries. Failures
// of individual operations inside a batch are absorbed by the adapter and
// tallied in its error counter; a returned error means the whole task cannot
// proceed (closed handle, lost connection) and fails the task.
type Executor interface {
	Name() string

	InitDatabase() error
	Shutdown() error
	OpenDatabase() error
	CloseDatabase() error
	DatabasePath() string
	SnapshotPath() string

	LoadGraph(datasetPath string) (LoadStats, error)
	AddVertex(count int, batchSize int) ([]float64, error)
	RemoveVertex(ids []SystemID, batchSize int) ([]float64, error)
	AddEdge(label string, pairs []EdgePair, batchSize int) ([]float64, error)
	RemoveEdge(label string, pairs []EdgePair, batchSize int) ([]float64, error)
	GetNbrs(direction string, ids []SystemID, batchSize int) ([]float64, error)

	// SystemID reports the system id assigned to an origin id during load.
	// Unknown origin ids return ok=false, never an error.
	SystemID(origin int64) (SystemID, bool)

	ErrorCount() int
	ResetErrorCount()
}

// PropertyExecutor is the optional extended capability set for backends that
// store vertex/edge properties.
type PropertyExecutor interface {
	Executor

	UpdateVertexProperty(updates []VertexUpdate, batchSize int) ([]float64, error)
	UpdateEdgeProperty(label string, updates []EdgeUpdate, batchSize int) ([]float64, error)
	GetVertexByProperty(queries []PropertyQuery, batchSize int) ([]float64, error)
	GetEdgeByProperty(label string, queries []PropertyQuery, batchSize int) ([]float64, error)
}

type ExecutorFactory func(cfg Config) (Executor, error)

// Registry maps backend names to factories. It is built explicitly at process
// start and injected where needed, so tests can assemble their own.
type Registry struct {
	factories map[string]ExecutorFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ExecutorFactory)}
}

func (r *Registry) Register(name string, factory ExecutorFactory) {
	r.factories[name] = factory
}

func (r *Registry) Open(name string, cfg Config) (Executor, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown backend type %q, available: %v", name, r.Names())
	}
	return factory(cfg)
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// normalizeDirection maps the task-file direction spelling to traversal
// sides. Anything unrecognized means both directions.
func normalizeDirection(direction string) (outgoing bool, incoming bool) {
	switch strings.ToUpper(direction) {
	case "OUT", "OUTGOING":
		return true, false
	case "IN", "INCOMING":
		return false, true
	default:
		return true, true
	}
}

// batchLatencies drives a batched operation over n logical operations: one
// run call per batch, timed, with the average per-operation latency in
// microseconds recorded per batch. A batch that fails as a whole is still
// timed and still contributes a sample; onError receives its operation count.
func batchLatencies(n int, batchSize int, run func(lo, hi int) error, onError func(ops int)) []float64 {
	latencies := make([]float64, 0, (n+batchSize-1)/batchSize)
	for lo := 0; lo < n; lo += batchSize {
		hi := min(lo+batchSize, n)
		start := time.Now()
		err := run(lo, hi)
		elapsed := time.Since(start)
		if err != nil {
			onError(hi - lo)
		}
		latencies = append(latencies, float64(elapsed.Nanoseconds())/1e3/float64(hi-lo))
	}
	return latencies
}
