package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const memoryGraphFile = "graph.json"

type memEdge struct {
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties,omitempty"`
}

type memVertex struct {
	Properties map[string]any `json:"properties,omitempty"`
}

// memGraph is the serializable state of the in-process backend. The incoming
// adjacency is rebuilt on open instead of persisted.
type memGraph struct {
	NextID   int64                              `json:"next_id"`
	Origins  map[int64]SystemID                 `json:"origins"`
	Vertices map[SystemID]*memVertex            `json:"vertices"`
	Out      map[SystemID]map[SystemID]*memEdge `json:"out"`
}

func newMemGraph() *memGraph {
	return &memGraph{
		NextID:   1,
		Origins:  make(map[int64]SystemID),
		Vertices: make(map[SystemID]*memVertex),
		Out:      make(map[SystemID]map[SystemID]*memEdge),
	}
}

// MemoryBackend is an in-process graph store that persists its whole state as
// a single file under the database path on close. Directory snapshot/restore
// therefore resets it exactly like a file-backed database, which makes it the
// reference adapter for trial-isolation behavior.
type MemoryBackend struct {
	dbPath       string
	snapshotPath string

	open       bool
	errorCount int
	graph      *memGraph
	in         map[SystemID]map[SystemID]bool
}

func NewMemoryBackend(cfg Config) *MemoryBackend {
	return &MemoryBackend{
		dbPath:       cfg.DatabasePath,
		snapshotPath: cfg.SnapshotPath,
	}
}

func (m *MemoryBackend) Name() string         { return "memory" }
func (m *MemoryBackend) DatabasePath() string { return m.dbPath }
func (m *MemoryBackend) SnapshotPath() string { return m.snapshotPath }
func (m *MemoryBackend) ErrorCount() int      { return m.errorCount }
func (m *MemoryBackend) ResetErrorCount()     { m.errorCount = 0 }

func (m *MemoryBackend) InitDatabase() error {
	if err := os.RemoveAll(m.dbPath); err != nil {
		return fmt.Errorf("failed to clean database directory %v: %w", m.dbPath, err)
	}
	if err := os.MkdirAll(m.dbPath, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory %v: %w", m.dbPath, err)
	}
	m.graph = newMemGraph()
	m.in = make(map[SystemID]map[SystemID]bool)
	m.errorCount = 0
	m.open = true
	Logger.Infof("memory backend initialized at %v", m.dbPath)
	return nil
}

func (m *MemoryBackend) Shutdown() error {
	return m.CloseDatabase()
}

func (m *MemoryBackend) CloseDatabase() error {
	if !m.open {
		return nil
	}
	data, err := json.Marshal(m.graph)
	if err != nil {
		return fmt.Errorf("failed to encode graph state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.dbPath, memoryGraphFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to persist graph state: %w", err)
	}
	m.open = false
	return nil
}

func (m *MemoryBackend) OpenDatabase() error {
	data, err := os.ReadFile(filepath.Join(m.dbPath, memoryGraphFile))
	if err != nil {
		return fmt.Errorf("failed to read graph state: %w", err)
	}
	graph := newMemGraph()
	if err := json.Unmarshal(data, graph); err != nil {
		return fmt.Errorf("failed to decode graph state: %w", err)
	}
	m.graph = graph
	m.in = make(map[SystemID]map[SystemID]bool)
	for src, targets := range graph.Out {
		for dst := range targets {
			m.link(m.in, dst, src)
		}
	}
	m.open = true
	return nil
}

func (m *MemoryBackend) LoadGraph(datasetPath string) (LoadStats, error) {
	if err := m.ensureOpen(); err != nil {
		return LoadStats{}, err
	}
	start := time.Now()
	edges := 0
	meta, err := ReadDataset(datasetPath,
		func(id int64, properties map[string]string) error {
			systemID := m.allocate()
			m.graph.Origins[id] = systemID
			m.graph.Vertices[systemID] = &memVertex{Properties: stringProperties(properties)}
			return nil
		},
		func(src, dst int64, properties map[string]string) error {
			srcID, srcOk := m.graph.Origins[src]
			dstID, dstOk := m.graph.Origins[dst]
			if !srcOk || !dstOk {
				return nil
			}
			m.insertEdge(srcID, dstID, &memEdge{Label: "edge", Properties: stringProperties(properties)})
			edges++
			return nil
		})
	if err != nil {
		return LoadStats{}, fmt.Errorf("failed to load dataset %v: %w", datasetPath, err)
	}
	return LoadStats{
		Nodes:           len(m.graph.Vertices),
		Edges:           edges,
		DurationSeconds: time.Since(start).Seconds(),
		NodeProperties:  meta.NodeProperties,
		EdgeProperties:  meta.EdgeProperties,
	}, nil
}

func (m *MemoryBackend) SystemID(origin int64) (SystemID, bool) {
	id, ok := m.graph.Origins[origin]
	return id, ok
}

func (m *MemoryBackend) AddVertex(count int, batchSize int) ([]float64, error) {
	if err := m.ensureOpen(); err != nil {
		return nil, err
	}
	return batchLatencies(count, batchSize, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			id := m.allocate()
			m.graph.Vertices[id] = &memVertex{}
		}
		return nil
	}, m.countErrors), nil
}

func (m *MemoryBackend) RemoveVertex(ids []SystemID, batchSize int) ([]float64, error) {
	if err := m.ensureOpen(); err != nil {
		return nil, err
	}
	return batchLatencies(len(ids), batchSize, func(lo, hi int) error {
		for _, id := range ids[lo:hi] {
			if _, ok := m.graph.Vertices[id]; !ok {
				m.errorCount++
				continue
			}
			m.removeVertex(id)
		}
		return nil
	}, m.countErrors), nil
}

func (m *MemoryBackend) AddEdge(label string, pairs []EdgePair, batchSize int) ([]float64, error) {
	if err := m.ensureOpen(); err != nil {
		return nil, err
	}
	return batchLatencies(len(pairs), batchSize, func(lo, hi int) error {
		for _, pair := range pairs[lo:hi] {
			if !m.hasVertex(pair.Src) || !m.hasVertex(pair.Dst) {
				m.errorCount++
				continue
			}
			m.insertEdge(pair.Src, pair.Dst, &memEdge{Label: label})
		}
		return nil
	}, m.countErrors), nil
}

func (m *MemoryBackend) RemoveEdge(label string, pairs []EdgePair, batchSize int) ([]float64, error) {
	if err := m.ensureOpen(); err != nil {
		return nil, err
	}
	return batchLatencies(len(pairs), batchSize, func(lo, hi int) error {
		// Edges are addressed by endpoint pair; the label rides along as data.
		for _, pair := range pairs[lo:hi] {
			if _, ok := m.graph.Out[pair.Src][pair.Dst]; !ok {
				m.errorCount++
				continue
			}
			delete(m.graph.Out[pair.Src], pair.Dst)
			delete(m.in[pair.Dst], pair.Src)
		}
		return nil
	}, m.countErrors), nil
}

func (m *MemoryBackend) GetNbrs(direction string, ids []SystemID, batchSize int) ([]float64, error) {
	if err := m.ensureOpen(); err != nil {
		return nil, err
	}
	outgoing, incoming := normalizeDirection(direction)
	return batchLatencies(len(ids), batchSize, func(lo, hi int) error {
		for _, id := range ids[lo:hi] {
			if !m.hasVertex(id) {
				m.errorCount++
				continue
			}
			neighbors := 0
			if outgoing {
				neighbors += len(m.graph.Out[id])
			}
			if incoming {
				neighbors += len(m.in[id])
			}
			_ = neighbors
		}
		return nil
	}, m.countErrors), nil
}

func (m *MemoryBackend) UpdateVertexProperty(updates []VertexUpdate, batchSize int) ([]float64, error) {
	if err := m.ensureOpen(); err != nil {
		return nil, err
	}
	return batchLatencies(len(updates), batchSize, func(lo, hi int) error {
		for _, update := range updates[lo:hi] {
			vertex, ok := m.graph.Vertices[update.ID]
			if !ok {
				m.errorCount++
				continue
			}
			if vertex.Properties == nil {
				vertex.Properties = make(map[string]any, len(update.Properties))
			}
			for key, value := range update.Properties {
				vertex.Properties[key] = value
			}
		}
		return nil
	}, m.countErrors), nil
}

func (m *MemoryBackend) UpdateEdgeProperty(label string, updates []EdgeUpdate, batchSize int) ([]float64, error) {
	if err := m.ensureOpen(); err != nil {
		return nil, err
	}
	return batchLatencies(len(updates), batchSize, func(lo, hi int) error {
		for _, update := range updates[lo:hi] {
			edge, ok := m.graph.Out[update.Src][update.Dst]
			if !ok {
				m.errorCount++
				continue
			}
			if edge.Properties == nil {
				edge.Properties = make(map[string]any, len(update.Properties))
			}
			for key, value := range update.Properties {
				edge.Properties[key] = value
			}
		}
		return nil
	}, m.countErrors), nil
}

func (m *MemoryBackend) GetVertexByProperty(queries []PropertyQuery, batchSize int) ([]float64, error) {
	if err := m.ensureOpen(); err != nil {
		return nil, err
	}
	return batchLatencies(len(queries), batchSize, func(lo, hi int) error {
		for _, query := range queries[lo:hi] {
			matches := 0
			for _, vertex := range m.graph.Vertices {
				if propertyEquals(vertex.Properties[query.Key], query.Value) {
					matches++
				}
			}
			_ = matches
		}
		return nil
	}, m.countErrors), nil
}

func (m *MemoryBackend) GetEdgeByProperty(label string, queries []PropertyQuery, batchSize int) ([]float64, error) {
	if err := m.ensureOpen(); err != nil {
		return nil, err
	}
	return batchLatencies(len(queries), batchSize, func(lo, hi int) error {
		for _, query := range queries[lo:hi] {
			matches := 0
			for _, targets := range m.graph.Out {
				for _, edge := range targets {
					if propertyEquals(edge.Properties[query.Key], query.Value) {
						matches++
					}
				}
			}
			_ = matches
		}
		return nil
	}, m.countErrors), nil
}

// VertexCount is used by tests to observe trial isolation.
func (m *MemoryBackend) VertexCount() int {
	return len(m.graph.Vertices)
}

func (m *MemoryBackend) ensureOpen() error {
	if !m.open {
		return fmt.Errorf("memory backend is closed")
	}
	return nil
}

func (m *MemoryBackend) allocate() SystemID {
	id := SystemID("v" + strconv.FormatInt(m.graph.NextID, 10))
	m.graph.NextID++
	return id
}

func (m *MemoryBackend) hasVertex(id SystemID) bool {
	_, ok := m.graph.Vertices[id]
	return ok
}

func (m *MemoryBackend) insertEdge(src, dst SystemID, edge *memEdge) {
	if m.graph.Out[src] == nil {
		m.graph.Out[src] = make(map[SystemID]*memEdge)
	}
	m.graph.Out[src][dst] = edge
	m.link(m.in, dst, src)
}

func (m *MemoryBackend) removeVertex(id SystemID) {
	for dst := range m.graph.Out[id] {
		delete(m.in[dst], id)
	}
	delete(m.graph.Out, id)
	for src := range m.in[id] {
		delete(m.graph.Out[src], id)
	}
	delete(m.in, id)
	delete(m.graph.Vertices, id)
}

func (m *MemoryBackend) link(adjacency map[SystemID]map[SystemID]bool, from, to SystemID) {
	if adjacency[from] == nil {
		adjacency[from] = make(map[SystemID]bool)
	}
	adjacency[from][to] = true
}

func (m *MemoryBackend) countErrors(ops int) {
	m.errorCount += ops
}

func stringProperties(properties map[string]string) map[string]any {
	if len(properties) == 0 {
		return nil
	}
	converted := make(map[string]any, len(properties))
	for key, value := range properties {
		converted[key] = value
	}
	return converted
}

// propertyEquals compares a stored property against a query value through
// their string forms: CSV-loaded values are strings while JSON queries may
// arrive as numbers.
func propertyEquals(stored any, queried any) bool {
	if stored == nil {
		return false
	}
	return fmt.Sprintf("%v", stored) == fmt.Sprintf("%v", queried)
}
