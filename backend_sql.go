package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

const sqlGraphFile = "graph.db"

const sqlSchema = `
CREATE TABLE IF NOT EXISTS vertices (
	sys_id    INTEGER PRIMARY KEY AUTOINCREMENT,
	origin_id INTEGER,
	props     TEXT
);
CREATE TABLE IF NOT EXISTS edges (
	src   INTEGER NOT NULL,
	dst   INTEGER NOT NULL,
	label TEXT NOT NULL,
	props TEXT,
	PRIMARY KEY (src, dst)
);
CREATE INDEX IF NOT EXISTS edges_dst ON edges (dst);
CREATE INDEX IF NOT EXISTS vertices_origin ON vertices (origin_id);
`

// SQLBackend stores the graph in a relational database through database/sql.
// The default driver is sqlite3 with the database file under the configured
// database path, which keeps directory snapshot/restore working. A custom DSN
// switches to a remote database (libsql), where snapshots degrade to warnings
// because there is no local state directory to copy.
type SQLBackend struct {
	driver       string
	dsn          string
	dbPath       string
	snapshotPath string

	db         *sql.DB
	origins    map[int64]SystemID
	errorCount int
}

func NewSQLBackend(cfg Config) (Executor, error) {
	if cfg.SQLDriver == "" {
		return nil, fmt.Errorf("sql backend requires a driver name")
	}
	return &SQLBackend{
		driver:       cfg.SQLDriver,
		dsn:          cfg.SQLDSN,
		dbPath:       cfg.DatabasePath,
		snapshotPath: cfg.SnapshotPath,
	}, nil
}

func (s *SQLBackend) Name() string         { return "sql" }
func (s *SQLBackend) DatabasePath() string { return s.dbPath }
func (s *SQLBackend) SnapshotPath() string { return s.snapshotPath }
func (s *SQLBackend) ErrorCount() int      { return s.errorCount }
func (s *SQLBackend) ResetErrorCount()     { s.errorCount = 0 }

func (s *SQLBackend) connectionString() string {
	if s.dsn != "" {
		return s.dsn
	}
	return "file:" + filepath.Join(s.dbPath, sqlGraphFile)
}

func (s *SQLBackend) InitDatabase() error {
	if s.dsn == "" {
		if err := os.RemoveAll(s.dbPath); err != nil {
			return fmt.Errorf("failed to clean database directory %v: %w", s.dbPath, err)
		}
		if err := os.MkdirAll(s.dbPath, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory %v: %w", s.dbPath, err)
		}
	}
	db, err := sql.Open(s.driver, s.connectionString())
	if err != nil {
		return fmt.Errorf("failed to open %v database: %w", s.driver, err)
	}
	if _, err := db.Exec("DROP TABLE IF EXISTS edges; DROP TABLE IF EXISTS vertices;"); err != nil {
		db.Close()
		return fmt.Errorf("failed to reset schema: %w", err)
	}
	if _, err := db.Exec(sqlSchema); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}
	s.db = db
	s.origins = make(map[int64]SystemID)
	s.errorCount = 0
	Logger.Infof("sql backend initialized with driver %v", s.driver)
	return nil
}

func (s *SQLBackend) Shutdown() error {
	return s.CloseDatabase()
}

func (s *SQLBackend) CloseDatabase() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.db = nil
	return nil
}

func (s *SQLBackend) OpenDatabase() error {
	db, err := sql.Open(s.driver, s.connectionString())
	if err != nil {
		return fmt.Errorf("failed to open %v database: %w", s.driver, err)
	}
	origins := make(map[int64]SystemID)
	rows, err := db.Query("SELECT sys_id, origin_id FROM vertices WHERE origin_id IS NOT NULL")
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to read vertex mapping: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sysID, originID int64
		if err := rows.Scan(&sysID, &originID); err != nil {
			db.Close()
			return fmt.Errorf("failed to scan vertex mapping: %w", err)
		}
		origins[originID] = SystemID(strconv.FormatInt(sysID, 10))
	}
	if err := rows.Err(); err != nil {
		db.Close()
		return fmt.Errorf("failed to read vertex mapping: %w", err)
	}
	s.db = db
	s.origins = origins
	return nil
}

func (s *SQLBackend) LoadGraph(datasetPath string) (LoadStats, error) {
	if err := s.ensureOpen(); err != nil {
		return LoadStats{}, err
	}
	start := time.Now()
	tx, err := s.db.Begin()
	if err != nil {
		return LoadStats{}, fmt.Errorf("failed to begin load transaction: %w", err)
	}
	nodes, edges := 0, 0
	meta, err := ReadDataset(datasetPath,
		func(id int64, properties map[string]string) error {
			result, err := tx.Exec("INSERT INTO vertices (origin_id, props) VALUES (?, ?)", id, encodeProps(stringProperties(properties)))
			if err != nil {
				return fmt.Errorf("failed to insert vertex %v: %w", id, err)
			}
			sysID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to resolve vertex id: %w", err)
			}
			s.origins[id] = SystemID(strconv.FormatInt(sysID, 10))
			nodes++
			return nil
		},
		func(src, dst int64, properties map[string]string) error {
			srcID, srcOk := s.origins[src]
			dstID, dstOk := s.origins[dst]
			if !srcOk || !dstOk {
				return nil
			}
			_, err := tx.Exec("INSERT OR REPLACE INTO edges (src, dst, label, props) VALUES (?, ?, 'edge', ?)",
				string(srcID), string(dstID), encodeProps(stringProperties(properties)))
			if err != nil {
				return fmt.Errorf("failed to insert edge %v->%v: %w", src, dst, err)
			}
			edges++
			return nil
		})
	if err != nil {
		tx.Rollback()
		return LoadStats{}, fmt.Errorf("failed to load dataset %v: %w", datasetPath, err)
	}
	if err := tx.Commit(); err != nil {
		return LoadStats{}, fmt.Errorf("failed to commit loaded graph: %w", err)
	}
	return LoadStats{
		Nodes:           nodes,
		Edges:           edges,
		DurationSeconds: time.Since(start).Seconds(),
		NodeProperties:  meta.NodeProperties,
		EdgeProperties:  meta.EdgeProperties,
	}, nil
}

func (s *SQLBackend) SystemID(origin int64) (SystemID, bool) {
	id, ok := s.origins[origin]
	return id, ok
}

func (s *SQLBackend) AddVertex(count int, batchSize int) ([]float64, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	return batchLatencies(count, batchSize, func(lo, hi int) error {
		return s.inTx(func(tx *sql.Tx) error {
			for i := lo; i < hi; i++ {
				if _, err := tx.Exec("INSERT INTO vertices (props) VALUES (NULL)"); err != nil {
					return err
				}
			}
			return nil
		})
	}, s.countErrors), nil
}

func (s *SQLBackend) RemoveVertex(ids []SystemID, batchSize int) ([]float64, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	return batchLatencies(len(ids), batchSize, func(lo, hi int) error {
		return s.inTx(func(tx *sql.Tx) error {
			for _, id := range ids[lo:hi] {
				result, err := tx.Exec("DELETE FROM vertices WHERE sys_id = ?", string(id))
				if err != nil {
					return err
				}
				if affected, _ := result.RowsAffected(); affected == 0 {
					s.errorCount++
					continue
				}
				if _, err := tx.Exec("DELETE FROM edges WHERE src = ? OR dst = ?", string(id), string(id)); err != nil {
					return err
				}
			}
			return nil
		})
	}, s.countErrors), nil
}

func (s *SQLBackend) AddEdge(label string, pairs []EdgePair, batchSize int) ([]float64, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	return batchLatencies(len(pairs), batchSize, func(lo, hi int) error {
		return s.inTx(func(tx *sql.Tx) error {
			for _, pair := range pairs[lo:hi] {
				result, err := tx.Exec(
					"INSERT OR REPLACE INTO edges (src, dst, label, props) SELECT ?, ?, ?, NULL WHERE EXISTS (SELECT 1 FROM vertices WHERE sys_id = ?) AND EXISTS (SELECT 1 FROM vertices WHERE sys_id = ?)",
					string(pair.Src), string(pair.Dst), label, string(pair.Src), string(pair.Dst))
				if err != nil {
					return err
				}
				if affected, _ := result.RowsAffected(); affected == 0 {
					s.errorCount++
				}
			}
			return nil
		})
	}, s.countErrors), nil
}

func (s *SQLBackend) RemoveEdge(label string, pairs []EdgePair, batchSize int) ([]float64, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	return batchLatencies(len(pairs), batchSize, func(lo, hi int) error {
		return s.inTx(func(tx *sql.Tx) error {
			for _, pair := range pairs[lo:hi] {
				result, err := tx.Exec("DELETE FROM edges WHERE src = ? AND dst = ?", string(pair.Src), string(pair.Dst))
				if err != nil {
					return err
				}
				if affected, _ := result.RowsAffected(); affected == 0 {
					s.errorCount++
				}
			}
			return nil
		})
	}, s.countErrors), nil
}

func (s *SQLBackend) GetNbrs(direction string, ids []SystemID, batchSize int) ([]float64, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	outgoing, incoming := normalizeDirection(direction)
	return batchLatencies(len(ids), batchSize, func(lo, hi int) error {
		for _, id := range ids[lo:hi] {
			var count int
			var err error
			switch {
			case outgoing && incoming:
				err = s.db.QueryRow("SELECT COUNT(*) FROM edges WHERE src = ? OR dst = ?", string(id), string(id)).Scan(&count)
			case outgoing:
				err = s.db.QueryRow("SELECT COUNT(*) FROM edges WHERE src = ?", string(id)).Scan(&count)
			default:
				err = s.db.QueryRow("SELECT COUNT(*) FROM edges WHERE dst = ?", string(id)).Scan(&count)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}, s.countErrors), nil
}

func (s *SQLBackend) UpdateVertexProperty(updates []VertexUpdate, batchSize int) ([]float64, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	return batchLatencies(len(updates), batchSize, func(lo, hi int) error {
		return s.inTx(func(tx *sql.Tx) error {
			for _, update := range updates[lo:hi] {
				merged, err := s.mergeProps(tx, "SELECT props FROM vertices WHERE sys_id = ?", []any{string(update.ID)}, update.Properties)
				if err != nil {
					return err
				}
				if merged == nil {
					s.errorCount++
					continue
				}
				if _, err := tx.Exec("UPDATE vertices SET props = ? WHERE sys_id = ?", merged, string(update.ID)); err != nil {
					return err
				}
			}
			return nil
		})
	}, s.countErrors), nil
}

func (s *SQLBackend) UpdateEdgeProperty(label string, updates []EdgeUpdate, batchSize int) ([]float64, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	return batchLatencies(len(updates), batchSize, func(lo, hi int) error {
		return s.inTx(func(tx *sql.Tx) error {
			for _, update := range updates[lo:hi] {
				merged, err := s.mergeProps(tx, "SELECT props FROM edges WHERE src = ? AND dst = ?",
					[]any{string(update.Src), string(update.Dst)}, update.Properties)
				if err != nil {
					return err
				}
				if merged == nil {
					s.errorCount++
					continue
				}
				if _, err := tx.Exec("UPDATE edges SET props = ? WHERE src = ? AND dst = ?",
					merged, string(update.Src), string(update.Dst)); err != nil {
					return err
				}
			}
			return nil
		})
	}, s.countErrors), nil
}

func (s *SQLBackend) GetVertexByProperty(queries []PropertyQuery, batchSize int) ([]float64, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	return batchLatencies(len(queries), batchSize, func(lo, hi int) error {
		for _, query := range queries[lo:hi] {
			var count int
			err := s.db.QueryRow("SELECT COUNT(*) FROM vertices WHERE json_extract(props, ?) = ?",
				"$."+query.Key, fmt.Sprintf("%v", query.Value)).Scan(&count)
			if err != nil {
				return err
			}
		}
		return nil
	}, s.countErrors), nil
}

func (s *SQLBackend) GetEdgeByProperty(label string, queries []PropertyQuery, batchSize int) ([]float64, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	return batchLatencies(len(queries), batchSize, func(lo, hi int) error {
		for _, query := range queries[lo:hi] {
			var count int
			err := s.db.QueryRow("SELECT COUNT(*) FROM edges WHERE json_extract(props, ?) = ?",
				"$."+query.Key, fmt.Sprintf("%v", query.Value)).Scan(&count)
			if err != nil {
				return err
			}
		}
		return nil
	}, s.countErrors), nil
}

func (s *SQLBackend) ensureOpen() error {
	if s.db == nil {
		return fmt.Errorf("sql backend is closed")
	}
	return nil
}

func (s *SQLBackend) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// mergeProps returns nil (without error) when the target row does not exist.
func (s *SQLBackend) mergeProps(tx *sql.Tx, query string, args []any, updates map[string]any) (any, error) {
	var stored sql.NullString
	err := tx.QueryRow(query, args...).Scan(&stored)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	props := make(map[string]any)
	if stored.Valid && stored.String != "" {
		if err := json.Unmarshal([]byte(stored.String), &props); err != nil {
			return nil, fmt.Errorf("failed to decode stored properties: %w", err)
		}
	}
	for key, value := range updates {
		props[key] = value
	}
	encoded, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("failed to encode properties: %w", err)
	}
	return string(encoded), nil
}

func (s *SQLBackend) countErrors(ops int) {
	s.errorCount += ops
}

func encodeProps(properties map[string]any) any {
	if len(properties) == 0 {
		return nil
	}
	encoded, err := json.Marshal(properties)
	if err != nil {
		return nil
	}
	return string(encoded)
}
