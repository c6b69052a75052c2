// Package cache stores DeepWalk node embeddings on disk, one SQLite file
// per graph. Embeddings live in a sqlite-vec virtual table; a meta table
// pins the schema version, dimension and walk parameters so stale caches
// are rebuilt instead of reused.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/floorgraph/floorgraph/core/embedding"
	"github.com/floorgraph/floorgraph/helper"
	"github.com/floorgraph/floorgraph/model"
)

// ErrMiss is returned when a graph has no usable cache file: none exists,
// or the stored embeddings were built with different parameters.
var ErrMiss = errors.New("embedding cache miss")

const schemaVersion = "1"

const (
	metaKeySchemaVersion = "schema_version"
	metaKeyDimensions    = "dimensions"
	metaKeyFingerprint   = "walk_fingerprint"
)

const createMetaTable = `
CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`

const createEmbeddingsTableTemplate = `
CREATE VIRTUAL TABLE IF NOT EXISTS vec_embeddings USING vec0(
    node_id INTEGER PRIMARY KEY,
    embedding FLOAT[%d]
);`

// Fingerprint derives a stable identifier from the walk parameters. Two
// configs with the same fingerprint produce identical embeddings.
func Fingerprint(config model.WalkConfig) string {
	data, _ := json.Marshal(config)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:8])
}

// Store manages the per-graph embedding cache files in one directory.
type Store struct {
	dir    string
	logger *slog.Logger
}

// NewStore creates the cache directory if needed.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, helper.NewError("creating cache directory", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Path returns the cache file of a graph.
func (s *Store) Path(graphName string) string {
	return filepath.Join(s.dir, graphName+".embeddings")
}

// Load reads the cached embeddings of a graph. It returns ErrMiss when no
// cache exists or the cache was built with other walk parameters.
func (s *Store) Load(graphName string, config model.WalkConfig) ([][]float64, error) {
	path := s.Path(graphName)
	if _, err := os.Stat(path); err != nil {
		return nil, ErrMiss
	}

	conn, err := s.open(path, config.Dimensions)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := s.validateMeta(conn, config); err != nil {
		s.logger.Warn(
			"embedding cache is stale",
			slog.String("graph", graphName),
			slog.String("reason", err.Error()),
		)
		return nil, ErrMiss
	}

	rows, err := conn.Query(`SELECT node_id, embedding FROM vec_embeddings ORDER BY node_id`)
	if err != nil {
		return nil, helper.NewError("reading cached embeddings", err)
	}
	defer rows.Close()

	var embeddings [][]float64
	for rows.Next() {
		var nodeID int
		var blob []byte
		if err := rows.Scan(&nodeID, &blob); err != nil {
			return nil, helper.NewError("scanning cached embedding", err)
		}
		if nodeID != len(embeddings) {
			return nil, helper.NewError("reading cached embeddings", fmt.Errorf("node IDs are not dense at %d", nodeID))
		}
		embeddings = append(embeddings, decodeVector(blob))
	}
	if err := rows.Err(); err != nil {
		return nil, helper.NewError("reading cached embeddings", err)
	}
	if len(embeddings) == 0 {
		return nil, ErrMiss
	}
	return embeddings, nil
}

// Save replaces the cache file of a graph with the given embeddings.
func (s *Store) Save(graphName string, config model.WalkConfig, embeddings [][]float64) error {
	path := s.Path(graphName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return helper.NewError("replacing embedding cache", err)
	}

	conn, err := s.open(path, config.Dimensions)
	if err != nil {
		return err
	}
	defer conn.Close()

	tx, err := conn.Begin()
	if err != nil {
		return helper.NewError("writing embedding cache", err)
	}
	defer tx.Rollback()

	meta := map[string]string{
		metaKeySchemaVersion: schemaVersion,
		metaKeyDimensions:    fmt.Sprintf("%d", config.Dimensions),
		metaKeyFingerprint:   Fingerprint(config),
	}
	for key, value := range meta {
		if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)`, key, value); err != nil {
			return helper.NewError("writing cache meta", err)
		}
	}

	for nodeID, vector := range embeddings {
		if len(vector) != config.Dimensions {
			return helper.NewError("writing embedding cache", fmt.Errorf("node %d has %d dimensions, expected %d", nodeID, len(vector), config.Dimensions))
		}
		blob, err := sqlite_vec.SerializeFloat32(encodeVector(vector))
		if err != nil {
			return helper.NewError("serializing embedding", err)
		}
		if _, err := tx.Exec(`INSERT INTO vec_embeddings (node_id, embedding) VALUES (?, ?)`, nodeID, blob); err != nil {
			return helper.NewError("writing embedding", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("writing embedding cache", err)
	}

	s.logger.Info(
		"cached embeddings",
		slog.String("graph", graphName),
		slog.Int("nodes", len(embeddings)),
		slog.Int("dimensions", config.Dimensions),
	)
	return nil
}

// Embeddings returns the embeddings of a graph, computing and caching
// them on a miss.
func (s *Store) Embeddings(g *model.Graph, config model.WalkConfig) ([][]float64, error) {
	embeddings, err := s.Load(g.Name, config)
	if err == nil {
		return embeddings, nil
	}
	if !errors.Is(err, ErrMiss) {
		return nil, err
	}

	s.logger.Info("computing embeddings", slog.String("graph", g.Name))
	embeddings, err = embedding.NewDeepWalk(config).Embed(g)
	if err != nil {
		return nil, err
	}
	if err := s.Save(g.Name, config, embeddings); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// open opens or creates a cache file with WAL mode and the schema in
// place.
func (s *Store) open(path string, dimensions int) (*sql.DB, error) {
	if dimensions <= 0 {
		return nil, helper.NewError("opening embedding cache", fmt.Errorf("dimensions must be positive, got %d", dimensions))
	}

	sqlite_vec.Auto()
	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, helper.NewError("opening embedding cache", err)
	}

	statements := []string{
		`PRAGMA journal_mode=WAL;`,
		createMetaTable,
		fmt.Sprintf(createEmbeddingsTableTemplate, dimensions),
	}
	for _, statement := range statements {
		if _, err := conn.Exec(statement); err != nil {
			conn.Close()
			return nil, helper.NewError("initializing embedding cache", err)
		}
	}
	return conn, nil
}

// validateMeta checks that the cache file matches the current schema and
// walk parameters.
func (s *Store) validateMeta(conn *sql.DB, config model.WalkConfig) error {
	expected := map[string]string{
		metaKeySchemaVersion: schemaVersion,
		metaKeyDimensions:    fmt.Sprintf("%d", config.Dimensions),
		metaKeyFingerprint:   Fingerprint(config),
	}
	for key, want := range expected {
		var got string
		err := conn.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&got)
		if err == sql.ErrNoRows {
			return fmt.Errorf("meta key %s missing", key)
		}
		if err != nil {
			return fmt.Errorf("reading meta %s: %w", key, err)
		}
		if got != want {
			return fmt.Errorf("%s is %s, expected %s", key, got, want)
		}
	}
	return nil
}

func encodeVector(vector []float64) []float32 {
	encoded := make([]float32, len(vector))
	for i, v := range vector {
		encoded[i] = float32(v)
	}
	return encoded
}

// decodeVector reads the little-endian float32 blob sqlite-vec stores.
func decodeVector(blob []byte) []float64 {
	vector := make([]float64, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = float64(math.Float32frombits(bits))
	}
	return vector
}
