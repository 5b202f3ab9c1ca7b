// Package store persists built index snapshots and computed embedding
// vectors to SQLite. Persistence is an acceleration layer: the index is
// always rebuildable from the file tree, so a missing or empty database is
// never an error.
package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jward/lantern/internal/entity"
	"github.com/jward/lantern/internal/graph"
)

// Store is the SQLite data access layer.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entities (
  id              TEXT PRIMARY KEY,
  kind            TEXT NOT NULL,
  name            TEXT NOT NULL,
  file_path       TEXT NOT NULL,
  start_line      INTEGER,
  end_line        INTEGER,
  signature       TEXT,
  docstring       TEXT,
  language        TEXT,
  confidence      TEXT,
  parent_id       TEXT,
  text            TEXT,
  position        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS edges (
  source          TEXT NOT NULL,
  target          TEXT NOT NULL,
  kind            TEXT NOT NULL,
  origins         TEXT,
  PRIMARY KEY (source, target)
);

CREATE TABLE IF NOT EXISTS vectors (
  entity_id       TEXT PRIMARY KEY,
  digest          TEXT NOT NULL,
  vector          BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_file ON entities(file_path);
CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target);
`

// GetMetadata returns the value for key, or empty string when absent.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetMetadata upserts a metadata key.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// SaveSnapshot transactionally replaces the persisted entities and edges
// with one build's output. Entity order within a file is preserved through
// the position column.
func (s *Store) SaveSnapshot(entitiesByFile map[string][]*entity.Entity, edges []graph.Edge) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{"DELETE FROM entities", "DELETE FROM edges"} {
		if _, err := tx.Exec(q); err != nil {
			return fmt.Errorf("clear snapshot: %w", err)
		}
	}

	insertEntity, err := tx.Prepare(`INSERT INTO entities
		(id, kind, name, file_path, start_line, end_line, signature, docstring, language, confidence, parent_id, text, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare entity insert: %w", err)
	}
	defer insertEntity.Close()

	for _, ents := range entitiesByFile {
		for pos, e := range ents {
			if _, err := insertEntity.Exec(
				e.ID, string(e.Kind), e.Name, e.FilePath, e.StartLine, e.EndLine,
				e.Signature, e.Docstring, e.Language, string(e.Confidence),
				e.ParentID, e.Text(), pos,
			); err != nil {
				return fmt.Errorf("insert entity %s: %w", e.ID, err)
			}
		}
	}

	insertEdge, err := tx.Prepare("INSERT INTO edges (source, target, kind, origins) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare edge insert: %w", err)
	}
	defer insertEdge.Close()

	for _, e := range edges {
		if _, err := insertEdge.Exec(e.Source, e.Target, string(e.Kind), strings.Join(e.Origins, "\n")); err != nil {
			return fmt.Errorf("insert edge %s -> %s: %w", e.Source, e.Target, err)
		}
	}

	return tx.Commit()
}

// LoadSnapshot reads the persisted entities and edges back. Both return
// values are nil when the database holds no snapshot.
func (s *Store) LoadSnapshot() (map[string][]*entity.Entity, []graph.Edge, error) {
	rows, err := s.db.Query(`SELECT id, kind, name, file_path, start_line, end_line,
		signature, docstring, language, confidence, parent_id, text
		FROM entities ORDER BY file_path, position`)
	if err != nil {
		return nil, nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	entitiesByFile := make(map[string][]*entity.Entity)
	for rows.Next() {
		e := &entity.Entity{}
		var kind, confidence, text string
		if err := rows.Scan(&e.ID, &kind, &e.Name, &e.FilePath, &e.StartLine, &e.EndLine,
			&e.Signature, &e.Docstring, &e.Language, &confidence, &e.ParentID, &text); err != nil {
			return nil, nil, fmt.Errorf("scan entity: %w", err)
		}
		e.Kind = entity.Kind(kind)
		e.Confidence = entity.Confidence(confidence)
		// Text prefixes the name; strip it back off so a reload round-trips.
		if text == e.Name {
			text = ""
		}
		e.SetText(strings.TrimPrefix(text, e.Name+" "))
		entitiesByFile[e.FilePath] = append(entitiesByFile[e.FilePath], e)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("entity rows: %w", err)
	}
	if len(entitiesByFile) == 0 {
		return nil, nil, nil
	}

	edgeRows, err := s.db.Query("SELECT source, target, kind, origins FROM edges")
	if err != nil {
		return nil, nil, fmt.Errorf("query edges: %w", err)
	}
	defer edgeRows.Close()

	var edges []graph.Edge
	for edgeRows.Next() {
		var e graph.Edge
		var kind, origins string
		if err := edgeRows.Scan(&e.Source, &e.Target, &kind, &origins); err != nil {
			return nil, nil, fmt.Errorf("scan edge: %w", err)
		}
		e.Kind = graph.ResolutionKind(kind)
		if origins != "" {
			e.Origins = strings.Split(origins, "\n")
		}
		edges = append(edges, e)
	}
	return entitiesByFile, edges, edgeRows.Err()
}

// SaveVector persists one computed embedding keyed by entity and text digest.
func (s *Store) SaveVector(entityID, digest string, vec []float32) error {
	_, err := s.db.Exec(
		`INSERT INTO vectors (entity_id, digest, vector) VALUES (?, ?, ?)
		 ON CONFLICT(entity_id) DO UPDATE SET digest = excluded.digest, vector = excluded.vector`,
		entityID, digest, encodeVector(vec),
	)
	return err
}

// LoadVector returns the persisted vector for entityID, or nil when absent
// or when the stored digest no longer matches.
func (s *Store) LoadVector(entityID, digest string) ([]float32, error) {
	var storedDigest string
	var blob []byte
	err := s.db.QueryRow("SELECT digest, vector FROM vectors WHERE entity_id = ?", entityID).
		Scan(&storedDigest, &blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if storedDigest != digest {
		return nil, nil
	}
	return decodeVector(blob), nil
}

func encodeVector(vec []float32) []byte {
	out := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func decodeVector(blob []byte) []float32 {
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out
}
