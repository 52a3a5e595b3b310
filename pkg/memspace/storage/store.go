// Package storage implements the column-family-style persistence layer
// (§6.3): the fingerprints/purpose_vectors/e1_matryoshka_128/edges/
// causal_relationships tables live as BLOB-keyed tables in a single
// modernc.org/sqlite database file, grounded on the northstar package's own
// sqlite usage (internal/northstar/store.go: a schema migrated once at
// Open, guarded by a mutex, gob/json-serialized payload columns instead of
// one column per field). The per-embedder index files and index_meta.json
// manifest named in §6.3/§6.7 are handled by pkg/memspace/indexmanager,
// which writes them as plain files rather than rows — this package owns
// only the CFs §6.3's AMBIENT note assigns to the database.
package storage

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MrWong99/memoryengine/pkg/memspace/atc"
	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
	"github.com/MrWong99/memoryengine/pkg/memspace/graphlink"
	"github.com/MrWong99/memoryengine/pkg/memspace/memerr"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS fingerprints (
	id BLOB PRIMARY KEY,
	value BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS purpose_vectors (
	id BLOB PRIMARY KEY,
	value BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS e1_matryoshka_128 (
	id BLOB PRIMARY KEY,
	value BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS e13_splade_inverted (
	term_id INTEGER PRIMARY KEY,
	value BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS edges (
	id BLOB PRIMARY KEY,
	source_id BLOB NOT NULL,
	target_id BLOB NOT NULL,
	edge_type INTEGER NOT NULL,
	domain INTEGER NOT NULL,
	is_amortized_shortcut INTEGER NOT NULL,
	value BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
CREATE INDEX IF NOT EXISTS idx_edges_domain ON edges(domain);
CREATE TABLE IF NOT EXISTS causal_relationships (
	id BLOB PRIMARY KEY,
	value BLOB NOT NULL
);
`

// Store owns the single sqlite database file backing the engine's
// column-family tables. All methods are safe for concurrent use.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path and applies
// the schema. The parent directory is created if missing, matching
// NewStore's directory-creation convention in the northstar package.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "storage.Open", "creating data directory", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, memerr.Wrap(memerr.KindStorage, "storage.Open", "opening database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, memerr.Wrap(memerr.KindStorage, "storage.Open", "applying schema", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// fingerprintRecord is the gob-serializable projection of a *fingerprint.Fingerprint.
type fingerprintRecord struct {
	Dense  map[fingerprint.Embedder][]float32
	Sparse map[fingerprint.Embedder]fingerprint.SparseVector
	Tokens map[fingerprint.Embedder]fingerprint.TokenVectors
}

func toRecord(fp *fingerprint.Fingerprint) fingerprintRecord {
	rec := fingerprintRecord{
		Dense:  make(map[fingerprint.Embedder][]float32),
		Sparse: make(map[fingerprint.Embedder]fingerprint.SparseVector),
		Tokens: make(map[fingerprint.Embedder]fingerprint.TokenVectors),
	}
	for _, e := range fingerprint.AllEmbedders() {
		switch e.DataKind() {
		case fingerprint.KindDense:
			if v, ok := fp.Dense(e); ok {
				rec.Dense[e] = v
			}
		case fingerprint.KindSparse:
			if v, ok := fp.Sparse(e); ok {
				rec.Sparse[e] = v
			}
		case fingerprint.KindTokenDense:
			if v, ok := fp.Tokens(e); ok {
				rec.Tokens[e] = v
			}
		}
	}
	return rec
}

func (r fingerprintRecord) toFingerprint() (*fingerprint.Fingerprint, error) {
	return fingerprint.New(fingerprint.Inputs{Dense: r.Dense, Sparse: r.Sparse, Tokens: r.Tokens})
}

// PutFingerprint persists fp under id in the fingerprints CF.
func (s *Store) PutFingerprint(id uuid.UUID, fp *fingerprint.Fingerprint) error {
	data, err := gobEncode(toRecord(fp))
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "storage.PutFingerprint", "encoding", err)
	}
	return s.upsert("fingerprints", "id", id[:], data)
}

// GetFingerprint loads and reconstructs the fingerprint stored under id.
func (s *Store) GetFingerprint(id uuid.UUID) (*fingerprint.Fingerprint, bool, error) {
	data, ok, err := s.lookup("fingerprints", "id", id[:])
	if err != nil || !ok {
		return nil, ok, err
	}
	var rec fingerprintRecord
	if err := gobDecode(data, &rec); err != nil {
		return nil, false, memerr.Wrap(memerr.KindCorruption, "storage.GetFingerprint", "decoding", err)
	}
	fp, err := rec.toFingerprint()
	if err != nil {
		return nil, false, memerr.Wrap(memerr.KindCorruption, "storage.GetFingerprint", "reconstructing", err)
	}
	return fp, true, nil
}

// PutPurposeVector persists pv under id in the purpose_vectors CF.
func (s *Store) PutPurposeVector(id uuid.UUID, pv fingerprint.PurposeVector) error {
	data, err := gobEncode(pv)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "storage.PutPurposeVector", "encoding", err)
	}
	return s.upsert("purpose_vectors", "id", id[:], data)
}

// GetPurposeVector loads the purpose vector stored under id.
func (s *Store) GetPurposeVector(id uuid.UUID) (fingerprint.PurposeVector, bool, error) {
	var pv fingerprint.PurposeVector
	data, ok, err := s.lookup("purpose_vectors", "id", id[:])
	if err != nil || !ok {
		return pv, ok, err
	}
	if err := gobDecode(data, &pv); err != nil {
		return pv, false, memerr.Wrap(memerr.KindCorruption, "storage.GetPurposeVector", "decoding", err)
	}
	return pv, true, nil
}

// PutMatryoshka persists the 128-d truncated E1 vector under id.
func (s *Store) PutMatryoshka(id uuid.UUID, vec []float32) error {
	data, err := gobEncode(vec)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "storage.PutMatryoshka", "encoding", err)
	}
	return s.upsert("e1_matryoshka_128", "id", id[:], data)
}

// GetMatryoshka loads the 128-d truncated E1 vector stored under id.
func (s *Store) GetMatryoshka(id uuid.UUID) ([]float32, bool, error) {
	data, ok, err := s.lookup("e1_matryoshka_128", "id", id[:])
	if err != nil || !ok {
		return nil, ok, err
	}
	var vec []float32
	if err := gobDecode(data, &vec); err != nil {
		return nil, false, memerr.Wrap(memerr.KindCorruption, "storage.GetMatryoshka", "decoding", err)
	}
	return vec, true, nil
}

// Posting is one (id, weight) pair in an inverted-index posting list.
type Posting struct {
	ID     uuid.UUID
	Weight float32
}

// PutSpladePostings replaces the posting list for sparse term termID.
func (s *Store) PutSpladePostings(termID uint16, postings []Posting) error {
	data, err := gobEncode(postings)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "storage.PutSpladePostings", "encoding", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`INSERT INTO e13_splade_inverted(term_id, value) VALUES (?, ?)
		ON CONFLICT(term_id) DO UPDATE SET value = excluded.value`, termID, data)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "storage.PutSpladePostings", "upsert", err)
	}
	return nil
}

// GetSpladePostings loads the posting list for sparse term termID.
func (s *Store) GetSpladePostings(termID uint16) ([]Posting, bool, error) {
	s.mu.RLock()
	var data []byte
	err := s.db.QueryRow(`SELECT value FROM e13_splade_inverted WHERE term_id = ?`, termID).Scan(&data)
	s.mu.RUnlock()
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, memerr.Wrap(memerr.KindStorage, "storage.GetSpladePostings", "query", err)
	}
	var postings []Posting
	if err := gobDecode(data, &postings); err != nil {
		return nil, false, memerr.Wrap(memerr.KindCorruption, "storage.GetSpladePostings", "decoding", err)
	}
	return postings, true, nil
}

// PutCausalRelationship persists an LLM-sourced relationship judgment (its
// shape is owned by pkg/provider/llm; this layer only stores the bytes the
// caller hands it) under id.
func (s *Store) PutCausalRelationship(id uuid.UUID, value []byte) error {
	return s.upsert("causal_relationships", "id", id[:], value)
}

// GetCausalRelationship loads the relationship judgment stored under id.
func (s *Store) GetCausalRelationship(id uuid.UUID) ([]byte, bool, error) {
	return s.lookup("causal_relationships", "id", id[:])
}

func (s *Store) upsert(table, keyCol string, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	query := fmt.Sprintf(`INSERT INTO %s(%s, value) VALUES (?, ?)
		ON CONFLICT(%s) DO UPDATE SET value = excluded.value`, table, keyCol, keyCol)
	_, err := s.db.Exec(query, key, value)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "storage.upsert", table, err)
	}
	return nil
}

func (s *Store) lookup(table, keyCol string, key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	query := fmt.Sprintf(`SELECT value FROM %s WHERE %s = ?`, table, keyCol)
	var data []byte
	err := s.db.QueryRow(query, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, memerr.Wrap(memerr.KindStorage, "storage.lookup", table, err)
	}
	return data, true, nil
}

// PutEdge persists e in the edges table, keyed by its own id.
func (s *Store) PutEdge(e *graphlink.Edge) error {
	data, err := gobEncode(e)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "storage.PutEdge", "encoding", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`INSERT INTO edges(id, source_id, target_id, edge_type, domain, is_amortized_shortcut, value) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET domain = excluded.domain, is_amortized_shortcut = excluded.is_amortized_shortcut, value = excluded.value`,
		e.ID[:], e.Source[:], e.Target[:], int(e.Type), int(e.Domain), boolToInt(e.IsAmortizedShortcut), data)
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "storage.PutEdge", "upsert", err)
	}
	return nil
}

// EdgesFrom returns every edge with the given source id, implementing
// graphlink.EdgeStore for the contradiction walker.
func (s *Store) EdgesFrom(node uuid.UUID) []*graphlink.Edge {
	return s.edgesWhere("source_id", node)
}

// EdgesTo returns every edge with the given target id, implementing
// graphlink.EdgeStore for the contradiction walker.
func (s *Store) EdgesTo(node uuid.UUID) []*graphlink.Edge {
	return s.edgesWhere("target_id", node)
}

// EdgesByDomain returns every edge tagged with the given domain, for
// domain-scoped retrieval weighting (§3.5).
func (s *Store) EdgesByDomain(domain atc.Domain) []*graphlink.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query(`SELECT value FROM edges WHERE domain = ?`, int(domain))
	if err != nil {
		return nil
	}
	return scanEdges(rows)
}

func (s *Store) edgesWhere(col string, node uuid.UUID) []*graphlink.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	query := fmt.Sprintf(`SELECT value FROM edges WHERE %s = ?`, col)
	rows, err := s.db.Query(query, node[:])
	if err != nil {
		return nil
	}
	return scanEdges(rows)
}

func scanEdges(rows *sql.Rows) []*graphlink.Edge {
	defer rows.Close()
	var out []*graphlink.Edge
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			continue
		}
		var e graphlink.Edge
		if err := gobDecode(data, &e); err != nil {
			continue
		}
		out = append(out, &e)
	}
	return out
}
