package indexmanager

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
	"github.com/MrWong99/memoryengine/pkg/memspace/index"
	"github.com/MrWong99/memoryengine/pkg/memspace/memerr"
)

// manifest is the index_meta.json file persisted alongside the per-index
// binary files: a JSON listing of what each file is and its dimension, so
// Load can detect a stale or mismatched directory before trusting the gob
// payloads (§6.3/§6.7 — one plain os.File per index, a JSON manifest,
// encoding/gob for the record payloads).
type manifest struct {
	Version int                 `json:"version"`
	Dense   map[string]fileMeta `json:"dense"`
	Sparse  map[string]fileMeta `json:"sparse"`
	MaxSim  fileMeta            `json:"maxsim"`
}

type fileMeta struct {
	File string `json:"file"`
	Dim  int    `json:"dim"`
}

const manifestVersion = 1
const manifestFile = "index_meta.json"

func denseFileName(name string) string { return name + ".hnsw.bin" }
func sparseFileName(name string) string { return name + ".inverted.bin" }

// Persist writes every index's contents to dir: one binary file per index
// (gob-encoded entry slices) plus a JSON manifest recording file names and
// dimensions. dir must already exist.
func (m *Manager) Persist(dir string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mf := manifest{
		Version: manifestVersion,
		Dense:   make(map[string]fileMeta),
		Sparse:  make(map[string]fileMeta),
	}

	for _, e := range denseEmbedders() {
		ix := m.dense[e]
		fname := denseFileName(ix.Name())
		if err := writeGob(filepath.Join(dir, fname), ix.Entries()); err != nil {
			return memerr.Wrap(memerr.KindStorage, "indexmanager.Persist", ix.Name(), err)
		}
		mf.Dense[ix.Name()] = fileMeta{File: fname, Dim: e.Dim()}
	}
	if err := writeGob(filepath.Join(dir, denseFileName(MatryoshkaName)), m.matry.Entries()); err != nil {
		return memerr.Wrap(memerr.KindStorage, "indexmanager.Persist", MatryoshkaName, err)
	}
	mf.Dense[MatryoshkaName] = fileMeta{File: denseFileName(MatryoshkaName), Dim: fingerprint.MatryoshkaDim}

	if err := writeGob(filepath.Join(dir, denseFileName(PurposeVectorName)), m.purpose.Entries()); err != nil {
		return memerr.Wrap(memerr.KindStorage, "indexmanager.Persist", PurposeVectorName, err)
	}
	mf.Dense[PurposeVectorName] = fileMeta{File: denseFileName(PurposeVectorName), Dim: fingerprint.PurposeVectorDim}

	for _, e := range sparseEmbedders() {
		ix := m.sparse[e]
		fname := sparseFileName(e.Name())
		if err := writeGob(filepath.Join(dir, fname), ix.Entries()); err != nil {
			return memerr.Wrap(memerr.KindStorage, "indexmanager.Persist", e.Name(), err)
		}
		mf.Sparse[e.Name()] = fileMeta{File: fname, Dim: e.Dim()}
	}

	const maxsimFile = "maxsim.bin"
	if err := writeGob(filepath.Join(dir, maxsimFile), m.maxsim.Entries()); err != nil {
		return memerr.Wrap(memerr.KindStorage, "indexmanager.Persist", "maxsim", err)
	}
	mf.MaxSim = fileMeta{File: maxsimFile, Dim: fingerprint.LateInteraction.Dim()}

	manifestBytes, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "indexmanager.Persist", manifestFile, err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), manifestBytes, 0o644); err != nil {
		return memerr.Wrap(memerr.KindStorage, "indexmanager.Persist", manifestFile, err)
	}
	return nil
}

// Load replaces the contents of every index the manager owns from the files
// in dir, as written by Persist. The manifest's recorded dimensions are
// checked against the live embedder table before trusting any payload — a
// mismatch is a corruption error (§7's KindCorruption), not a silent
// truncation or reshape.
func (m *Manager) Load(dir string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return memerr.Wrap(memerr.KindStorage, "indexmanager.Load", manifestFile, err)
	}
	var mf manifest
	if err := json.Unmarshal(raw, &mf); err != nil {
		return memerr.Wrap(memerr.KindCorruption, "indexmanager.Load", manifestFile, err)
	}

	for _, e := range denseEmbedders() {
		ix := m.dense[e]
		fm, ok := mf.Dense[ix.Name()]
		if !ok {
			return memerr.New(memerr.KindCorruption, "indexmanager.Load", fmt.Sprintf("manifest missing entry for %s", ix.Name()))
		}
		if fm.Dim != e.Dim() {
			return memerr.New(memerr.KindCorruption, "indexmanager.Load", fmt.Sprintf("%s: manifest dim %d does not match embedder dim %d", ix.Name(), fm.Dim, e.Dim()))
		}
		var entries []index.DenseEntry
		if err := readGob(filepath.Join(dir, fm.File), &entries); err != nil {
			return memerr.Wrap(memerr.KindStorage, "indexmanager.Load", ix.Name(), err)
		}
		ix.LoadEntries(entries)
	}

	if err := loadDenseRaw(dir, mf, MatryoshkaName, fingerprint.MatryoshkaDim, m.matry); err != nil {
		return err
	}
	if err := loadDenseRaw(dir, mf, PurposeVectorName, fingerprint.PurposeVectorDim, m.purpose); err != nil {
		return err
	}

	for _, e := range sparseEmbedders() {
		ix := m.sparse[e]
		fm, ok := mf.Sparse[e.Name()]
		if !ok {
			return memerr.New(memerr.KindCorruption, "indexmanager.Load", fmt.Sprintf("manifest missing entry for %s", e.Name()))
		}
		if fm.Dim != e.Dim() {
			return memerr.New(memerr.KindCorruption, "indexmanager.Load", fmt.Sprintf("%s: manifest dim %d does not match embedder dim %d", e.Name(), fm.Dim, e.Dim()))
		}
		var entries []index.InvertedEntry
		if err := readGob(filepath.Join(dir, fm.File), &entries); err != nil {
			return memerr.Wrap(memerr.KindStorage, "indexmanager.Load", e.Name(), err)
		}
		ix.LoadEntries(entries)
	}

	if mf.MaxSim.Dim != fingerprint.LateInteraction.Dim() {
		return memerr.New(memerr.KindCorruption, "indexmanager.Load", "maxsim: manifest dim does not match Late-Interaction dim")
	}
	var maxsimEntries []index.MaxSimEntry
	if err := readGob(filepath.Join(dir, mf.MaxSim.File), &maxsimEntries); err != nil {
		return memerr.Wrap(memerr.KindStorage, "indexmanager.Load", "maxsim", err)
	}
	m.maxsim.LoadEntries(maxsimEntries)

	return nil
}

func loadDenseRaw(dir string, mf manifest, name string, dim int, ix *index.Dense) error {
	fm, ok := mf.Dense[name]
	if !ok {
		return memerr.New(memerr.KindCorruption, "indexmanager.Load", fmt.Sprintf("manifest missing entry for %s", name))
	}
	if fm.Dim != dim {
		return memerr.New(memerr.KindCorruption, "indexmanager.Load", fmt.Sprintf("%s: manifest dim %d does not match expected dim %d", name, fm.Dim, dim))
	}
	var entries []index.DenseEntry
	if err := readGob(filepath.Join(dir, fm.File), &entries); err != nil {
		return memerr.Wrap(memerr.KindStorage, "indexmanager.Load", name, err)
	}
	ix.LoadEntries(entries)
	return nil
}

func writeGob(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(v)
}

func readGob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewDecoder(f).Decode(v)
}
