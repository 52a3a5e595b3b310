// Package ingest implements the ingest contract (§6.1): the single
// entry point that fans a fingerprint out to the index manager, persists
// it to storage, and — when requested — quantizes the embedders that
// have an implemented quantization method, tracking the resulting
// payload bytes against the process-wide GPU budget tracker (§6.6) under
// a per-fingerprint reservation name. This composition (index manager +
// storage + quantize + gpubudget) is this package's own wiring; the
// teacher's closest analogue is internal/campaign/orchestrator_lifecycle.go's
// pattern of running several independent subsystem calls in sequence and
// unwinding on the first failure.
package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrWong99/memoryengine/pkg/memspace/fingerprint"
	"github.com/MrWong99/memoryengine/pkg/memspace/gpubudget"
	"github.com/MrWong99/memoryengine/pkg/memspace/indexmanager"
	"github.com/MrWong99/memoryengine/pkg/memspace/memerr"
	"github.com/MrWong99/memoryengine/pkg/memspace/quantize"
	"github.com/MrWong99/memoryengine/pkg/memspace/storage"
	"github.com/google/uuid"
)

// Ingester composes the index manager, the storage layer, and (optionally)
// a GPU budget tracker into the single ingest operation §6.1 names.
type Ingester struct {
	Indexes *indexmanager.Manager
	Store   *storage.Store
	// Budget is optional: when set, requested quantization's resulting
	// payload bytes are reserved under "quantized:<id>" and released on
	// Remove. A nil Budget skips tracking entirely.
	Budget *gpubudget.Tracker
}

// New constructs an Ingester over the given index manager and store. budget
// may be nil if GPU budget tracking is not wanted.
func New(indexes *indexmanager.Manager, store *storage.Store, budget *gpubudget.Tracker) *Ingester {
	return &Ingester{Indexes: indexes, Store: store, Budget: budget}
}

// QuantizationReport records which embedders were actually quantized when
// quantizationRequested was true, and the total bytes reserved for them.
// BudgetErr is set when a GPU budget reservation for TotalBytes was
// attempted and failed (e.g. budget exhausted); quantization itself still
// succeeded, so this is reported rather than failing the ingest.
type QuantizationReport struct {
	Quantized  []fingerprint.Embedder
	Skipped    []fingerprint.Embedder
	TotalBytes int
	BudgetErr  error
}

// Ingest fans fp out across all thirteen per-embedder indexes (plus the
// derived Matryoshka-128 and purpose-vector indexes), persists the
// fingerprint/purpose-vector/Matryoshka-128 truncation to storage, and —
// if quantizationRequested — best-effort quantizes every embedder with an
// implemented method (§6.4: currently only E9/HDC). Post-condition per
// §6.1: a successful return means Get(id) returns the same fingerprint and
// Search on any of the 13 indexes can return id.
//
// On index-manager failure, already-applied index inserts are unwound via
// Remove before the error is returned, since AddFingerprint itself does not
// roll back partial fan-out (indexmanager's own documented contract).
func (ig *Ingester) Ingest(ctx context.Context, id uuid.UUID, fp *fingerprint.Fingerprint, pv fingerprint.PurposeVector, quantizationRequested bool) (QuantizationReport, error) {
	if err := ig.Indexes.AddFingerprint(ctx, id, fp, pv); err != nil {
		ig.Indexes.Remove(id)
		return QuantizationReport{}, memerr.Wrap(memerr.KindStorage, "ingest.Ingest", "index fan-out", err)
	}

	if err := ig.Store.PutFingerprint(id, fp); err != nil {
		ig.Indexes.Remove(id)
		return QuantizationReport{}, err
	}
	if err := ig.Store.PutPurposeVector(id, pv); err != nil {
		ig.Indexes.Remove(id)
		return QuantizationReport{}, err
	}
	if v, ok := fp.Dense(fingerprint.Semantic); ok && len(v) >= fingerprint.MatryoshkaDim {
		if err := ig.Store.PutMatryoshka(id, v[:fingerprint.MatryoshkaDim]); err != nil {
			ig.Indexes.Remove(id)
			return QuantizationReport{}, err
		}
	}

	report := QuantizationReport{}
	if quantizationRequested {
		report = ig.quantizeAll(id, fp)
	}

	return report, nil
}

// quantizeAll is best-effort: embedders whose method is declared but not
// yet implemented (§6.4: PQ-8, Float8-E4M3 today) are recorded as Skipped,
// never failed — an ingest that asked for quantization does not fail
// merely because most methods remain unimplemented (memerr.KindQuantizerNotImplemented
// is an expected, not exceptional, outcome here).
func (ig *Ingester) quantizeAll(id uuid.UUID, fp *fingerprint.Fingerprint) QuantizationReport {
	report := QuantizationReport{}
	for _, e := range fingerprint.AllEmbedders() {
		if e.DataKind() != fingerprint.KindDense || !quantize.CanQuantize(e) {
			report.Skipped = append(report.Skipped, e)
			continue
		}
		v, ok := fp.Dense(e)
		if !ok {
			report.Skipped = append(report.Skipped, e)
			continue
		}
		q, err := quantize.Quantize(e, v)
		if err != nil {
			report.Skipped = append(report.Skipped, e)
			continue
		}
		report.Quantized = append(report.Quantized, e)
		report.TotalBytes += len(q.Data)
	}

	if ig.Budget != nil && report.TotalBytes > 0 {
		if err := ig.Budget.Allocate(reservationName(id), uint64(report.TotalBytes)); err != nil {
			report.BudgetErr = err
			slog.Warn("ingest: gpu budget reservation failed", "id", id, "bytes", report.TotalBytes, "err", err)
		}
	}
	return report
}

// Remove deletes id from every index and releases its GPU budget
// reservation, if any was made. It does not remove the fingerprint from
// storage: storage retention is a separate, caller-driven concern (the
// ingest contract covers insertion, not lifecycle deletion policy).
func (ig *Ingester) Remove(id uuid.UUID) bool {
	found := ig.Indexes.Remove(id)
	if ig.Budget != nil {
		ig.Budget.Deallocate(reservationName(id))
	}
	return found
}

func reservationName(id uuid.UUID) string {
	return fmt.Sprintf("quantized:%s", id)
}
