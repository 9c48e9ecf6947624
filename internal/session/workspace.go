// Package session holds the per-user workspace: source text, selected
// intentions and the audit store, all persisted through the kv store.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/bizmatters/code-harmonizer/internal/audit"
	"github.com/bizmatters/code-harmonizer/internal/harmonization"
	"github.com/bizmatters/code-harmonizer/internal/intentions"
	"github.com/bizmatters/code-harmonizer/internal/kvstore"
)

// ErrRunInProgress is returned when Harmonize is called during another run.
var ErrRunInProgress = errors.New("harmonization already in progress")

// UnknownIntentionError lists ids that are not in the catalog.
type UnknownIntentionError struct {
	IDs []string
}

func (e *UnknownIntentionError) Error() string {
	return fmt.Sprintf("unknown intention: %s", strings.Join(e.IDs, ", "))
}

// SampleCode is the source a fresh workspace starts with.
const SampleCode = `function calculateTotal(items) {
  var total = 0;
  for (var i = 0; i < items.length; i++) {
    if (items[i].price != null) {
      total = total + items[i].price;
    }
  }
  return total;
}`

// Snapshot is the externally visible workspace state
type Snapshot struct {
	SourceCode     string                     `json:"sourceCode"`
	Selection      []string                   `json:"selection"`
	HarmonizedCode string                     `json:"harmonizedCode"`
	Audit          *harmonization.AuditRecord `json:"audit,omitempty"`
	Running        bool                       `json:"running"`
	Readiness      harmonization.Readiness    `json:"readiness"`
}

// Workspace is the explicit application state around one pipeline
type Workspace struct {
	pipeline  *harmonization.Pipeline
	catalog   *intentions.Catalog
	source    *kvstore.Value[string]
	selection *kvstore.Value[[]string]
	audit     *audit.Store
	backend   kvstore.Backend
	running   atomic.Bool
	logger    *zap.Logger
}

// NewWorkspace restores the workspace persisted in backend
func NewWorkspace(ctx context.Context, pipeline *harmonization.Pipeline, backend kvstore.Backend, logger *zap.Logger) *Workspace {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workspace{
		pipeline:  pipeline,
		catalog:   pipeline.Catalog(),
		source:    kvstore.NewValue(ctx, backend, kvstore.KeySourceCode, SampleCode, logger),
		selection: kvstore.NewValue[[]string](ctx, backend, kvstore.KeyIntentions, []string{}, logger),
		audit:     audit.NewStore(ctx, backend, logger),
		backend:   backend,
		logger:    logger,
	}
}

// Catalog returns the intention catalog
func (w *Workspace) Catalog() *intentions.Catalog { return w.catalog }

// Audit returns the audit store
func (w *Workspace) Audit() *audit.Store { return w.audit }

// Source returns the current source code
func (w *Workspace) Source() string { return w.source.Get() }

// SetSource replaces the source code
func (w *Workspace) SetSource(ctx context.Context, code string) {
	w.source.Set(ctx, code)
}

// LoadSample restores the sample source code
func (w *Workspace) LoadSample(ctx context.Context) {
	w.source.Set(ctx, SampleCode)
}

// Selection returns a copy of the selected intention ids
func (w *Workspace) Selection() []string {
	return append([]string{}, w.selection.Get()...)
}

// SetSelection replaces the selection. Duplicates are dropped and unknown
// ids are rejected without changing anything.
func (w *Workspace) SetSelection(ctx context.Context, ids []string) error {
	if unknown := w.catalog.Validate(ids); len(unknown) > 0 {
		return &UnknownIntentionError{IDs: unknown}
	}
	w.selection.Set(ctx, uniq(ids))
	return nil
}

// Toggle adds id to the selection or removes it, and reports whether it is
// selected afterwards.
func (w *Workspace) Toggle(ctx context.Context, id string) (bool, error) {
	if _, ok := w.catalog.Lookup(id); !ok {
		return false, &UnknownIntentionError{IDs: []string{id}}
	}
	var selected bool
	w.selection.Update(ctx, func(cur []string) []string {
		out := make([]string, 0, len(cur)+1)
		for _, existing := range cur {
			if existing != id {
				out = append(out, existing)
			}
		}
		selected = len(out) == len(cur)
		if selected {
			out = append(out, id)
		}
		return out
	})
	return selected, nil
}

// SelectAll selects every catalog intention in display order
func (w *Workspace) SelectAll(ctx context.Context) {
	w.selection.Set(ctx, w.catalog.IDs())
}

// ClearAll empties the selection
func (w *Workspace) ClearAll(ctx context.Context) {
	w.selection.Set(ctx, []string{})
}

// Readiness evaluates the run guard against the current state
func (w *Workspace) Readiness() harmonization.Readiness {
	return w.pipeline.Readiness(w.Source(), w.Selection())
}

// Running reports whether a run is in flight
func (w *Workspace) Running() bool { return w.running.Load() }

// Overrides replace parts of the workspace when a run starts. Nil fields
// keep the stored value.
type Overrides struct {
	SourceCode *string
	Intentions []string
}

// Harmonize runs the pipeline on the current state and records the result.
// A second call while one is running fails with ErrRunInProgress.
func (w *Workspace) Harmonize(ctx context.Context, observe harmonization.ProgressFunc) (harmonization.Result, error) {
	return w.HarmonizeWith(ctx, Overrides{}, observe)
}

// HarmonizeWith is Harmonize after applying o. Unknown intentions and a run
// already in flight are rejected before anything is written.
func (w *Workspace) HarmonizeWith(ctx context.Context, o Overrides, observe harmonization.ProgressFunc) (harmonization.Result, error) {
	if o.Intentions != nil {
		if unknown := w.catalog.Validate(o.Intentions); len(unknown) > 0 {
			return harmonization.Result{}, &UnknownIntentionError{IDs: unknown}
		}
	}
	if !w.running.CompareAndSwap(false, true) {
		return harmonization.Result{}, ErrRunInProgress
	}
	defer w.running.Store(false)

	if o.SourceCode != nil {
		w.source.Set(ctx, *o.SourceCode)
	}
	if o.Intentions != nil {
		w.selection.Set(ctx, uniq(o.Intentions))
	}

	result, err := w.pipeline.Run(ctx, w.Source(), w.Selection(), observe)
	if err != nil {
		return harmonization.Result{}, err
	}
	w.audit.Record(context.WithoutCancel(ctx), result.Audit, result.HarmonizedCode)
	return result, nil
}

// Rollback discards the last result. The source code is kept.
func (w *Workspace) Rollback(ctx context.Context) {
	w.audit.Clear(ctx)
}

// Reset clears source, selection, output and audit
func (w *Workspace) Reset(ctx context.Context) {
	w.source.Set(ctx, "")
	w.selection.Set(ctx, []string{})
	w.audit.Clear(ctx)
	w.logger.Info("workspace reset")
}

// Reload re-reads source, selection and the audit record from the backend,
// picking up writes made by another process sharing it.
func (w *Workspace) Reload(ctx context.Context) error {
	if w.running.Load() {
		return ErrRunInProgress
	}
	w.source.Reload(ctx)
	w.selection.Reload(ctx)
	w.audit.Reload(ctx)
	w.logger.Debug("workspace reloaded")
	return nil
}

// StoredKeys lists the keys currently persisted in the backend
func (w *Workspace) StoredKeys(ctx context.Context) ([]string, error) {
	keys, err := w.backend.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored keys: %w", err)
	}
	return keys, nil
}

// Snapshot returns the current state
func (w *Workspace) Snapshot() Snapshot {
	snap := Snapshot{
		SourceCode:     w.Source(),
		Selection:      w.Selection(),
		HarmonizedCode: w.audit.HarmonizedCode(),
		Running:        w.Running(),
		Readiness:      w.Readiness(),
	}
	if entry, ok := w.audit.Current(); ok {
		rec := entry.Record
		snap.Audit = &rec
	}
	return snap
}

func uniq(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
