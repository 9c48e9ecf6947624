package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/code-harmonizer/internal/harmonization"
	"github.com/bizmatters/code-harmonizer/internal/kvstore"
	"github.com/bizmatters/code-harmonizer/internal/llm"
)

// blockingAdapter holds the run open until release is closed.
type blockingAdapter struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingAdapter) Complete(context.Context, string) (string, error) {
	close(b.entered)
	<-b.release
	return "done", nil
}

func newWorkspace(t *testing.T, backend kvstore.Backend) *Workspace {
	t.Helper()
	return NewWorkspace(context.Background(), harmonization.NewPipeline(llm.NewMockAdapter(nil)), backend, nil)
}

func TestWorkspace_Defaults(t *testing.T) {
	w := newWorkspace(t, kvstore.NewMemoryBackend(0))

	assert.Equal(t, SampleCode, w.Source())
	assert.Empty(t, w.Selection())
	assert.False(t, w.Running())

	r := w.Readiness()
	assert.False(t, r.Ready)
	assert.Equal(t, harmonization.ReasonNoIntentions, r.Reason)
}

func TestWorkspace_SelectionOperations(t *testing.T) {
	ctx := context.Background()
	w := newWorkspace(t, kvstore.NewMemoryBackend(0))

	require.NoError(t, w.SetSelection(ctx, []string{"fix-bugs", "fix-bugs", "optimize-performance"}))
	assert.Equal(t, []string{"fix-bugs", "optimize-performance"}, w.Selection())

	var unknown *UnknownIntentionError
	err := w.SetSelection(ctx, []string{"fix-bugs", "nope"})
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"nope"}, unknown.IDs)
	assert.Equal(t, []string{"fix-bugs", "optimize-performance"}, w.Selection())

	selected, err := w.Toggle(ctx, "fix-bugs")
	require.NoError(t, err)
	assert.False(t, selected)
	assert.Equal(t, []string{"optimize-performance"}, w.Selection())

	selected, err = w.Toggle(ctx, "improve-readability")
	require.NoError(t, err)
	assert.True(t, selected)
	assert.Equal(t, []string{"optimize-performance", "improve-readability"}, w.Selection())

	_, err = w.Toggle(ctx, "nope")
	assert.ErrorAs(t, err, &unknown)

	w.SelectAll(ctx)
	assert.Len(t, w.Selection(), 6)

	w.ClearAll(ctx)
	assert.Empty(t, w.Selection())
}

func TestWorkspace_HarmonizeRecordsAudit(t *testing.T) {
	ctx := context.Background()
	backend := kvstore.NewMemoryBackend(0)
	w := newWorkspace(t, backend)

	w.SetSource(ctx, "var x = 1;")
	require.NoError(t, w.SetSelection(ctx, []string{"optimize-performance"}))

	result, err := w.Harmonize(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "const x = 1;", result.HarmonizedCode)

	snap := w.Snapshot()
	assert.Equal(t, "const x = 1;", snap.HarmonizedCode)
	require.NotNil(t, snap.Audit)
	assert.Equal(t, "var x = 1;", snap.Audit.OriginalCode)

	restored := newWorkspace(t, backend)
	assert.Equal(t, "var x = 1;", restored.Source())
	assert.Equal(t, []string{"optimize-performance"}, restored.Selection())
	assert.Equal(t, "const x = 1;", restored.Snapshot().HarmonizedCode)
}

func TestWorkspace_HarmonizeNotReady(t *testing.T) {
	ctx := context.Background()
	w := newWorkspace(t, kvstore.NewMemoryBackend(0))
	w.SetSource(ctx, "")
	require.NoError(t, w.SetSelection(ctx, []string{"fix-bugs"}))

	_, err := w.Harmonize(ctx, nil)
	var notReady *harmonization.NotReadyError
	require.ErrorAs(t, err, &notReady)
	assert.Equal(t, harmonization.ReasonNoSource, notReady.Readiness.Reason)
	assert.False(t, w.Running())

	_, ok := w.Audit().Current()
	assert.False(t, ok)
}

func TestWorkspace_RejectsConcurrentRun(t *testing.T) {
	ctx := context.Background()
	adapter := &blockingAdapter{entered: make(chan struct{}), release: make(chan struct{})}
	w := NewWorkspace(ctx, harmonization.NewPipeline(adapter), kvstore.NewMemoryBackend(0), nil)
	require.NoError(t, w.SetSelection(ctx, []string{"fix-bugs"}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := w.Harmonize(ctx, nil)
		assert.NoError(t, err)
	}()

	<-adapter.entered
	assert.True(t, w.Running())
	_, err := w.Harmonize(ctx, nil)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(adapter.release)
	wg.Wait()
	assert.False(t, w.Running())
	assert.Equal(t, "done", w.Snapshot().HarmonizedCode)
}

func TestWorkspace_HarmonizeWithOverrides(t *testing.T) {
	ctx := context.Background()
	backend := kvstore.NewMemoryBackend(0)
	w := newWorkspace(t, backend)
	changed := "var x = 1;"

	var unknown *UnknownIntentionError
	_, err := w.HarmonizeWith(ctx, Overrides{SourceCode: &changed, Intentions: []string{"optimize-performance", "nope"}}, nil)
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"nope"}, unknown.IDs)
	assert.Equal(t, SampleCode, w.Source())
	assert.Empty(t, w.Selection())

	result, err := w.HarmonizeWith(ctx, Overrides{SourceCode: &changed, Intentions: []string{"optimize-performance", "optimize-performance"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "const x = 1;", result.HarmonizedCode)
	assert.Equal(t, "var x = 1;", result.Audit.OriginalCode)

	restored := newWorkspace(t, backend)
	assert.Equal(t, "var x = 1;", restored.Source())
	assert.Equal(t, []string{"optimize-performance"}, restored.Selection())
}

func TestWorkspace_OverridesDuringRunAreDropped(t *testing.T) {
	ctx := context.Background()
	adapter := &blockingAdapter{entered: make(chan struct{}), release: make(chan struct{})}
	w := NewWorkspace(ctx, harmonization.NewPipeline(adapter), kvstore.NewMemoryBackend(0), nil)
	w.SetSource(ctx, "var x = 1;")
	require.NoError(t, w.SetSelection(ctx, []string{"fix-bugs"}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := w.Harmonize(ctx, nil)
		assert.NoError(t, err)
	}()
	<-adapter.entered

	changed := "CHANGED"
	_, err := w.HarmonizeWith(ctx, Overrides{SourceCode: &changed, Intentions: []string{"optimize-performance"}}, nil)
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.Equal(t, "var x = 1;", w.Source())
	assert.Equal(t, []string{"fix-bugs"}, w.Selection())

	close(adapter.release)
	wg.Wait()
	snap := w.Snapshot()
	require.NotNil(t, snap.Audit)
	assert.Equal(t, "var x = 1;", snap.Audit.OriginalCode)
}

func TestWorkspace_ReloadAndStoredKeys(t *testing.T) {
	ctx := context.Background()
	backend := kvstore.NewMemoryBackend(0)
	w := newWorkspace(t, backend)

	keys, err := w.StoredKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	other := newWorkspace(t, backend)
	other.SetSource(ctx, "var x = 1;")
	require.NoError(t, other.SetSelection(ctx, []string{"optimize-performance"}))
	_, err = other.Harmonize(ctx, nil)
	require.NoError(t, err)

	assert.Equal(t, SampleCode, w.Source())
	require.NoError(t, w.Reload(ctx))
	snap := w.Snapshot()
	assert.Equal(t, "var x = 1;", snap.SourceCode)
	assert.Equal(t, []string{"optimize-performance"}, snap.Selection)
	assert.Equal(t, "const x = 1;", snap.HarmonizedCode)
	require.NotNil(t, snap.Audit)

	keys, err = w.StoredKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		kvstore.KeyAuditLog,
		kvstore.KeyIntentions,
		kvstore.KeyOutputCode,
		kvstore.KeySourceCode,
	}, keys)
}

func TestWorkspace_ReloadRefusedDuringRun(t *testing.T) {
	ctx := context.Background()
	adapter := &blockingAdapter{entered: make(chan struct{}), release: make(chan struct{})}
	w := NewWorkspace(ctx, harmonization.NewPipeline(adapter), kvstore.NewMemoryBackend(0), nil)
	require.NoError(t, w.SetSelection(ctx, []string{"fix-bugs"}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := w.Harmonize(ctx, nil)
		assert.NoError(t, err)
	}()
	<-adapter.entered

	assert.ErrorIs(t, w.Reload(ctx), ErrRunInProgress)

	close(adapter.release)
	wg.Wait()
	assert.NoError(t, w.Reload(ctx))
}

func TestWorkspace_RollbackKeepsSource(t *testing.T) {
	ctx := context.Background()
	w := newWorkspace(t, kvstore.NewMemoryBackend(0))
	w.SetSource(ctx, "var x = 1;")
	require.NoError(t, w.SetSelection(ctx, []string{"optimize-performance"}))
	_, err := w.Harmonize(ctx, nil)
	require.NoError(t, err)

	w.Rollback(ctx)

	snap := w.Snapshot()
	assert.Equal(t, "var x = 1;", snap.SourceCode)
	assert.Equal(t, []string{"optimize-performance"}, snap.Selection)
	assert.Empty(t, snap.HarmonizedCode)
	assert.Nil(t, snap.Audit)
}

func TestWorkspace_ResetAndSample(t *testing.T) {
	ctx := context.Background()
	w := newWorkspace(t, kvstore.NewMemoryBackend(0))
	require.NoError(t, w.SetSelection(ctx, []string{"fix-bugs"}))
	_, err := w.Harmonize(ctx, nil)
	require.NoError(t, err)

	w.Reset(ctx)
	snap := w.Snapshot()
	assert.Empty(t, snap.SourceCode)
	assert.Empty(t, snap.Selection)
	assert.Empty(t, snap.HarmonizedCode)
	assert.Nil(t, snap.Audit)
	assert.Equal(t, harmonization.ReasonNoSource, snap.Readiness.Reason)

	w.LoadSample(ctx)
	assert.Equal(t, SampleCode, w.Source())
}
