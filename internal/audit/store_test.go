package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/bizmatters/code-harmonizer/internal/harmonization"
	"github.com/bizmatters/code-harmonizer/internal/kvstore"
	"github.com/bizmatters/code-harmonizer/internal/llm"
)

var exportTime = time.Date(2024, 3, 1, 12, 31, 0, 0, time.UTC)

func runScenarioA(t *testing.T) harmonization.Result {
	t.Helper()
	p := harmonization.NewPipeline(llm.NewMockAdapter(nil))
	result, err := p.Run(context.Background(), "var x = 1;", []string{"optimize-performance"}, nil)
	require.NoError(t, err)
	return result
}

func TestStore_RecordAndCurrent(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, kvstore.NewMemoryBackend(0), nil)

	_, ok := store.Current()
	assert.False(t, ok)

	result := runScenarioA(t)
	store.Record(ctx, result.Audit, result.HarmonizedCode)

	entry, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, "const x = 1;", entry.HarmonizedCode)
	assert.Equal(t, result.Audit, entry.Record)
}

func TestStore_SurvivesReload(t *testing.T) {
	ctx := context.Background()
	backend := kvstore.NewMemoryBackend(0)
	result := runScenarioA(t)
	NewStore(ctx, backend, nil).Record(ctx, result.Audit, result.HarmonizedCode)

	entry, ok := NewStore(ctx, backend, nil).Current()
	require.True(t, ok)
	assert.Equal(t, "const x = 1;", entry.HarmonizedCode)
	assert.Equal(t, result.Audit.Steps, entry.Record.Steps)
}

func TestStore_ReloadPicksUpOtherWriter(t *testing.T) {
	ctx := context.Background()
	backend := kvstore.NewMemoryBackend(0)
	reader := NewStore(ctx, backend, nil)
	_, ok := reader.Current()
	require.False(t, ok)

	result := runScenarioA(t)
	NewStore(ctx, backend, nil).Record(ctx, result.Audit, result.HarmonizedCode)
	_, ok = reader.Current()
	assert.False(t, ok)

	reader.Reload(ctx)
	entry, ok := reader.Current()
	require.True(t, ok)
	assert.Equal(t, "const x = 1;", entry.HarmonizedCode)
	assert.Equal(t, "const x = 1;", reader.HarmonizedCode())
}

func TestStore_ClearIsRollback(t *testing.T) {
	ctx := context.Background()
	backend := kvstore.NewMemoryBackend(0)
	require.NoError(t, backend.Save(ctx, kvstore.KeySourceCode, []byte(`"var x = 1;"`)))

	store := NewStore(ctx, backend, nil)
	result := runScenarioA(t)
	store.Record(ctx, result.Audit, result.HarmonizedCode)
	store.Clear(ctx)

	_, ok := store.Current()
	assert.False(t, ok)
	assert.Empty(t, store.HarmonizedCode())

	_, err := backend.Load(ctx, kvstore.KeyAuditLog)
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
	raw, err := backend.Load(ctx, kvstore.KeySourceCode)
	require.NoError(t, err)
	assert.Equal(t, `"var x = 1;"`, string(raw))
}

func TestStore_ExportJSON(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, kvstore.NewMemoryBackend(0), nil)
	result := runScenarioA(t)
	store.Record(ctx, result.Audit, result.HarmonizedCode)

	export, err := store.Export(FormatJSON, exportTime)
	require.NoError(t, err)
	assert.Equal(t, "harmonization-audit-1709296260000.json", export.Filename)
	assert.Equal(t, "application/json", export.ContentType)
	assert.Contains(t, string(export.Data), "\n  \"timestamp\"")

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(export.Data, &fields))
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{
		"timestamp", "originalCode", "selectedIntentions", "steps",
		"transformations", "harmonizedCode", "exportTimestamp",
	}, keys)
	assert.JSONEq(t, `"2024-03-01T12:31:00.000Z"`, string(fields["exportTimestamp"]))
	assert.JSONEq(t, `"const x = 1;"`, string(fields["harmonizedCode"]))
}

func TestStore_ExportYAML(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, kvstore.NewMemoryBackend(0), nil)
	result := runScenarioA(t)
	store.Record(ctx, result.Audit, result.HarmonizedCode)

	export, err := store.Export(FormatYAML, exportTime)
	require.NoError(t, err)
	assert.Equal(t, "harmonization-audit-1709296260000.yaml", export.Filename)

	var fields map[string]interface{}
	require.NoError(t, yaml.Unmarshal(export.Data, &fields))
	assert.Equal(t, "var x = 1;", fields["originalCode"])
	assert.Equal(t, "const x = 1;", fields["harmonizedCode"])
	assert.Equal(t, "2024-03-01T12:31:00.000Z", fields["exportTimestamp"])
	assert.Len(t, fields["steps"], 5)
}

func TestStore_ExportErrors(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, kvstore.NewMemoryBackend(0), nil)

	_, err := store.Export(FormatJSON, exportTime)
	assert.ErrorIs(t, err, ErrNoRecord)

	result := runScenarioA(t)
	store.Record(ctx, result.Audit, result.HarmonizedCode)
	_, err = store.Export(Format("xml"), exportTime)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected Format
		wantErr  bool
	}{
		{input: "", expected: FormatJSON},
		{input: "JSON", expected: FormatJSON},
		{input: "yaml", expected: FormatYAML},
		{input: "yml", expected: FormatYAML},
		{input: "csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
