package kvstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "kv.db")

	backend, err := OpenSQLite(ctx, path)
	require.NoError(t, err)

	require.NoError(t, backend.Ping(ctx))

	_, err = backend.Load(ctx, KeySourceCode)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, backend.Save(ctx, KeySourceCode, []byte(`"var x = 1;"`)))
	require.NoError(t, backend.Save(ctx, KeySourceCode, []byte(`"let y = 2;"`)))
	require.NoError(t, backend.Save(ctx, KeyIntentions, []byte(`["fix-bugs"]`)))

	data, err := backend.Load(ctx, KeySourceCode)
	require.NoError(t, err)
	assert.Equal(t, `"let y = 2;"`, string(data))

	keys, err := backend.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{KeyIntentions, KeySourceCode}, keys)

	require.NoError(t, backend.Remove(ctx, KeyIntentions))
	_, err = backend.Load(ctx, KeyIntentions)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, backend.Close())
}

func TestSQLiteBackend_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	first, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	NewValue(ctx, first, KeyOutputCode, "", nil).Set(ctx, "const x = 1;")
	require.NoError(t, first.Close())

	second, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer second.Close()

	assert.Equal(t, "const x = 1;", NewValue(ctx, second, KeyOutputCode, "", nil).Get())
}
