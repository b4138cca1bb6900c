package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "processed.txt"))

	ids, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMarkAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.txt")
	store := New(path)

	require.NoError(t, store.Mark("100"))
	require.NoError(t, store.Mark("101"))

	ids, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "100")
	assert.Contains(t, ids, "101")
}

func TestDuplicateMarksCollapse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.txt")
	store := New(path)

	require.NoError(t, store.Mark("100"))
	require.NoError(t, store.Mark("100"))
	require.NoError(t, store.Mark("100"))

	ids, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestMarksSurviveAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.txt")

	require.NoError(t, New(path).Mark("100"))
	require.NoError(t, New(path).Mark("200"))

	ids, err := New(path).Load()
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestLoadIgnoresBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.txt")
	require.NoError(t, os.WriteFile(path, []byte("100\n\n  \n101\n"), 0o644))

	ids, err := New(path).Load()
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}
