package loqui

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorage(t *testing.T) {
	assert := assert.New(t)
	s := NewMemoryStorage()

	_, ok, err := s.GetItem("missing")
	assert.NoError(err)
	assert.False(ok)

	assert.NoError(s.SetItem("k", "v1"))
	v, ok, err := s.GetItem("k")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal("v1", v)

	assert.NoError(s.SetItem("k", "v2"))
	v, _, _ = s.GetItem("k")
	assert.Equal("v2", v)
}

func TestSQLiteStorage(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.GetItem("missing")
	assert.NoError(err)
	assert.False(ok)

	assert.NoError(s.SetItem("k", "v1"))
	v, ok, err := s.GetItem("k")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal("v1", v)

	// Upsert overwrites.
	assert.NoError(s.SetItem("k", "v2"))
	v, _, _ = s.GetItem("k")
	assert.Equal("v2", v)
}

func TestSQLiteStorageSurvivesReopen(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := NewSQLiteStorage(path)
	require.NoError(t, err)
	require.NoError(t, s.SetItem("k", "persisted"))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStorage(path)
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.GetItem("k")
	assert.NoError(err)
	assert.True(ok)
	assert.Equal("persisted", v)
}

func TestSQLiteStorageRequiresPath(t *testing.T) {
	_, err := NewSQLiteStorage("")
	assert.Error(t, err)
}
