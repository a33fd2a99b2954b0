package dbmanager

import (
	"testing"

	"github.com/beryldb/beryldb/pkg/config"
	"github.com/beryldb/beryldb/pkg/keyenc"
	"github.com/stretchr/testify/require"
)

func TestLoadAutoCreatesAndSetsDefault(t *testing.T) {
	m := New(t.TempDir())

	db, err := m.Load("main", true)
	require.NoError(t, err)
	require.Equal(t, "main", db.Name())
	require.Same(t, db, m.Default())
}

func TestLoadTwiceReturnsSameHandle(t *testing.T) {
	m := New(t.TempDir())
	first, err := m.Load("main", true)
	require.NoError(t, err)

	second, err := m.Load("main", false)
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestCreateRejectsDuplicate(t *testing.T) {
	m := New(t.TempDir())
	_, err := m.Create("main", 1000)
	require.NoError(t, err)

	_, err = m.Create("main", 1000)
	require.Error(t, err)
}

func TestFindMissingReturnsNil(t *testing.T) {
	m := New(t.TempDir())
	require.Nil(t, m.Find("absent"))
}

func TestSetDefaultRejectsUnopenedDatabase(t *testing.T) {
	m := New(t.TempDir())
	require.False(t, m.SetDefault("absent"))
}

func TestDeleteClosesAndForgets(t *testing.T) {
	m := New(t.TempDir())
	_, err := m.Load("main", true)
	require.NoError(t, err)

	require.NoError(t, m.Delete("main"))
	require.Nil(t, m.Find("main"))
	require.Nil(t, m.Default())
}

func TestDeleteUnknownIsNoop(t *testing.T) {
	m := New(t.TempDir())
	require.NoError(t, m.Delete("absent"))
}

func TestDatabaseNamesAndKeyCount(t *testing.T) {
	m := New(t.TempDir())
	db, err := m.Load("main", true)
	require.NoError(t, err)

	require.NoError(t, db.Put(keyenc.TagKey, []byte("k1"), []byte("v1")))

	names := m.DatabaseNames()
	require.Equal(t, []string{"main"}, names)

	n, err := m.KeyCount("main")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestLoadFromConfigDefaultsToMain(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	m, err := LoadFromConfig(cfg)
	require.NoError(t, err)
	require.NotNil(t, m.Default())
	require.Equal(t, "main", m.Default().Name())
}

func TestLoadFromConfigOpensEveryListedDatabase(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Databases = []config.Database{
		{Name: "alpha"},
		{Name: "beta", BloomBits: 2000},
	}

	m, err := LoadFromConfig(cfg)
	require.NoError(t, err)
	require.NotNil(t, m.Find("alpha"))
	require.NotNil(t, m.Find("beta"))
	require.Equal(t, "alpha", m.Default().Name())
}
