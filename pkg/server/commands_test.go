package server

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beryldb/beryldb/pkg/query"
)

func TestParseLineUppercasesCommand(t *testing.T) {
	cmd, args := parseLine("set foo bar")
	require.Equal(t, "SET", cmd)
	require.Equal(t, []string{"foo", "bar"}, args)
}

func TestParseLineEmptyLine(t *testing.T) {
	cmd, args := parseLine("   ")
	require.Equal(t, "", cmd)
	require.Nil(t, args)
}

func TestBuildersCoverEveryCoreCommand(t *testing.T) {
	for _, name := range []string{
		"SET", "GET", "DEL", "KEYS", "HSET", "HGET", "MSET", "MGET",
		"VPUSH", "VGET", "GEOADD", "GFIND", "EXPIRE", "FUTURE",
		"DBSIZE", "PWD", "MODULES",
	} {
		_, ok := builders[name]
		require.True(t, ok, "missing builder for %s", name)
	}
}

func TestSetBuilderRejectsWrongArgCount(t *testing.T) {
	_, err := builders["SET"]([]string{"onlykey"})
	require.Error(t, err)
}

func TestKeysBuilderDefaultsLimit(t *testing.T) {
	q, err := builders["KEYS"]([]string{"*"})
	require.NoError(t, err)
	require.NotNil(t, q)
	require.Equal(t, -1, q.(*query.Keys).Limit)
}

func TestKeysBuilderRejectsNegativeOffset(t *testing.T) {
	_, err := builders["KEYS"]([]string{"*", "-1"})
	require.Error(t, err)
}

func TestGeoAddBuilderRejectsBadCoordinate(t *testing.T) {
	_, err := builders["GEOADD"]([]string{"place", "notalat", "2.0"})
	require.Error(t, err)
}

func TestSessionCommandsAreNotInBuildersTable(t *testing.T) {
	for name := range sessionCommands {
		_, ok := builders[name]
		require.False(t, ok, "%s should not have a Query builder", name)
	}
}
