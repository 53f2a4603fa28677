package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autosum/shift-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DB_PATH", "")
	t.Setenv("ADMIN_IDS", "")

	cfg := config.Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "./data/autosum.db", cfg.DBPath)
	assert.Empty(t, cfg.AdminIDs)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("ADMIN_IDS", "42, 7,notanumber,1001")

	cfg := config.Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, []int64{42, 7, 1001}, cfg.AdminIDs, "bad entries are skipped")
}

func TestValidate_OK(t *testing.T) {
	cfg := &config.Config{Port: "8080", DBPath: ":memory:"}
	assert.NoError(t, cfg.Validate())
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := &config.Config{Port: "notaport", DBPath: ""}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port")
	assert.Contains(t, err.Error(), "database path cannot be empty")
}

func TestValidate_PortRange(t *testing.T) {
	cfg := &config.Config{Port: "70000", DBPath: ":memory:"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 1 and 65535")
}

func TestValidate_CreatesDatabaseDirectory(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{Port: "8080", DBPath: dir + "/nested/accounting.db"}

	require.NoError(t, cfg.Validate())
	assert.DirExists(t, dir+"/nested")
}

func TestIsAdmin(t *testing.T) {
	cfg := &config.Config{AdminIDs: []int64{42, 1001}}
	assert.True(t, cfg.IsAdmin(42))
	assert.True(t, cfg.IsAdmin(1001))
	assert.False(t, cfg.IsAdmin(7))

	empty := &config.Config{}
	assert.False(t, empty.IsAdmin(42), "empty allow-list admits nobody")
}
