package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/nrps/errors"
)

func TestSetValue(t *testing.T) {
	home := isolate(t)
	path := UserConfigPath()
	require.Equal(t, filepath.Join(home, ".nrps", "nrps.toml"), path)

	require.NoError(t, SetValue(path, "models.dir", "/srv/models"))
	require.NoError(t, SetValue(path, "predict.count", "3"))
	require.NoError(t, SetValue(path, "stachelhaus.enabled", "false"))
	require.NoError(t, SetValue(path, "models.schemes", "AA34, NRPS3_THREE_CLUSTER"))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/models", cfg.Models.Dir)
	assert.Equal(t, 3, cfg.Predict.Count)
	assert.False(t, cfg.Stachelhaus.Enabled)
	assert.Equal(t, []string{"AA34", "NRPS3_THREE_CLUSTER"}, cfg.Models.Schemes)

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Predict.Count, "the cached config is dropped after a write")
}

func TestSetValueBackups(t *testing.T) {
	isolate(t)
	path := UserConfigPath()

	for _, n := range []string{"1", "2", "3", "4", "5"} {
		require.NoError(t, SetValue(path, "predict.count", n))
	}

	assert.FileExists(t, path+".back1")
	assert.FileExists(t, path+".back2")
	assert.FileExists(t, path+".back3")
	_, err := os.Stat(path + ".back4")
	assert.True(t, os.IsNotExist(err), "only three backups are kept")

	back1, err := LoadFromFile(path + ".back1")
	require.NoError(t, err)
	assert.Equal(t, 4, back1.Predict.Count)
}

func TestSetValueRejects(t *testing.T) {
	isolate(t)
	path := UserConfigPath()

	err := SetValue(path, "server.port", "8080")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))

	err = SetValue(path, "predict.count", "many")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	err = SetValue(path, "database.save", "maybe")
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing is written on a rejected value")
}
