package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Missing default file yields defaults", func(t *testing.T) {
		wd, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(t.TempDir()))
		defer os.Chdir(wd)

		config, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Default(), config)
	})

	t.Run("Missing named file is an error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("File overrides only named keys", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "floorgraph.yaml")
		content := `
data_dir: /plans
walk:
  dimensions: 32
predict:
  dbscan_eps: 900
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		config, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/plans", config.DataDir)
		assert.Equal(t, 32, config.Walk.Dimensions)
		assert.Equal(t, 900.0, config.Predict.DBSCANEps)

		defaults := Default()
		assert.Equal(t, defaults.CacheDir, config.CacheDir)
		assert.Equal(t, defaults.Walk.WalksPerNode, config.Walk.WalksPerNode)
		assert.Equal(t, defaults.Window, config.Window)
	})

	t.Run("Invalid values are rejected with the offending key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "floorgraph.yaml")
		content := "walk:\n  dimensions: -1\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		_, err := Load(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "walk.dimensions")
	})

	t.Run("Malformed YAML is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "floorgraph.yaml")
		require.NoError(t, os.WriteFile(path, []byte("data_dir: [\n"), 0644))

		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("Defaults validate", func(t *testing.T) {
		assert.NoError(t, Default().Validate())
	})

	t.Run("Empty data dir is rejected", func(t *testing.T) {
		config := Default()
		config.DataDir = ""
		assert.ErrorContains(t, config.Validate(), "data_dir")
	})

	t.Run("Zero DBSCAN minimum points is rejected", func(t *testing.T) {
		config := Default()
		config.Predict.DBSCANMinPoints = 0
		assert.ErrorContains(t, config.Validate(), "dbscan_min_points")
	})
}

func TestListPaths(t *testing.T) {
	t.Run("Relative lists resolve against the data dir", func(t *testing.T) {
		config := Default()
		config.DataDir = "/plans"
		assert.Equal(t, filepath.Join("/plans", "train_file_list.txt"), config.TrainListPath())
		assert.Equal(t, filepath.Join("/plans", "test_file_list.txt"), config.TestListPath())
	})

	t.Run("Absolute lists stay untouched", func(t *testing.T) {
		config := Default()
		config.TrainList = "/lists/train.txt"
		assert.Equal(t, "/lists/train.txt", config.TrainListPath())
	})
}
