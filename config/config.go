// Package config loads the YAML run configuration shared by the CLI
// subcommands. Every section has defaults; a config file only overrides
// what it names.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/floorgraph/floorgraph/helper"
	"github.com/floorgraph/floorgraph/model"
)

// DefaultFileName is the config file looked up in the working directory
// when no path is given.
const DefaultFileName = "floorgraph.yaml"

// RunConfig collects the settings of a full pipeline run.
type RunConfig struct {
	DataDir   string `yaml:"data_dir"`
	CacheDir  string `yaml:"cache_dir"`
	TrainList string `yaml:"train_list"`
	TestList  string `yaml:"test_list"`

	Extract model.ExtractConfig `yaml:"extract"`
	Walk    model.WalkConfig    `yaml:"walk"`
	Window  model.WindowConfig  `yaml:"window"`
	GCN     model.GCNConfig     `yaml:"gcn"`
	Predict model.PredictConfig `yaml:"predict"`
}

// Default returns the configuration used when no file overrides it.
func Default() *RunConfig {
	return &RunConfig{
		DataDir:   "data",
		CacheDir:  "cache",
		TrainList: "train_file_list.txt",
		TestList:  "test_file_list.txt",
		Extract:   model.DefaultExtractConfig(),
		Walk:      model.DefaultWalkConfig(),
		Window:    model.DefaultWindowConfig(),
		GCN:       model.DefaultGCNConfig(),
		Predict:   model.DefaultPredictConfig(),
	}
}

// Load reads a config file over the defaults. A missing file at the
// default location is not an error; a named file must exist.
func Load(path string) (*RunConfig, error) {
	config := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return config, nil
		}
		return nil, helper.NewError("reading config", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, helper.NewError("parsing config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, helper.NewError(fmt.Sprintf("validating config %s", path), err)
	}
	return config, nil
}

// Validate checks the configuration for values no run can work with.
func (c *RunConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir must not be empty")
	}
	if c.Extract.MaxSegment <= 0 {
		return fmt.Errorf("extract.max_segment must be positive, got %v", c.Extract.MaxSegment)
	}
	if c.Extract.MergeRadius <= 0 {
		return fmt.Errorf("extract.merge_radius must be positive, got %v", c.Extract.MergeRadius)
	}
	if c.Extract.ArcStepAngle <= 0 {
		return fmt.Errorf("extract.arc_step_angle must be positive, got %v", c.Extract.ArcStepAngle)
	}
	if c.Walk.Dimensions <= 0 {
		return fmt.Errorf("walk.dimensions must be positive, got %v", c.Walk.Dimensions)
	}
	if c.Walk.WalksPerNode <= 0 || c.Walk.WalkLength <= 0 {
		return fmt.Errorf("walk.walks_per_node and walk.walk_length must be positive")
	}
	if c.Walk.Window <= 0 {
		return fmt.Errorf("walk.window must be positive, got %v", c.Walk.Window)
	}
	if c.Window.WindowSize <= 0 {
		return fmt.Errorf("window.window_size must be positive, got %v", c.Window.WindowSize)
	}
	if c.Window.Epochs <= 0 {
		return fmt.Errorf("window.epochs must be positive, got %v", c.Window.Epochs)
	}
	if c.GCN.HiddenSize <= 0 {
		return fmt.Errorf("gcn.hidden_size must be positive, got %v", c.GCN.HiddenSize)
	}
	if c.GCN.Epochs <= 0 {
		return fmt.Errorf("gcn.epochs must be positive, got %v", c.GCN.Epochs)
	}
	if c.Predict.DBSCANEps <= 0 {
		return fmt.Errorf("predict.dbscan_eps must be positive, got %v", c.Predict.DBSCANEps)
	}
	if c.Predict.DBSCANMinPoints <= 0 {
		return fmt.Errorf("predict.dbscan_min_points must be positive, got %v", c.Predict.DBSCANMinPoints)
	}
	return nil
}

// TrainListPath resolves the train file list against the data dir.
func (c *RunConfig) TrainListPath() string {
	return c.resolve(c.TrainList)
}

// TestListPath resolves the test file list against the data dir.
func (c *RunConfig) TestListPath() string {
	return c.resolve(c.TestList)
}

func (c *RunConfig) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}
