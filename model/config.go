package model

// WalkConfig controls DeepWalk random walks and skip-gram training.
type WalkConfig struct {
	WalksPerNode int     `json:"walks_per_node" yaml:"walks_per_node"`
	WalkLength   int     `json:"walk_length" yaml:"walk_length"`
	Window       int     `json:"window" yaml:"window"`
	Dimensions   int     `json:"dimensions" yaml:"dimensions"`
	Negatives    int     `json:"negatives" yaml:"negatives"`
	Epochs       int     `json:"epochs" yaml:"epochs"`
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`
	Seed         uint64  `json:"seed" yaml:"seed"`
}

// DefaultWalkConfig returns the embedding defaults.
func DefaultWalkConfig() WalkConfig {
	return WalkConfig{
		WalksPerNode: 10,
		WalkLength:   40,
		Window:       5,
		Dimensions:   64,
		Negatives:    5,
		Epochs:       5,
		LearningRate: 0.025,
		Seed:         1,
	}
}

// WindowConfig controls the sliding-window feature classifier.
type WindowConfig struct {
	WindowSize   int     `json:"window_size" yaml:"window_size"`
	HiddenSizes  []int   `json:"hidden_sizes" yaml:"hidden_sizes"`
	Epochs       int     `json:"epochs" yaml:"epochs"`
	BatchSize    int     `json:"batch_size" yaml:"batch_size"`
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`
	WeightDecay  float64 `json:"weight_decay" yaml:"weight_decay"`
	Seed         uint64  `json:"seed" yaml:"seed"`
}

// DefaultWindowConfig returns the window model defaults.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		WindowSize:   8,
		HiddenSizes:  []int{64, 32},
		Epochs:       50,
		BatchSize:    256,
		LearningRate: 1e-3,
		WeightDecay:  5e-4,
		Seed:         1,
	}
}

// GCNConfig controls the graph convolutional model.
type GCNConfig struct {
	HiddenSize    int     `json:"hidden_size" yaml:"hidden_size"`
	Epochs        int     `json:"epochs" yaml:"epochs"`
	BatchGraphs   int     `json:"batch_graphs" yaml:"batch_graphs"`
	LearningRate  float64 `json:"learning_rate" yaml:"learning_rate"`
	WeightDecay   float64 `json:"weight_decay" yaml:"weight_decay"`
	UseEmbeddings bool    `json:"use_embeddings" yaml:"use_embeddings"`
	Seed          uint64  `json:"seed" yaml:"seed"`
}

// DefaultGCNConfig returns the GCN defaults.
func DefaultGCNConfig() GCNConfig {
	return GCNConfig{
		HiddenSize:    32,
		Epochs:        200,
		BatchGraphs:   4,
		LearningRate:  1e-2,
		WeightDecay:   5e-4,
		UseEmbeddings: true,
		Seed:          1,
	}
}

// PredictConfig controls prediction post-processing.
type PredictConfig struct {
	MorphologyClosing bool    `json:"morphology_closing" yaml:"morphology_closing"`
	DBSCANEps         float64 `json:"dbscan_eps" yaml:"dbscan_eps"`
	DBSCANMinPoints   int     `json:"dbscan_min_points" yaml:"dbscan_min_points"`
	MinInstanceNodes  int     `json:"min_instance_nodes" yaml:"min_instance_nodes"`
	MaxInstanceWidth  float64 `json:"max_instance_width" yaml:"max_instance_width"`
	MaxInstanceHeight float64 `json:"max_instance_height" yaml:"max_instance_height"`
	MinInstanceRatio  float64 `json:"min_instance_ratio" yaml:"min_instance_ratio"`
	UseIQRRejection   bool    `json:"use_iqr_rejection" yaml:"use_iqr_rejection"`
}

// DefaultPredictConfig returns the prediction defaults.
func DefaultPredictConfig() PredictConfig {
	return PredictConfig{
		MorphologyClosing: false,
		DBSCANEps:         1100,
		DBSCANMinPoints:   1,
		MinInstanceNodes:  8,
		MaxInstanceWidth:  3000,
		MaxInstanceHeight: 3000,
		MinInstanceRatio:  0.3,
		UseIQRRejection:   false,
	}
}

// ExtractConfig controls DXF to graph conversion.
type ExtractConfig struct {
	MaxSegment   float64 `json:"max_segment" yaml:"max_segment"`
	MergeRadius  float64 `json:"merge_radius" yaml:"merge_radius"`
	ArcStepAngle float64 `json:"arc_step_angle" yaml:"arc_step_angle"`
}

// DefaultExtractConfig returns the extraction defaults. MaxSegment and
// MergeRadius are in drawing units, ArcStepAngle in degrees.
func DefaultExtractConfig() ExtractConfig {
	return ExtractConfig{
		MaxSegment:   100,
		MergeRadius:  1e-3,
		ArcStepAngle: 15,
	}
}
