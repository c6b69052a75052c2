package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/floorgraph/floorgraph"
	"github.com/floorgraph/floorgraph/cache"
	"github.com/floorgraph/floorgraph/config"
	"github.com/floorgraph/floorgraph/core/extract"
	"github.com/floorgraph/floorgraph/core/predict"
	"github.com/floorgraph/floorgraph/core/train"
	"github.com/floorgraph/floorgraph/dxf"
	"github.com/floorgraph/floorgraph/helper"
	"github.com/floorgraph/floorgraph/model"
)

const version = "0.1.0"

const usage = `Usage: floorgraph <command> [flags]

Commands:
  extract    Convert a DXF floor plan into a graph file
  annotate   Label graph nodes from an annotation file
  embed      Precompute DeepWalk embeddings into the cache
  train      Train the sliding-window classifier
  test       Evaluate the sliding-window classifier
  train-gcn  Train the graph convolutional classifier
  test-gcn   Evaluate the graph convolutional classifier
  predict    Classify a graph and group doors into instances
  neighbors  Find stored nodes with similar embeddings
  version    Print the version

Run 'floorgraph <command> -h' for command flags.`

var logger *slog.Logger

func setupLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{Level: level},
	}
	logger = slog.New(helper.NewPrettyHandler(os.Stderr, opts))
}

// parseFlags parses the subcommand flags after registering the shared
// verbosity flag, and reconfigures the logger accordingly.
func parseFlags(flags *flag.FlagSet) {
	verbose := flags.Bool("v", false, "Enable debug logging")
	flags.Parse(os.Args[2:])
	setupLogger(*verbose)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	setupLogger(false)

	switch os.Args[1] {
	case "extract":
		handleExtract()
	case "annotate":
		handleAnnotate()
	case "embed":
		handleEmbed()
	case "train":
		handleTrain()
	case "test":
		handleTest()
	case "train-gcn":
		handleTrainGCN()
	case "test-gcn":
		handleTestGCN()
	case "predict":
		handlePredict()
	case "neighbors":
		handleNeighbors()
	case "version":
		fmt.Printf("floorgraph version %s\n", version)
	case "help", "-h", "--help":
		fmt.Println(usage)
	default:
		fmt.Println("Unknown command:", os.Args[1])
		fmt.Println(usage)
		os.Exit(1)
	}
}

func fatal(message string, err error) {
	logger.Error(message, slog.String("error", err.Error()))
	os.Exit(1)
}

func loadConfig(path string) *config.RunConfig {
	runConfig, err := config.Load(path)
	if err != nil {
		fatal("Failed to load configuration", err)
	}
	return runConfig
}

func handleExtract() {
	flags := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := flags.String("config", "", "Configuration file")
	in := flags.String("in", "", "DXF input file")
	out := flags.String("out", "", "Graph output file (default: input with .json)")
	parseFlags(flags)

	if *in == "" {
		fatal("Missing flag", fmt.Errorf("-in is required"))
	}
	runConfig := loadConfig(*configPath)

	name := strings.TrimSuffix(filepath.Base(*in), filepath.Ext(*in))
	outPath := *out
	if outPath == "" {
		outPath = strings.TrimSuffix(*in, filepath.Ext(*in)) + ".json"
	}

	entities, err := dxf.ParseFile(*in)
	if err != nil {
		fatal("Failed to parse DXF file", err)
	}
	logger.Info("Parsed DXF file", slog.String("file", *in), slog.Int("entities", len(entities)))

	g, err := extract.New(runConfig.Extract).Extract(name, entities)
	if err != nil {
		fatal("Failed to extract graph", err)
	}
	extract.ComputeFeatures(g)

	if err := g.WriteFile(outPath); err != nil {
		fatal("Failed to write graph file", err)
	}
	logger.Info(
		"Extracted graph",
		slog.String("file", outPath),
		slog.Int("nodes", len(g.Nodes)),
		slog.Int("edges", len(g.Edges)),
	)
}

// annotationFile is the YAML layout of an annotation file.
type annotationFile struct {
	Annotations []model.Annotation `yaml:"annotations"`
}

func handleAnnotate() {
	flags := flag.NewFlagSet("annotate", flag.ExitOnError)
	graphPath := flags.String("graph", "", "Graph file to label")
	annotationsPath := flags.String("annotations", "", "YAML annotation file")
	out := flags.String("out", "", "Output file (default: overwrite the graph file)")
	parseFlags(flags)

	if *graphPath == "" {
		fatal("Missing flag", fmt.Errorf("-graph is required"))
	}
	outPath := *out
	if outPath == "" {
		outPath = *graphPath
	}

	g, err := model.ReadGraphFile(*graphPath)
	if err != nil {
		fatal("Failed to read graph file", err)
	}

	// Without an annotation file just report the current label counts.
	if *annotationsPath == "" {
		for label, count := range model.LabelCounts(g) {
			fmt.Printf("label %2d: %d nodes\n", label, count)
		}
		return
	}

	data, err := os.ReadFile(*annotationsPath)
	if err != nil {
		fatal("Failed to read annotation file", err)
	}
	var file annotationFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		fatal("Failed to parse annotation file", err)
	}

	counts, err := model.ApplyAnnotations(g, file.Annotations)
	if err != nil {
		fatal("Failed to apply annotations", err)
	}
	if err := g.WriteFile(outPath); err != nil {
		fatal("Failed to write graph file", err)
	}
	logger.Info(
		"Annotated graph",
		slog.String("file", outPath),
		slog.Int("doors", counts[model.ClassDoor]),
		slog.Int("other", counts[model.ClassOther]),
	)
}

func handleEmbed() {
	flags := flag.NewFlagSet("embed", flag.ExitOnError)
	configPath := flags.String("config", "", "Configuration file")
	list := flags.String("list", "", "File list (default: the train list)")
	parseFlags(flags)

	runConfig := loadConfig(*configPath)
	listPath := *list
	if listPath == "" {
		listPath = runConfig.TrainListPath()
	}

	graphs := loadGraphList(runConfig, listPath)
	store, err := cache.NewStore(runConfig.CacheDir, logger)
	if err != nil {
		fatal("Failed to open embedding cache", err)
	}

	for _, g := range graphs {
		if _, err := store.Embeddings(g, runConfig.Walk); err != nil {
			fatal(fmt.Sprintf("Failed to embed graph %s", g.Name), err)
		}
	}
	logger.Info("Embedded graphs", slog.Int("graphs", len(graphs)))
}

func handleTrain() {
	flags := flag.NewFlagSet("train", flag.ExitOnError)
	configPath := flags.String("config", "", "Configuration file")
	modelPath := flags.String("model", "window.model", "Checkpoint output file")
	parseFlags(flags)

	runConfig := loadConfig(*configPath)
	graphs := loadGraphList(runConfig, runConfig.TrainListPath())

	m := train.NewWindowModel(extract.NumFeatures, runConfig.Window)
	if err := m.Train(graphs, logger); err != nil {
		fatal("Training failed", err)
	}

	metrics, err := m.Evaluate(graphs)
	if err != nil {
		fatal("Evaluation failed", err)
	}
	fmt.Println(metrics)

	if err := m.Save(*modelPath); err != nil {
		fatal("Failed to save checkpoint", err)
	}
	logger.Info("Saved checkpoint", slog.String("file", *modelPath))
}

func handleTest() {
	flags := flag.NewFlagSet("test", flag.ExitOnError)
	configPath := flags.String("config", "", "Configuration file")
	modelPath := flags.String("model", "window.model", "Checkpoint file")
	parseFlags(flags)

	runConfig := loadConfig(*configPath)
	graphs := loadGraphList(runConfig, runConfig.TestListPath())

	m, err := train.LoadWindowModel(*modelPath)
	if err != nil {
		fatal("Failed to load checkpoint", err)
	}
	metrics, err := m.Evaluate(graphs)
	if err != nil {
		fatal("Evaluation failed", err)
	}
	fmt.Println(metrics)
}

func handleTrainGCN() {
	flags := flag.NewFlagSet("train-gcn", flag.ExitOnError)
	configPath := flags.String("config", "", "Configuration file")
	modelPath := flags.String("model", "gcn.model", "Checkpoint output file")
	parseFlags(flags)

	runConfig := loadConfig(*configPath)
	graphs := loadGraphList(runConfig, runConfig.TrainListPath())

	numInputs := extract.NumFeatures
	if runConfig.GCN.UseEmbeddings {
		numInputs += runConfig.Walk.Dimensions
	}
	m := train.NewGCNModel(numInputs, runConfig.GCN)

	if err := m.Train(graphs, cachedEmbeddings(runConfig), logger); err != nil {
		fatal("Training failed", err)
	}

	metrics, err := m.Evaluate(graphs, cachedEmbeddings(runConfig))
	if err != nil {
		fatal("Evaluation failed", err)
	}
	fmt.Println(metrics)

	if err := m.Save(*modelPath); err != nil {
		fatal("Failed to save checkpoint", err)
	}
	logger.Info("Saved checkpoint", slog.String("file", *modelPath))
}

func handleTestGCN() {
	flags := flag.NewFlagSet("test-gcn", flag.ExitOnError)
	configPath := flags.String("config", "", "Configuration file")
	modelPath := flags.String("model", "gcn.model", "Checkpoint file")
	parseFlags(flags)

	runConfig := loadConfig(*configPath)
	graphs := loadGraphList(runConfig, runConfig.TestListPath())

	m, err := train.LoadGCNModel(*modelPath)
	if err != nil {
		fatal("Failed to load checkpoint", err)
	}
	metrics, err := m.Evaluate(graphs, cachedEmbeddings(runConfig))
	if err != nil {
		fatal("Evaluation failed", err)
	}
	fmt.Println(metrics)
}

func handlePredict() {
	flags := flag.NewFlagSet("predict", flag.ExitOnError)
	configPath := flags.String("config", "", "Configuration file")
	modelPath := flags.String("model", "window.model", "Checkpoint file")
	graphPath := flags.String("graph", "", "Graph file to classify")
	list := flags.String("list", "", "File list of graphs to classify in place")
	out := flags.String("out", "", "Output file (default: overwrite the graph file)")
	toDB := flags.Bool("db", false, "Also store the graphs and their classes in postgres")
	parseFlags(flags)

	if (*graphPath == "") == (*list == "") {
		fatal("Missing flag", fmt.Errorf("exactly one of -graph and -list is required"))
	}
	runConfig := loadConfig(*configPath)

	classify, err := predict.LoadClassifier(*modelPath, cachedEmbeddings(runConfig))
	if err != nil {
		fatal("Failed to load classifier", err)
	}

	var paths []string
	if *graphPath != "" {
		paths = []string{*graphPath}
	} else {
		paths, err = train.ReadFileList(runConfig.DataDir, *list)
		if err != nil {
			fatal("Failed to read file list", err)
		}
	}

	for _, path := range paths {
		g, err := model.ReadGraphFile(path)
		if err != nil {
			fatal("Failed to read graph file", err)
		}

		result, err := predict.Run(g, classify, runConfig.Predict, logger)
		if err != nil {
			fatal(fmt.Sprintf("Prediction failed for %s", g.Name), err)
		}

		outPath := path
		if *out != "" && *graphPath != "" {
			outPath = *out
		}
		if err := g.WriteFile(outPath); err != nil {
			fatal("Failed to write graph file", err)
		}
		logger.Info(
			"Wrote predictions",
			slog.String("file", outPath),
			slog.Int("doors", result.Doors),
		)

		if *toDB {
			storeGraph(runConfig, g)
		}
	}
}

func handleNeighbors() {
	flags := flag.NewFlagSet("neighbors", flag.ExitOnError)
	configPath := flags.String("config", "", "Configuration file")
	graphName := flags.String("graph", "", "Stored graph name")
	nodeID := flags.Int("node", 0, "Query node ID")
	limit := flags.Int("limit", 10, "Number of neighbors")
	all := flags.Bool("all", false, "Search across all stored graphs")
	parseFlags(flags)

	if *graphName == "" {
		fatal("Missing flag", fmt.Errorf("-graph is required"))
	}
	runConfig := loadConfig(*configPath)

	fg := openFloorGraph(runConfig)
	defer fg.Close()

	record, err := fg.Graphs.SelectGraphByName(*graphName)
	if err != nil {
		fatal("Failed to select graph", err)
	}
	node, err := fg.Nodes.SelectNode(record.RID, *nodeID)
	if err != nil {
		fatal("Failed to select node", err)
	}
	if node.Embedding == nil {
		fatal("No embedding", fmt.Errorf("node %d of graph %s has no stored embedding", *nodeID, *graphName))
	}

	query := make([]float64, len(node.Embedding))
	for i, v := range node.Embedding {
		query[i] = float64(v)
	}
	scope := *graphName
	if *all {
		scope = ""
	}
	results, err := fg.NearestNodes(scope, query, *limit)
	if err != nil {
		fatal("Similarity search failed", err)
	}

	fmt.Printf("Neighbors of node %d in graph %s\n", *nodeID, *graphName)
	for i, result := range results {
		fmt.Printf(
			"%2d. node %d at (%.1f, %.1f) label %d distance %.4f\n",
			i+1,
			result.Node.NodeID,
			result.Node.X,
			result.Node.Y,
			result.Node.Label,
			result.Distance,
		)
	}
}

func loadGraphList(runConfig *config.RunConfig, listPath string) []*model.Graph {
	paths, err := train.ReadFileList(runConfig.DataDir, listPath)
	if err != nil {
		fatal("Failed to read file list", err)
	}
	graphs, err := train.LoadGraphs(paths)
	if err != nil {
		fatal("Failed to load graphs", err)
	}
	logger.Info("Loaded graphs", slog.String("list", listPath), slog.Int("graphs", len(graphs)))
	return graphs
}

// cachedEmbeddings returns an embedding source backed by the cache dir.
// The cache store is opened lazily so commands that never touch
// embeddings don't create the cache dir.
func cachedEmbeddings(runConfig *config.RunConfig) train.EmbeddingFunc {
	var store *cache.Store
	return func(g *model.Graph) ([][]float64, error) {
		if store == nil {
			var err error
			store, err = cache.NewStore(runConfig.CacheDir, logger)
			if err != nil {
				return nil, err
			}
		}
		return store.Embeddings(g, runConfig.Walk)
	}
}

func openFloorGraph(runConfig *config.RunConfig) *floorgraph.FloorGraph {
	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		fatal("Failed to load database configuration", err)
	}
	fg, err := floorgraph.NewFloorGraph(dbConfig, runConfig.Walk.Dimensions)
	if err != nil {
		fatal("Failed to connect to database", err)
	}
	return fg
}

// storeGraph saves a classified graph with its cached embeddings so the
// similarity search has vectors to work with.
func storeGraph(runConfig *config.RunConfig, g *model.Graph) {
	fg := openFloorGraph(runConfig)
	defer fg.Close()

	embeddings, err := cachedEmbeddings(runConfig)(g)
	if err != nil {
		fatal("Failed to embed graph", err)
	}
	if _, err := fg.SaveGraph(g, embeddings); err != nil {
		fatal("Failed to store graph", err)
	}
	logger.Info("Stored graph", slog.String("name", g.Name))
}
