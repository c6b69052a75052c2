// Package train implements the two model families: the sliding-window
// feature classifier and the graph convolutional network over batched
// graphs, together with checkpointing and train/test file lists.
package train

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/floorgraph/floorgraph/model"
)

// ReadFileList reads graph paths from a list file, one per line. Blank
// lines and lines starting with # are skipped. Relative paths are resolved
// against dataDir.
func ReadFileList(dataDir, listPath string) ([]string, error) {
	f, err := os.Open(listPath)
	if err != nil {
		return nil, fmt.Errorf("open file list: %w", err)
	}
	defer f.Close()

	var paths []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(dataDir, line)
		}
		paths = append(paths, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read file list: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("file list %s names no graphs", listPath)
	}
	return paths, nil
}

// LoadGraphs reads every graph named by paths.
func LoadGraphs(paths []string) ([]*model.Graph, error) {
	graphs := make([]*model.Graph, 0, len(paths))
	for _, path := range paths {
		g, err := model.ReadGraphFile(path)
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, g)
	}
	return graphs, nil
}
