package classifier

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pbaille/nutriscan/internal/domain"
)

// Node is one node of an exported decision tree.
// Leaves have Left == Right == -1 and carry Class.
type Node struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Class     int     `json:"class"`
}

// Tree is a decision tree; samples with value <= threshold go left
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// TreeModel is a decision tree ensemble exported from the training
// pipeline. A single tree is a forest of one. The majority class wins,
// ties going to the lowest class id.
type TreeModel struct {
	Columns []string `json:"columns"`
	Trees   []Tree   `json:"trees"`
}

// LoadTreeModelFile reads a JSON model artifact from disk
func LoadTreeModelFile(path string) (*TreeModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer f.Close()
	return LoadTreeModel(f)
}

// LoadTreeModel decodes and validates a JSON model artifact
func LoadTreeModel(r io.Reader) (*TreeModel, error) {
	var m TreeModel
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *TreeModel) validate() error {
	if len(m.Columns) > 0 {
		if len(m.Columns) != len(domain.FeatureColumns) {
			return fmt.Errorf("model expects %d columns, have %d", len(m.Columns), len(domain.FeatureColumns))
		}
		for i, c := range m.Columns {
			if c != domain.FeatureColumns[i] {
				return fmt.Errorf("model column %d is %q, want %q", i, c, domain.FeatureColumns[i])
			}
		}
	}
	if len(m.Trees) == 0 {
		return fmt.Errorf("model has no trees")
	}

	for ti, t := range m.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Left == -1 && n.Right == -1 {
				continue
			}
			if n.Feature < 0 || n.Feature >= len(domain.FeatureColumns) {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			// children must point forward, which also rules out cycles
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d: bad children", ti, ni)
			}
		}
	}
	return nil
}

// Predict implements Model
func (m *TreeModel) Predict(ctx context.Context, v domain.FeatureVector) (int, error) {
	x := v.Values()
	votes := make(map[int]int)
	for _, t := range m.Trees {
		votes[t.classify(x)]++
	}

	classes := make([]int, 0, len(votes))
	for c := range votes {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	best := classes[0]
	for _, c := range classes[1:] {
		if votes[c] > votes[best] {
			best = c
		}
	}
	return best, nil
}

func (t Tree) classify(x []float64) int {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Left == -1 && n.Right == -1 {
			return n.Class
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

//go:embed default_model.json
var defaultModel []byte

// DefaultModel returns the symptom-driven tree bundled with the binary.
// It stands in until a trained artifact is configured.
func DefaultModel() (*TreeModel, error) {
	return LoadTreeModel(bytes.NewReader(defaultModel))
}
