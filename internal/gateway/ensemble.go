package gateway

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/churn-cli/internal/model"
)

// FeatureKind describes how a column is encoded before tree evaluation.
type FeatureKind string

const (
	KindNumeric     FeatureKind = "numeric"
	KindCategorical FeatureKind = "categorical"
)

// DefaultThreshold applies when the artifact carries no threshold key.
const DefaultThreshold = 0.5

// Feature is one input column of the artifact. Categorical features are
// one-hot encoded over Categories; unknown values encode to all zeros.
type Feature struct {
	Name       string      `json:"name"`
	Kind       FeatureKind `json:"kind"`
	Categories []string    `json:"categories,omitempty"`
}

// TreeNode is one node of a regression tree. Feature indexes into the
// encoded vector, not into the raw column list.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Value     float64 `json:"value"`
	IsLeaf    bool    `json:"is_leaf"`
}

// Tree is a flat array of nodes rooted at index 0.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// Metrics are the hold-out scores recorded when the artifact was trained.
type Metrics struct {
	Accuracy float64 `json:"accuracy"`
	Recall   float64 `json:"recall"`
	F1       float64 `json:"f1"`
}

// Ensemble is a gradient-boosted binary classifier artifact.
type Ensemble struct {
	Version      string    `json:"version"`
	Algorithm    string    `json:"algorithm"`
	Features     []Feature `json:"features"`
	InitScore    float64   `json:"init_score"`
	LearningRate float64   `json:"learning_rate"`
	Threshold    *float64  `json:"threshold,omitempty"`
	Trees        []Tree    `json:"trees"`
	Metrics      Metrics   `json:"metrics"`

	width int
}

// Card is the display summary of a loaded artifact.
type Card struct {
	Version   string  `json:"version"`
	Algorithm string  `json:"algorithm"`
	Threshold float64 `json:"threshold"`
	Trees     int     `json:"trees"`
	Metrics   Metrics `json:"metrics"`
}

// ConversionError reports a cell the numeric conversion could not coerce.
// Row is zero-based over data rows.
type ConversionError struct {
	Row    int
	Column string
	Value  string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("row %d column %s: cannot convert %q to a number", e.Row, e.Column, e.Value)
}

// LoadEnsemble reads and checks an artifact from disk.
func LoadEnsemble(path string) (*Ensemble, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "gateway: read artifact %s", path)
	}
	return ParseEnsemble(payload)
}

// ParseEnsemble decodes and checks an artifact.
func ParseEnsemble(payload []byte) (*Ensemble, error) {
	var e Ensemble
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, eris.Wrap(err, "gateway: decode artifact")
	}
	if err := e.init(); err != nil {
		return nil, err
	}
	return &e, nil
}

// init fills defaults and checks that every split references a real slot
// of the encoded vector and every child index is in range.
func (e *Ensemble) init() error {
	if len(e.Features) == 0 {
		return eris.New("gateway: artifact has no features")
	}
	if len(e.Trees) == 0 {
		return eris.New("gateway: artifact has no trees")
	}
	if e.Threshold == nil {
		th := DefaultThreshold
		e.Threshold = &th
	}
	if th := *e.Threshold; math.IsNaN(th) || th < 0 || th > 1 {
		return eris.Errorf("gateway: threshold %v outside [0, 1]", th)
	}
	if e.LearningRate == 0 {
		e.LearningRate = 1
	}

	e.width = 0
	for _, f := range e.Features {
		switch f.Kind {
		case KindNumeric:
			e.width++
		case KindCategorical:
			if len(f.Categories) == 0 {
				return eris.Errorf("gateway: categorical feature %s has no categories", f.Name)
			}
			e.width += len(f.Categories)
		default:
			return eris.Errorf("gateway: feature %s has unknown kind %q", f.Name, f.Kind)
		}
	}

	for ti, t := range e.Trees {
		if len(t.Nodes) == 0 {
			return eris.Errorf("gateway: tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.IsLeaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= e.width {
				return eris.Errorf("gateway: tree %d node %d splits on feature %d (width %d)", ti, ni, n.Feature, e.width)
			}
			if n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return eris.Errorf("gateway: tree %d node %d has invalid children", ti, ni)
			}
		}
	}
	return nil
}

// Columns returns the raw column names the artifact reads.
func (e *Ensemble) Columns() []string {
	cols := make([]string, len(e.Features))
	for i, f := range e.Features {
		cols[i] = f.Name
	}
	return cols
}

// Card returns the display summary of the artifact.
func (e *Ensemble) Card() Card {
	return Card{
		Version:   e.Version,
		Algorithm: e.Algorithm,
		Threshold: *e.Threshold,
		Trees:     len(e.Trees),
		Metrics:   e.Metrics,
	}
}

// PredictProbability returns the churn-class probability for every row,
// in row order.
func (e *Ensemble) PredictProbability(t *model.Table) ([]float64, error) {
	idx, err := e.resolve(t)
	if err != nil {
		return nil, err
	}

	probs := make([]float64, t.Len())
	x := make([]float64, e.width)
	for row := range t.Rows {
		if err := e.encode(t, row, idx, x); err != nil {
			return nil, err
		}
		probs[row] = logistic(e.rawScore(x))
	}
	return probs, nil
}

// PredictLabel returns the churn label for every row, in row order.
func (e *Ensemble) PredictLabel(t *model.Table) ([]bool, error) {
	probs, err := e.PredictProbability(t)
	if err != nil {
		return nil, err
	}
	threshold := *e.Threshold
	labels := make([]bool, len(probs))
	for i, p := range probs {
		labels[i] = p > threshold
	}
	return labels, nil
}

// resolve maps each artifact feature to its column position in t.
func (e *Ensemble) resolve(t *model.Table) ([]int, error) {
	idx := make([]int, len(e.Features))
	var missing []string
	for i, f := range e.Features {
		idx[i] = t.ColumnIndex(f.Name)
		if idx[i] < 0 {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return nil, &model.SchemaMismatch{Columns: missing}
	}
	return idx, nil
}

func (e *Ensemble) encode(t *model.Table, row int, idx []int, x []float64) error {
	pos := 0
	for i, f := range e.Features {
		raw := t.Cell(row, idx[i])
		switch f.Kind {
		case KindNumeric:
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil || math.IsNaN(v) {
				return &ConversionError{Row: row, Column: f.Name, Value: raw}
			}
			x[pos] = v
			pos++
		case KindCategorical:
			for _, c := range f.Categories {
				if raw == c {
					x[pos] = 1
				} else {
					x[pos] = 0
				}
				pos++
			}
		}
	}
	return nil
}

func (e *Ensemble) rawScore(x []float64) float64 {
	sum := 0.0
	for _, t := range e.Trees {
		sum += t.eval(x)
	}
	return e.InitScore + e.LearningRate*sum
}

// eval walks the tree; init guarantees children point forward, so the
// walk terminates.
func (t Tree) eval(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.IsLeaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func logistic(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
