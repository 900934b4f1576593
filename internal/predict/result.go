package predict

import (
	"encoding/csv"
	"io"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/churn-cli/internal/model"
)

// ExportFilename and ExportContentType describe the download.
const (
	ExportFilename    = "churn_predictions.csv"
	ExportContentType = "text/csv"
)

// ResultArtifact is an uploaded dataset with one verdict per row. Rows are
// the original rows in original order.
type ResultArtifact struct {
	Source        string     `json:"source,omitempty"`
	Columns       []string   `json:"columns"`
	Rows          [][]string `json:"-"`
	Predictions   []bool     `json:"-"`
	Probabilities []float64  `json:"-"`
	Summary       Summary    `json:"summary"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Summary is the derived view of a batch run.
type Summary struct {
	Total     int       `json:"total"`
	Churned   int       `json:"churned"`
	Retained  int       `json:"retained"`
	TopRisk   []RiskRow `json:"top_risk"`
	Histogram []Bin     `json:"histogram"`
}

// RiskRow is one churn-predicted row. Index is zero-based over data rows.
type RiskRow struct {
	Index       int               `json:"index"`
	Probability float64           `json:"probability"`
	Record      map[string]string `json:"record"`
}

// Bin counts probabilities in [Lower, Upper); the last bin also holds 1.0.
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Verdict returns the verdict for row i.
func (r *ResultArtifact) Verdict(i int) model.Verdict {
	return model.NewVerdict(r.Predictions[i], r.Probabilities[i])
}

// Header returns the export header: original columns followed by the two
// result columns.
func (r *ResultArtifact) Header() []string {
	h := make([]string, 0, len(r.Columns)+2)
	h = append(h, r.Columns...)
	return append(h, model.ColChurnPrediction, model.ColChurnProbability)
}

// Export writes the augmented dataset as CSV.
func (r *ResultArtifact) Export(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(r.Header()); err != nil {
		return eris.Wrap(err, "export: write header")
	}

	width := len(r.Columns)
	for i := range r.Rows {
		if err := cw.Write(r.exportRow(i, width)); err != nil {
			return eris.Wrapf(err, "export: write row %d", i)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush")
}

func (r *ResultArtifact) exportRow(i, width int) []string {
	out := make([]string, width, width+2)
	copy(out, r.Rows[i])

	pred := "0"
	if r.Predictions[i] {
		pred = "1"
	}
	return append(out, pred, model.FormatProbability(r.Probabilities[i]))
}

func (r *ResultArtifact) record(i int) map[string]string {
	rec := make(map[string]string, len(r.Columns))
	row := r.Rows[i]
	for j, c := range r.Columns {
		if j < len(row) {
			rec[c] = row[j]
		} else {
			rec[c] = ""
		}
	}
	return rec
}

func summarize(r *ResultArtifact, opts BatchOptions) Summary {
	s := Summary{Total: len(r.Rows)}

	var churned []int
	for i, p := range r.Predictions {
		if p {
			churned = append(churned, i)
		}
	}
	s.Churned = len(churned)
	s.Retained = s.Total - s.Churned

	sort.SliceStable(churned, func(a, b int) bool {
		return r.Probabilities[churned[a]] > r.Probabilities[churned[b]]
	})
	if len(churned) > opts.TopN {
		churned = churned[:opts.TopN]
	}
	s.TopRisk = make([]RiskRow, 0, len(churned))
	for _, i := range churned {
		s.TopRisk = append(s.TopRisk, RiskRow{
			Index:       i,
			Probability: r.Probabilities[i],
			Record:      r.record(i),
		})
	}

	s.Histogram = histogram(r.Probabilities, opts.HistogramBins)
	return s
}

func histogram(probs []float64, n int) []Bin {
	bins := make([]Bin, n)
	width := 1.0 / float64(n)
	for i := range bins {
		bins[i].Lower = float64(i) * width
		bins[i].Upper = float64(i+1) * width
	}
	bins[n-1].Upper = 1

	for _, p := range probs {
		i := int(p * float64(n))
		if i >= n {
			i = n - 1
		}
		if i < 0 {
			i = 0
		}
		bins[i].Count++
	}
	return bins
}
