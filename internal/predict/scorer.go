package predict

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/churn-cli/internal/gateway"
	"github.com/sells-group/churn-cli/internal/ingest"
	"github.com/sells-group/churn-cli/internal/model"
	"github.com/sells-group/churn-cli/internal/validate"
)

// BatchOptions tunes upload parsing and batch summaries.
type BatchOptions struct {
	TopN          int // high-risk rows kept in the summary (default 10)
	HistogramBins int // probability histogram bins (default 20)
	Ingest        ingest.Options
}

func (o BatchOptions) withDefaults() BatchOptions {
	if o.TopN <= 0 {
		o.TopN = 10
	}
	if o.HistogramBins <= 0 {
		o.HistogramBins = 20
	}
	return o
}

// Scorer scores whole datasets in one gateway call.
type Scorer struct {
	validator *validate.Validator
	gateway   gateway.Gateway
	opts      BatchOptions
}

// NewScorer returns a batch scorer.
func NewScorer(v *validate.Validator, g gateway.Gateway, opts BatchOptions) *Scorer {
	return &Scorer{validator: v, gateway: g, opts: opts.withDefaults()}
}

// ScoreBatch parses an uploaded file (format chosen by filename extension)
// and scores it. It returns *model.IngestError for unparseable files or
// cells, *model.MissingColumns when required columns are absent, and an
// ErrInternal-tagged error for gateway faults. No artifact is produced on
// any failure.
func (s *Scorer) ScoreBatch(ctx context.Context, filename string, r io.Reader) (*ResultArtifact, error) {
	table, err := ingest.Load(ctx, filename, r, s.opts.Ingest)
	if err != nil {
		return nil, err
	}

	res, err := s.ScoreTable(table)
	if err != nil {
		return nil, err
	}
	res.Source = filename
	return res, nil
}

// ScoreTable scores an already parsed table.
func (s *Scorer) ScoreTable(t *model.Table) (*ResultArtifact, error) {
	if err := s.validator.ValidateDataset(t); err != nil {
		return nil, err
	}
	for i, row := range t.Rows {
		if len(row) > len(t.Columns) {
			return nil, &model.IngestError{Cause: eris.Errorf("row %d has %d fields, header has %d", i+1, len(row), len(t.Columns))}
		}
	}

	labels, err := s.gateway.PredictLabel(t)
	if err != nil {
		return nil, classify(err, "predict label")
	}
	probs, err := s.gateway.PredictProbability(t)
	if err != nil {
		return nil, classify(err, "predict probability")
	}
	if len(labels) != t.Len() || len(probs) != t.Len() {
		return nil, internalFault(eris.Errorf("gateway returned %d labels, %d probabilities for %d rows", len(labels), len(probs), t.Len()), "score batch")
	}

	res := &ResultArtifact{
		Columns:       append([]string(nil), t.Columns...),
		Rows:          t.Rows,
		Predictions:   labels,
		Probabilities: probs,
		CreatedAt:     time.Now().UTC(),
	}
	res.Summary = summarize(res, s.opts)

	zap.L().Info("predict: batch scored",
		zap.Int("rows", res.Summary.Total),
		zap.Int("churned", res.Summary.Churned),
		zap.Int("retained", res.Summary.Retained),
	)
	return res, nil
}

// classify maps a cell conversion failure to an ingest error; anything
// else from the gateway is an internal fault.
func classify(err error, action string) error {
	var conv *gateway.ConversionError
	if errors.As(err, &conv) {
		return &model.IngestError{Cause: err}
	}
	return internalFault(err, action)
}
