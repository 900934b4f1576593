// Package gateway wraps the pre-trained churn classifier artifact and
// exposes label and probability predictions over tabular records.
package gateway

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sells-group/churn-cli/internal/model"
)

// Gateway predicts churn over a table whose columns include every column
// the artifact reads. Both operations return one value per row in row
// order and fail with *model.SchemaMismatch when a column is absent.
type Gateway interface {
	PredictLabel(t *model.Table) ([]bool, error)
	PredictProbability(t *model.Table) ([]float64, error)
}

// LoadFunc produces an artifact. It is called at most once per successful
// load.
type LoadFunc func() (*Ensemble, error)

// Loader is a Gateway that loads its artifact on first use and serves the
// cached, read-only artifact afterwards. Concurrent first callers share a
// single load. A failed load is not cached.
type Loader struct {
	load LoadFunc

	mu       sync.Mutex
	ensemble atomic.Pointer[Ensemble]
}

// NewLoader returns a lazy Gateway over the given load function.
func NewLoader(load LoadFunc) *Loader {
	return &Loader{load: load}
}

// NewFileLoader returns a lazy Gateway reading the artifact at path.
func NewFileLoader(path string) *Loader {
	return NewLoader(func() (*Ensemble, error) {
		return LoadEnsemble(path)
	})
}

// Ensemble returns the loaded artifact, loading it if needed.
func (l *Loader) Ensemble() (*Ensemble, error) {
	if e := l.ensemble.Load(); e != nil {
		return e, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if e := l.ensemble.Load(); e != nil {
		return e, nil
	}

	e, err := l.load()
	if err != nil {
		return nil, err
	}
	l.ensemble.Store(e)
	zap.L().Info("gateway: model artifact loaded",
		zap.String("version", e.Version),
		zap.String("algorithm", e.Algorithm),
		zap.Int("trees", len(e.Trees)),
	)
	return e, nil
}

// PredictLabel implements Gateway.
func (l *Loader) PredictLabel(t *model.Table) ([]bool, error) {
	e, err := l.Ensemble()
	if err != nil {
		return nil, err
	}
	return e.PredictLabel(t)
}

// PredictProbability implements Gateway.
func (l *Loader) PredictProbability(t *model.Table) ([]float64, error) {
	e, err := l.Ensemble()
	if err != nil {
		return nil, err
	}
	return e.PredictProbability(t)
}
