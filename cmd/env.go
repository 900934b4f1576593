package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/churn-cli/internal/config"
	"github.com/sells-group/churn-cli/internal/gateway"
	"github.com/sells-group/churn-cli/internal/ingest"
	"github.com/sells-group/churn-cli/internal/predict"
	"github.com/sells-group/churn-cli/internal/store"
	"github.com/sells-group/churn-cli/internal/validate"
)

// scoringEnv is the read-only scoring state shared by every command and
// request: the validator, the model card, and the two scoring entry points.
type scoringEnv struct {
	Validator *validate.Validator
	Card      gateway.Card
	Predictor *predict.Predictor
	Scorer    *predict.Scorer
}

// initScoring validates cfg for mode and loads the scoring environment.
func initScoring(ctx context.Context, mode string) (*scoringEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	return loadScoringEnv(ctx, cfg.Model, cfg.Validation, cfg.Batch)
}

// loadScoringEnv reads the reference dataset and the model artifact in
// parallel. Either failure aborts startup.
func loadScoringEnv(ctx context.Context, mc config.ModelConfig, vc config.ValidationConfig, bc config.BatchConfig) (*scoringEnv, error) {
	loader := gateway.NewFileLoader(mc.ArtifactPath)

	var (
		domains  validate.Domains
		ensemble *gateway.Ensemble
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := validate.LoadDomains(gctx, mc.ReferenceDataPath)
		domains = d
		return err
	})
	g.Go(func() error {
		e, err := loader.Ensemble()
		ensemble = e
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "init scoring")
	}

	v := validate.New(validate.Schema{
		Domains:    domains,
		MaxBalance: vc.MaxBalance,
		MaxSalary:  vc.MaxSalary,
	})

	env := &scoringEnv{
		Validator: v,
		Card:      ensemble.Card(),
		Predictor: predict.NewPredictor(v, loader),
		Scorer:    predict.NewScorer(v, loader, batchOptions(bc)),
	}

	zap.L().Info("scoring environment ready",
		zap.String("model_version", env.Card.Version),
		zap.Strings("geography", domains.Geography),
		zap.Strings("gender", domains.Gender),
	)
	return env, nil
}

func batchOptions(bc config.BatchConfig) predict.BatchOptions {
	return predict.BatchOptions{
		TopN:          bc.TopN,
		HistogramBins: bc.HistogramBins,
		Ingest: ingest.Options{
			CSV:  ingest.CSVOptions{Delimiter: bc.Delimiter(), TrimSpace: bc.TrimSpace},
			XLSX: ingest.XLSXOptions{Sheet: bc.Sheet},
		},
	}
}

// initStore opens and migrates the configured account store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	var opts []store.Option
	if sc.BcryptCost > 0 {
		opts = append(opts, store.WithBcryptCost(sc.BcryptCost))
	}

	switch sc.Driver {
	case "sqlite":
		dsn := sc.DatabaseURL
		if dsn == "" {
			dsn = "churn.db"
		}
		return store.NewSQLite(dsn, opts...)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL, &store.PoolConfig{MaxConns: sc.MaxConns, MinConns: sc.MinConns}, opts...)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}
