// Package predict scores single customer records and uploaded datasets
// against the model gateway.
package predict

import (
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/churn-cli/internal/gateway"
	"github.com/sells-group/churn-cli/internal/model"
	"github.com/sells-group/churn-cli/internal/validate"
)

// ErrInternal marks gateway faults that are not the caller's doing. It is
// never returned for bad user input.
var ErrInternal = errors.New("internal prediction fault")

// Predictor scores one record at a time. It holds no mutable state.
type Predictor struct {
	validator *validate.Validator
	gateway   gateway.Gateway
}

// NewPredictor returns a single-record predictor.
func NewPredictor(v *validate.Validator, g gateway.Gateway) *Predictor {
	return &Predictor{validator: v, gateway: g}
}

// PredictOne validates raw and scores it. Validation failures are returned
// unchanged as *model.ValidationError; gateway failures are wrapped with
// ErrInternal.
func (p *Predictor) PredictOne(raw validate.RawRecord) (model.Verdict, error) {
	rec, err := p.validator.ValidateSingle(raw)
	if err != nil {
		return model.Verdict{}, err
	}
	return p.Score(rec)
}

// Score runs an already validated record through the gateway.
func (p *Predictor) Score(rec model.CustomerRecord) (model.Verdict, error) {
	table := rec.Table()

	labels, err := p.gateway.PredictLabel(table)
	if err != nil {
		return model.Verdict{}, internalFault(err, "predict label")
	}
	probs, err := p.gateway.PredictProbability(table)
	if err != nil {
		return model.Verdict{}, internalFault(err, "predict probability")
	}
	if len(labels) != 1 || len(probs) != 1 {
		return model.Verdict{}, internalFault(eris.Errorf("gateway returned %d labels, %d probabilities for one row", len(labels), len(probs)), "predict")
	}

	return model.NewVerdict(labels[0], probs[0]), nil
}

// internalFault logs a gateway failure and tags it with ErrInternal while
// keeping the cause reachable through errors.As.
func internalFault(err error, action string) error {
	zap.L().Error("predict: gateway fault", zap.String("action", action), zap.Error(err))
	return &faultError{action: action, cause: err}
}

type faultError struct {
	action string
	cause  error
}

func (e *faultError) Error() string {
	return "predict: " + e.action + ": " + e.cause.Error()
}

func (e *faultError) Unwrap() []error { return []error{ErrInternal, e.cause} }
