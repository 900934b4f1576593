package predict

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/churn-cli/internal/gateway"
	"github.com/sells-group/churn-cli/internal/model"
	"github.com/sells-group/churn-cli/internal/validate"
)

const (
	artifactPath  = "../gateway/testdata/churn_model.json"
	referencePath = "../validate/testdata/Churn_Modelling.csv"
)

func testValidator(t *testing.T) *validate.Validator {
	t.Helper()
	d, err := validate.LoadDomains(context.Background(), referencePath)
	require.NoError(t, err)
	return validate.New(validate.Schema{Domains: d, MaxBalance: 300000, MaxSalary: 300000})
}

func testGateway() *gateway.Loader {
	return gateway.NewFileLoader(artifactPath)
}

// stubGateway returns canned results or a fixed error.
type stubGateway struct {
	labels []bool
	probs  []float64
	err    error
}

func (s *stubGateway) PredictLabel(*model.Table) ([]bool, error) {
	return s.labels, s.err
}

func (s *stubGateway) PredictProbability(*model.Table) ([]float64, error) {
	return s.probs, s.err
}
