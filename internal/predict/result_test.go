package predict

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/churn-cli/internal/model"
)

func TestExport_RoundTrip(t *testing.T) {
	s := NewScorer(testValidator(t), testGateway(), BatchOptions{})
	res := scoreReference(t, s)

	var buf bytes.Buffer
	require.NoError(t, res.Export(&buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 11)

	header := records[0]
	assert.Equal(t, res.Columns, header[:len(res.Columns)])
	assert.Equal(t, []string{model.ColChurnPrediction, model.ColChurnProbability}, header[len(res.Columns):])

	n := len(res.Columns)
	for i, rec := range records[1:] {
		assert.Equal(t, res.Rows[i], rec[:n], "row %d", i)

		wantPred := "0"
		if res.Predictions[i] {
			wantPred = "1"
		}
		assert.Equal(t, wantPred, rec[n])

		p, err := strconv.ParseFloat(rec[n+1], 64)
		require.NoError(t, err)
		assert.Equal(t, res.Probabilities[i], p, "probability must survive the text round trip")
	}
	assert.Equal(t, "1", records[3][n])
	assert.Equal(t, "1", records[8][n])
}

func TestExport_PadsShortRows(t *testing.T) {
	res := &ResultArtifact{
		Columns:       []string{"a", "b", "c"},
		Rows:          [][]string{{"1"}, {"x,y", "2", "3"}},
		Predictions:   []bool{true, false},
		Probabilities: []float64{0.75, 0.1},
	}

	var buf bytes.Buffer
	require.NoError(t, res.Export(&buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"a", "b", "c", "Churn_Prediction", "Churn_Probability"},
		{"1", "", "", "1", "0.75"},
		{"x,y", "2", "3", "0", "0.1"},
	}, records)
}

func TestResultArtifact_Verdict(t *testing.T) {
	res := &ResultArtifact{Predictions: []bool{false, true}, Probabilities: []float64{0.2, 0.8}}

	assert.Equal(t, model.Verdict{ChurnProbability: 0.8, PredictedLabel: true, RiskBucket: model.RiskHigh}, res.Verdict(1))
	assert.Equal(t, model.RiskLow, res.Verdict(0).RiskBucket)
}

func TestHistogram_Edges(t *testing.T) {
	bins := histogram([]float64{0, 0.05, 0.049999, 0.5, 0.999, 1}, 20)
	require.Len(t, bins, 20)

	assert.Equal(t, 2, bins[0].Count)
	assert.Equal(t, 1, bins[1].Count)
	assert.Equal(t, 1, bins[10].Count)
	assert.Equal(t, 2, bins[19].Count)
	assert.InDelta(t, 0.05, bins[0].Upper, 1e-12)
	assert.InDelta(t, 0.95, bins[19].Lower, 1e-12)
}
