package predict

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/churn-cli/internal/ingest"
	"github.com/sells-group/churn-cli/internal/model"
)

func scoreReference(t *testing.T, s *Scorer) *ResultArtifact {
	t.Helper()
	f, err := os.Open(referencePath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	res, err := s.ScoreBatch(context.Background(), "Churn_Modelling.csv", f)
	require.NoError(t, err)
	return res
}

func referenceTable(t *testing.T) *model.Table {
	t.Helper()
	data, err := os.ReadFile(referencePath)
	require.NoError(t, err)
	table, err := ingest.ReadCSV(context.Background(), bytes.NewReader(data), ingest.CSVOptions{})
	require.NoError(t, err)
	return table
}

func requiredOnlyTable(rows int) *model.Table {
	t := &model.Table{Columns: model.RequiredColumns}
	for range rows {
		t.Rows = append(t.Rows, make([]string, len(model.RequiredColumns)))
	}
	return t
}

func TestScoreBatch_CSV(t *testing.T) {
	s := NewScorer(testValidator(t), testGateway(), BatchOptions{})
	res := scoreReference(t, s)

	assert.Equal(t, "Churn_Modelling.csv", res.Source)
	assert.Equal(t, "RowNumber", res.Columns[0])
	require.Len(t, res.Rows, 10)
	require.Len(t, res.Predictions, 10)
	require.Len(t, res.Probabilities, 10)

	// Rows keep their upload order.
	for i, row := range res.Rows {
		assert.Equal(t, strconv.Itoa(i+1), row[0])
	}
	assert.InDelta(t, 0.259225100817846, res.Probabilities[0], 1e-12)
	assert.InDelta(t, 0.5374298453437495, res.Probabilities[2], 1e-12)
	assert.InDelta(t, 0.5805423048206595, res.Probabilities[7], 1e-12)

	assert.Equal(t, 10, res.Summary.Total)
	assert.Equal(t, 2, res.Summary.Churned)
	assert.Equal(t, 8, res.Summary.Retained)
	for i, p := range res.Predictions {
		assert.Equal(t, res.Probabilities[i] > 0.5, p, "row %d", i)
	}

	require.Len(t, res.Summary.TopRisk, 2)
	assert.Equal(t, 7, res.Summary.TopRisk[0].Index)
	assert.Equal(t, "Obinna", res.Summary.TopRisk[0].Record["Surname"])
	assert.Equal(t, 2, res.Summary.TopRisk[1].Index)
	assert.Equal(t, "Onio", res.Summary.TopRisk[1].Record["Surname"])
}

func TestScoreBatch_Histogram(t *testing.T) {
	s := NewScorer(testValidator(t), testGateway(), BatchOptions{})
	res := scoreReference(t, s)

	bins := res.Summary.Histogram
	require.Len(t, bins, 20)
	assert.InDelta(t, 0.0, bins[0].Lower, 1e-12)
	assert.InDelta(t, 1.0, bins[19].Upper, 1e-12)

	total := 0
	for _, b := range bins {
		total += b.Count
	}
	assert.Equal(t, 10, total)
	assert.Equal(t, 5, bins[5].Count)
}

func TestScoreBatch_XLSXMatchesCSV(t *testing.T) {
	s := NewScorer(testValidator(t), testGateway(), BatchOptions{})
	fromCSV := scoreReference(t, s)

	table := referenceTable(t)
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Customers")
	require.NoError(t, err)
	for _, cells := range append([][]string{table.Columns}, table.Rows...) {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	fromXLSX, err := s.ScoreBatch(context.Background(), "customers.xlsx", &buf)
	require.NoError(t, err)

	assert.Equal(t, fromCSV.Columns, fromXLSX.Columns)
	assert.Equal(t, fromCSV.Predictions, fromXLSX.Predictions)
	require.Len(t, fromXLSX.Probabilities, len(fromCSV.Probabilities))
	for i := range fromCSV.Probabilities {
		assert.InDelta(t, fromCSV.Probabilities[i], fromXLSX.Probabilities[i], 1e-12)
	}
}

func TestScoreBatch_ConfiguredSheet(t *testing.T) {
	table := referenceTable(t)
	f := xlsx.NewFile()
	notes, err := f.AddSheet("Notes")
	require.NoError(t, err)
	notes.AddRow().AddCell().SetString("exported from core banking")
	sheet, err := f.AddSheet("Customers")
	require.NoError(t, err)
	for _, cells := range append([][]string{table.Columns}, table.Rows...) {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	data := buf.Bytes()

	// The first sheet has no customer columns.
	_, err = NewScorer(testValidator(t), testGateway(), BatchOptions{}).
		ScoreBatch(context.Background(), "customers.xlsx", bytes.NewReader(data))
	var mc *model.MissingColumns
	require.ErrorAs(t, err, &mc)

	s := NewScorer(testValidator(t), testGateway(), BatchOptions{
		Ingest: ingest.Options{XLSX: ingest.XLSXOptions{Sheet: "Customers"}},
	})
	res, err := s.ScoreBatch(context.Background(), "customers.xlsx", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 10, res.Summary.Total)
	assert.Equal(t, 2, res.Summary.Churned)
}

func TestScoreBatch_MissingColumns(t *testing.T) {
	table := referenceTable(t)
	idx := table.ColumnIndex("CreditScore")
	table.Columns[idx] = "Score"

	s := NewScorer(testValidator(t), testGateway(), BatchOptions{})
	res, err := s.ScoreTable(table)
	assert.Nil(t, res)

	var mc *model.MissingColumns
	require.ErrorAs(t, err, &mc)
	assert.Equal(t, []string{"CreditScore"}, mc.Columns)
	assert.NotErrorIs(t, err, ErrInternal)
}

func TestScoreBatch_BadCell(t *testing.T) {
	csv := strings.Join(model.RequiredColumns, ",") + "\n" +
		"France,Female,forty,619,0,101348.88,2,1,1,1\n"

	s := NewScorer(testValidator(t), testGateway(), BatchOptions{})
	res, err := s.ScoreBatch(context.Background(), "bad.csv", strings.NewReader(csv))
	assert.Nil(t, res)

	var ierr *model.IngestError
	require.ErrorAs(t, err, &ierr)
	assert.Contains(t, err.Error(), "forty")
	assert.NotErrorIs(t, err, ErrInternal)
}

func TestScoreBatch_UnparseableFile(t *testing.T) {
	s := NewScorer(testValidator(t), testGateway(), BatchOptions{})
	res, err := s.ScoreBatch(context.Background(), "broken.xlsx", strings.NewReader("not a workbook"))
	assert.Nil(t, res)

	var ierr *model.IngestError
	assert.ErrorAs(t, err, &ierr)
}

func TestScoreTable_RowWiderThanHeader(t *testing.T) {
	table := requiredOnlyTable(1)
	table.Rows[0] = append(table.Rows[0], "extra")

	s := NewScorer(testValidator(t), &stubGateway{}, BatchOptions{})
	_, err := s.ScoreTable(table)

	var ierr *model.IngestError
	require.ErrorAs(t, err, &ierr)
	assert.Contains(t, err.Error(), "row 1 has 11 fields")
}

func TestScoreTable_HeaderOnly(t *testing.T) {
	s := NewScorer(testValidator(t), testGateway(), BatchOptions{})
	res, err := s.ScoreTable(requiredOnlyTable(0))
	require.NoError(t, err)

	assert.Equal(t, 0, res.Summary.Total)
	assert.Empty(t, res.Summary.TopRisk)
	assert.Len(t, res.Summary.Histogram, 20)
}

func TestScoreTable_Idempotent(t *testing.T) {
	s := NewScorer(testValidator(t), testGateway(), BatchOptions{})

	a, err := s.ScoreTable(referenceTable(t))
	require.NoError(t, err)
	b, err := s.ScoreTable(referenceTable(t))
	require.NoError(t, err)

	assert.Equal(t, a.Predictions, b.Predictions)
	assert.Equal(t, a.Probabilities, b.Probabilities)
	assert.Equal(t, a.Summary, b.Summary)
}

func TestScoreTable_GatewayFaults(t *testing.T) {
	tests := []struct {
		name string
		gw   *stubGateway
	}{
		{"plain error", &stubGateway{err: errors.New("boom")}},
		{"schema mismatch", &stubGateway{err: &model.SchemaMismatch{Columns: []string{"Age"}}}},
		{"short result", &stubGateway{labels: []bool{true}, probs: []float64{0.9}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScorer(testValidator(t), tt.gw, BatchOptions{})
			res, err := s.ScoreTable(requiredOnlyTable(3))
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrInternal)
		})
	}
}

func TestScoreTable_TopRiskOrdering(t *testing.T) {
	gw := &stubGateway{
		labels: []bool{true, true, false, true, true, true},
		probs:  []float64{0.6, 0.9, 0.95, 0.9, 0.7, 0.6},
	}
	s := NewScorer(testValidator(t), gw, BatchOptions{TopN: 3})

	res, err := s.ScoreTable(requiredOnlyTable(6))
	require.NoError(t, err)

	// Non-churners never appear; equal probabilities keep upload order.
	var got []int
	for _, r := range res.Summary.TopRisk {
		got = append(got, r.Index)
	}
	assert.Equal(t, []int{1, 3, 4}, got)
	assert.Equal(t, 5, res.Summary.Churned)
}
