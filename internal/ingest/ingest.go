package ingest

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/churn-cli/internal/model"
)

// Format identifies an upload format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat picks the parser from the filename extension. Anything that
// is not .xlsx is read as CSV.
func DetectFormat(filename string) Format {
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// Options carries the per-format parser settings used by Load.
type Options struct {
	CSV  CSVOptions
	XLSX XLSXOptions
}

// Load parses an uploaded file into a Table. Every failure is returned as
// a *model.IngestError.
func Load(ctx context.Context, filename string, r io.Reader, opts Options) (*model.Table, error) {
	var (
		table *model.Table
		err   error
	)

	switch DetectFormat(filename) {
	case FormatXLSX:
		var buf bytes.Buffer
		if _, err = io.Copy(&buf, r); err != nil {
			return nil, &model.IngestError{Cause: eris.Wrap(err, "ingest: read upload")}
		}
		table, err = ReadXLSX(buf.Bytes(), opts.XLSX)
	default:
		table, err = ReadCSV(ctx, r, opts.CSV)
	}
	if err != nil {
		return nil, &model.IngestError{Cause: err}
	}
	return table, nil
}
