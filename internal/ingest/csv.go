// Package ingest parses uploaded customer datasets (CSV and XLSX) into
// rectangular tables.
package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/churn-cli/internal/model"
)

// CSVOptions configures the CSV parser.
type CSVOptions struct {
	Delimiter rune // default ','
	TrimSpace bool // trim surrounding whitespace from every field
}

// ReadCSV reads a delimited file with a header row into a Table.
// A leading UTF-8 or UTF-16 byte order mark is stripped so spreadsheet
// exports keep their first column name intact.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) (*model.Table, error) {
	header, rows, errCh := streamCSV(ctx, r, opts)

	table := &model.Table{}
	for row := range rows {
		table.Rows = append(table.Rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}

	cols, ok := <-header
	if !ok {
		return nil, eris.New("csv: empty file")
	}
	table.Columns = cols
	return table, nil
}

// streamCSV reads a CSV file and sends data rows to a channel. The header
// row is delivered once on the header channel. Errors are sent on the error
// channel. All channels are closed when processing completes.
func streamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan []string, <-chan error) {
	headerCh := make(chan []string, 1)
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(headerCh)
		defer close(rowCh)
		defer close(errCh)

		decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
		reader := csv.NewReader(decoded)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.FieldsPerRecord = -1 // ragged rows are padded by Table.Cell

		first := true
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			if first {
				first = false
				headerCh <- record
				continue
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return headerCh, rowCh, errCh
}
