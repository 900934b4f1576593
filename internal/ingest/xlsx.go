package ingest

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/churn-cli/internal/model"
)

// XLSXOptions configures the XLSX parser.
type XLSXOptions struct {
	Sheet string // sheet name; empty reads the first sheet
}

// ReadXLSX parses an XLSX workbook held in memory. The first non-blank row
// is the header. Fully blank rows are dropped.
func ReadXLSX(data []byte, opts XLSXOptions) (*model.Table, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	table := &model.Table{}
	headerSeen := false
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := rowToStrings(row)
		if isBlank(cells) {
			continue
		}
		if !headerSeen {
			table.Columns = cells
			headerSeen = true
			continue
		}
		table.Rows = append(table.Rows, cells)
	}

	if !headerSeen {
		return nil, eris.New("xlsx: sheet has no header row")
	}
	return table, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.Sheet != "" {
		sheet, ok := f.Sheet[opts.Sheet]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.Sheet)
		}
		return sheet, nil
	}

	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
