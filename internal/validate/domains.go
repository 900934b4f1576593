package validate

import (
	"context"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/churn-cli/internal/ingest"
	"github.com/sells-group/churn-cli/internal/model"
)

// Domains are the authoritative categorical value sets, in first-seen
// order of the reference dataset.
type Domains struct {
	Geography []string `json:"geography" yaml:"geography"`
	Gender    []string `json:"gender" yaml:"gender"`
}

// LoadDomains derives the Geography and Gender domains from the reference
// historical dataset at path.
func LoadDomains(ctx context.Context, path string) (Domains, error) {
	f, err := os.Open(path)
	if err != nil {
		return Domains{}, eris.Wrapf(err, "validate: open reference data %s", path)
	}
	defer f.Close() //nolint:errcheck

	table, err := ingest.ReadCSV(ctx, f, ingest.CSVOptions{})
	if err != nil {
		return Domains{}, eris.Wrap(err, "validate: read reference data")
	}
	return DomainsFromTable(table)
}

// DomainsFromTable collects the distinct Geography and Gender values.
func DomainsFromTable(t *model.Table) (Domains, error) {
	if missing := t.MissingColumns([]string{model.ColGeography, model.ColGender}); len(missing) > 0 {
		return Domains{}, eris.Wrap(&model.MissingColumns{Columns: missing}, "validate: reference data")
	}

	d := Domains{
		Geography: unique(t, t.ColumnIndex(model.ColGeography)),
		Gender:    unique(t, t.ColumnIndex(model.ColGender)),
	}
	if len(d.Geography) == 0 || len(d.Gender) == 0 {
		return Domains{}, eris.New("validate: reference data has no rows")
	}
	return d, nil
}

func unique(t *model.Table, col int) []string {
	seen := make(map[string]struct{})
	var out []string
	for row := range t.Rows {
		v := t.Cell(row, col)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
