// Package validate enforces the customer feature schema before records
// reach the model gateway.
package validate

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/sells-group/churn-cli/internal/model"
)

// RawRecord is an uncoerced single-record input keyed by column name
// (e.g. "CreditScore") or by the snake_case JSON name ("credit_score").
type RawRecord map[string]string

var aliases = map[string]string{
	model.ColGeography:       "geography",
	model.ColGender:          "gender",
	model.ColAge:             "age",
	model.ColCreditScore:     "credit_score",
	model.ColBalance:         "balance",
	model.ColEstimatedSalary: "estimated_salary",
	model.ColTenure:          "tenure",
	model.ColNumOfProducts:   "num_of_products",
	model.ColHasCrCard:       "has_credit_card",
	model.ColIsActiveMember:  "is_active_member",
}

func (r RawRecord) get(col string) (string, bool) {
	if v, ok := r[col]; ok {
		return v, true
	}
	v, ok := r[aliases[col]]
	return v, ok
}

// Schema holds the domains records are checked against.
type Schema struct {
	Domains    Domains
	MaxBalance float64
	MaxSalary  float64
}

// Validator checks single records and uploaded datasets.
type Validator struct {
	schema Schema
}

// New returns a Validator for the given schema.
func New(schema Schema) *Validator {
	return &Validator{schema: schema}
}

// Domains returns the categorical domains the validator enforces.
func (v *Validator) Domains() Domains {
	return v.schema.Domains
}

// ValidateSingle coerces and range-checks each field in RequiredColumns
// order and returns the first violation as a *model.ValidationError.
func (v *Validator) ValidateSingle(raw RawRecord) (model.CustomerRecord, error) {
	var (
		rec model.CustomerRecord
		err error
	)

	if rec.Geography, err = v.categorical(raw, model.ColGeography, v.schema.Domains.Geography); err != nil {
		return model.CustomerRecord{}, err
	}
	if rec.Gender, err = v.categorical(raw, model.ColGender, v.schema.Domains.Gender); err != nil {
		return model.CustomerRecord{}, err
	}
	if rec.Age, err = intInRange(raw, model.ColAge, 18, 100); err != nil {
		return model.CustomerRecord{}, err
	}
	if rec.CreditScore, err = intInRange(raw, model.ColCreditScore, 300, 850); err != nil {
		return model.CustomerRecord{}, err
	}
	if rec.Balance, err = floatInRange(raw, model.ColBalance, v.schema.MaxBalance); err != nil {
		return model.CustomerRecord{}, err
	}
	if rec.EstimatedSalary, err = floatInRange(raw, model.ColEstimatedSalary, v.schema.MaxSalary); err != nil {
		return model.CustomerRecord{}, err
	}
	if rec.Tenure, err = intInRange(raw, model.ColTenure, 0, 10); err != nil {
		return model.CustomerRecord{}, err
	}
	if rec.NumOfProducts, err = intInRange(raw, model.ColNumOfProducts, 1, 4); err != nil {
		return model.CustomerRecord{}, err
	}
	if rec.HasCreditCard, err = boolean(raw, model.ColHasCrCard); err != nil {
		return model.CustomerRecord{}, err
	}
	if rec.IsActiveMember, err = boolean(raw, model.ColIsActiveMember); err != nil {
		return model.CustomerRecord{}, err
	}

	return rec, nil
}

// ValidateDataset checks that every required column is present. Cell
// domains are not checked for batch input; unparseable cells surface
// later from the gateway.
func (v *Validator) ValidateDataset(t *model.Table) error {
	if missing := t.MissingColumns(model.RequiredColumns); len(missing) > 0 {
		return &model.MissingColumns{Columns: missing}
	}
	return nil
}

func (v *Validator) categorical(raw RawRecord, col string, domain []string) (string, error) {
	s, ok := raw.get(col)
	if !ok || s == "" {
		return "", fail(col, "is required")
	}
	if !slices.Contains(domain, s) {
		return "", fail(col, "must be one of "+strings.Join(domain, ", "))
	}
	return s, nil
}

func intInRange(raw RawRecord, col string, lo, hi int) (int, error) {
	s, ok := raw.get(col)
	s = strings.TrimSpace(s)
	if !ok || s == "" {
		return 0, fail(col, "is required")
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		// Accept integral floats such as "42.0".
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fail(col, "must be an integer")
		}
		if f != math.Trunc(f) {
			return 0, fail(col, "must be an integer")
		}
		if f < float64(lo) || f > float64(hi) {
			return 0, fail(col, fmt.Sprintf("must be between %d and %d", lo, hi))
		}
		n = int(f)
	}
	if n < lo || n > hi {
		return 0, fail(col, fmt.Sprintf("must be between %d and %d", lo, hi))
	}
	return n, nil
}

func floatInRange(raw RawRecord, col string, limit float64) (float64, error) {
	s, ok := raw.get(col)
	s = strings.TrimSpace(s)
	if !ok || s == "" {
		return 0, fail(col, "is required")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fail(col, "must be a number")
	}
	if f < 0 {
		return 0, fail(col, "must not be negative")
	}
	if limit > 0 && f > limit {
		return 0, fail(col, "must not exceed "+strconv.FormatFloat(limit, 'f', -1, 64))
	}
	return f, nil
}

func boolean(raw RawRecord, col string) (bool, error) {
	s, ok := raw.get(col)
	s = strings.TrimSpace(s)
	if !ok || s == "" {
		return false, fail(col, "is required")
	}
	switch s {
	case "Yes", "true", "1":
		return true, nil
	case "No", "false", "0":
		return false, nil
	}
	return false, fail(col, `must be "Yes" or "No"`)
}

func fail(field, reason string) *model.ValidationError {
	return &model.ValidationError{Field: field, Reason: reason}
}
