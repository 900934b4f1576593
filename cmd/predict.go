package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/churn-cli/internal/model"
	"github.com/sells-group/churn-cli/internal/validate"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score a single customer",
	Long: `Validate one customer's attributes and print the churn verdict.

Examples:
  predict --geography France --gender Female --age 42 --credit-score 619 \
    --balance 0 --salary 101348.88 --tenure 2 --products 1 \
    --has-credit-card Yes --active-member Yes

  predict ... --format yaml`,
	RunE: runPredict,
}

// predictFlags maps each flag to the record field it fills.
var predictFlags = []struct {
	flag, column, usage string
}{
	{"geography", model.ColGeography, "customer country"},
	{"gender", model.ColGender, "customer gender"},
	{"age", model.ColAge, "age in years (18-100)"},
	{"credit-score", model.ColCreditScore, "credit score (300-850)"},
	{"balance", model.ColBalance, "account balance"},
	{"salary", model.ColEstimatedSalary, "estimated salary"},
	{"tenure", model.ColTenure, "years with the bank (0-10)"},
	{"products", model.ColNumOfProducts, "number of products (1-4)"},
	{"has-credit-card", model.ColHasCrCard, "Yes or No"},
	{"active-member", model.ColIsActiveMember, "Yes or No"},
}

func init() {
	f := predictCmd.Flags()
	for _, pf := range predictFlags {
		f.String(pf.flag, "", pf.usage)
	}
	f.String("format", "json", "output format: json or yaml")

	rootCmd.AddCommand(predictCmd)
}

func runPredict(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "json" && format != "yaml" {
		return eris.Errorf("unsupported format %q (want json or yaml)", format)
	}

	raw := make(validate.RawRecord, len(predictFlags))
	for _, pf := range predictFlags {
		v, _ := cmd.Flags().GetString(pf.flag)
		raw[pf.column] = v
	}

	env, err := initScoring(cmd.Context(), "predict")
	if err != nil {
		return err
	}

	verdict, err := env.Predictor.PredictOne(raw)
	if err != nil {
		return err
	}
	return renderVerdict(cmd.OutOrStdout(), verdict, format)
}

func renderVerdict(w io.Writer, v model.Verdict, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "predict: encode yaml")
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "predict: encode json")
	default:
		return eris.Errorf("unsupported format %q (want json or yaml)", format)
	}
}
