package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/churn-cli/internal/model"
	"github.com/sells-group/churn-cli/internal/predict"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a CSV or XLSX customer file",
	Long: `Score every row of an uploaded customer dataset and write the
original columns plus Churn_Prediction and Churn_Probability to CSV.

Examples:
  score --input customers.csv
  score --input customers.xlsx --sheet Customers --output scored.csv
  score --input customers.txt --delimiter ";" --trim-space`,
	RunE: runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.String("input", "", "customer file (.csv or .xlsx)")
	f.String("output", predict.ExportFilename, "output CSV path")
	f.String("delimiter", "", "CSV field separator (default from config)")
	f.String("sheet", "", "XLSX sheet name (default first sheet)")
	f.Bool("trim-space", false, "trim whitespace around CSV fields")
	_ = scoreCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	log := zap.L().With(zap.String("command", "score"))

	if d, _ := cmd.Flags().GetString("delimiter"); d != "" {
		cfg.Batch.CSVDelimiter = d
	}
	if sheet, _ := cmd.Flags().GetString("sheet"); sheet != "" {
		cfg.Batch.Sheet = sheet
	}
	if trim, _ := cmd.Flags().GetBool("trim-space"); trim {
		cfg.Batch.TrimSpace = true
	}

	env, err := initScoring(ctx, "score")
	if err != nil {
		return err
	}

	in, err := os.Open(input)
	if err != nil {
		return eris.Wrapf(err, "open input %s", input)
	}
	defer in.Close() //nolint:errcheck

	res, err := env.Scorer.ScoreBatch(ctx, input, in)
	if err != nil {
		return err
	}

	if err := writeExport(output, res); err != nil {
		return err
	}

	log.Info("batch scored",
		zap.String("input", input),
		zap.String("output", output),
		zap.Int("total", res.Summary.Total),
		zap.Int("churned", res.Summary.Churned),
	)
	return printSummary(cmd.OutOrStdout(), res)
}

func writeExport(path string, res *predict.ResultArtifact) error {
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create output %s", path)
	}
	if err := res.Export(out); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	return eris.Wrap(out.Close(), "close output")
}

func printSummary(w io.Writer, res *predict.ResultArtifact) error {
	s := res.Summary
	if _, err := fmt.Fprintf(w, "Rows: %d  Churn: %d  Retain: %d\n", s.Total, s.Churned, s.Retained); err != nil {
		return err
	}
	if len(s.TopRisk) == 0 {
		return nil
	}

	fmt.Fprintln(w, "Top risk:") //nolint:errcheck
	for _, r := range s.TopRisk {
		label := fmt.Sprintf("row %d", r.Index+1)
		if id := r.Record["CustomerId"]; id != "" {
			label = "customer " + id
		}
		fmt.Fprintf(w, "  %-20s %s  %s/%s age %s\n", label, model.FormatProbability(r.Probability), //nolint:errcheck
			r.Record[model.ColGeography], r.Record[model.ColGender], r.Record[model.ColAge])
	}
	return nil
}
