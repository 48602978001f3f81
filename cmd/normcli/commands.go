package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"webnorm/internal/calc/norm"
	"webnorm/internal/geochem"
)

var templateOut string

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Write an empty upload template",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeTable(geochem.Template(), templateOut, "template")
	},
}

var previewThreshold float64

var previewCmd = &cobra.Command{
	Use:   "preview FILE",
	Short: "Show major oxide totals and flag low-sum samples",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadFile(args[0])
		if err != nil {
			return err
		}
		if missing := geochem.MissingOxides(t); len(missing) > 0 {
			fmt.Fprintf(os.Stderr, "Missing major oxides: %s\n", strings.Join(missing, ", "))
		}
		threshold := previewThreshold
		if threshold <= 0 {
			threshold = conf.SumThreshold
		}
		geochem.AddSum(t)
		if n := geochem.SummationWarning(t, threshold); n > 0 {
			fmt.Fprintf(os.Stderr, "Warning! %d samples sum up to less than %g%%: rows %v\n",
				n, threshold, oneBased(geochem.BelowThreshold(t, threshold)))
		}
		return t.WriteCSV(os.Stdout)
	},
}

var (
	calcFe       string
	calcConstant string
	calcColumn   string
	calcRock     string
	calcOut      string
)

var calcCmd = &cobra.Command{
	Use:   "calc FILE",
	Short: "Calculate the CIPW norm of every sample in FILE",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := norm.ParseParams(calcFe, calcConstant, calcColumn, calcRock)
		if err != nil {
			return err
		}
		t, err := loadFile(args[0])
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), conf.EngineTimeout)
		defer cancel()

		logger.Debug("calculating norm",
			zap.String("file", args[0]),
			zap.String("engine", conf.Engine),
			zap.String("fe_method", params.String()))
		out, err := norm.Calculate(ctx, newEngine(conf), t, params)
		if err != nil {
			return err
		}
		if over := norm.OverSum(out, conf.SumLimit); len(over) > 0 {
			fmt.Fprintf(os.Stderr, "Normative sum above %g%% for rows %v\n", conf.SumLimit, oneBased(over))
		}
		return writeTable(out, calcOut, "norms")
	},
}

func init() {
	templateCmd.Flags().StringVarP(&templateOut, "output", "o", "", "output file (.csv or .xlsx), stdout if empty")
	previewCmd.Flags().Float64Var(&previewThreshold, "threshold", 0, "major oxide total below which samples are flagged (default SUM_THRESHOLD)")

	calcCmd.Flags().StringVar(&calcFe, "fe", "none", "Fe correction: none, constant, lemaitre, middlemost or specified")
	calcCmd.Flags().StringVar(&calcConstant, "constant", "", "FeO share of total iron for --fe constant (0-1)")
	calcCmd.Flags().StringVar(&calcColumn, "column", "", "column holding the per-sample factor for --fe specified")
	calcCmd.Flags().StringVar(&calcRock, "rock", "plutonic", "igneous type for --fe lemaitre: plutonic or volcanic")
	calcCmd.Flags().StringVarP(&calcOut, "output", "o", "", "output file (.csv or .xlsx), stdout if empty")
}

func oneBased(rows []int) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r + 1
	}
	return out
}
