package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

type cliOptions struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:          "sheetcalc",
		Short:        "Evaluate spreadsheet formulas and workbooks from the command line",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the workbook")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (text, json); overrides the workbook")

	rootCmd.AddCommand(newEvalCmd(opts), newRunCmd(opts), newFunctionsCmd())
	return rootCmd
}

// logger resolves flag values over workbook values
func (o *cliOptions) logger(cmd *cobra.Command, wb *Workbook) (spreadsheet.Option, error) {
	level, format := o.logLevel, o.logFormat
	if level == "" {
		level = wb.LogLevel
	}
	if format == "" {
		format = wb.LogFormat
	}
	logger, err := newLogger(cmd.ErrOrStderr(), level, format)
	if err != nil {
		return nil, err
	}
	return spreadsheet.WithLogger(logger), nil
}

func newEvalCmd(opts *cliOptions) *cobra.Command {
	var (
		workbookPath string
		worksheet    string
	)

	cmd := &cobra.Command{
		Use:   "eval [formula...]",
		Short: "Evaluate formulas, optionally against a workbook",
		Example: `  sheetcalc eval '=SUM(1,2,3)' 'ROUND(PI(),4)'
  sheetcalc eval -w budget.yaml --worksheet Summary '=SUM(B2:B12)'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wb := &Workbook{Worksheets: []WorksheetConfig{{Name: worksheet}}}
			if workbookPath != "" {
				loaded, err := LoadWorkbook(workbookPath)
				if err != nil {
					return err
				}
				wb = loaded
			}

			logOpt, err := opts.logger(cmd, wb)
			if err != nil {
				return err
			}
			r, err := wb.Open(func(string) {}, logOpt)
			if err != nil {
				return err
			}
			sheet, err := r.Calculate().Run()
			if err != nil {
				return errors.Wrap(err, "calculating workbook")
			}

			out := cmd.OutOrStdout()
			for _, formula := range args {
				val, err := sheet.EvaluateFormula(worksheet, formula)
				if err != nil {
					return errors.Wrapf(err, "evaluating %s on %s", formula, worksheet)
				}
				if len(args) == 1 {
					fmt.Fprintln(out, spreadsheet.FormatValue(val))
				} else {
					fmt.Fprintf(out, "%s\t%s\n", formula, spreadsheet.FormatValue(val))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&workbookPath, "workbook", "w", "", "workbook yaml to evaluate against")
	cmd.Flags().StringVar(&worksheet, "worksheet", "Sheet1", "worksheet the formulas are evaluated on")
	return cmd
}

func newRunCmd(opts *cliOptions) *cobra.Command {
	var (
		cells       []string
		withMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "run [workbook.yaml]",
		Short: "Calculate a workbook and print its cells",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := LoadWorkbook(args[0])
			if err != nil {
				return err
			}

			logOpt, err := opts.logger(cmd, wb)
			if err != nil {
				return err
			}
			sheetOpts := []spreadsheet.Option{logOpt}

			var reg *prometheus.Registry
			if withMetrics {
				reg = prometheus.NewRegistry()
				m, err := spreadsheet.NewMetrics(reg)
				if err != nil {
					return err
				}
				sheetOpts = append(sheetOpts, spreadsheet.WithMetrics(m))
			}

			out := cmd.OutOrStdout()
			r, err := wb.Open(func(line string) { fmt.Fprintln(out, line) }, sheetOpts...)
			if err != nil {
				return err
			}
			r.Calculate()

			if len(cells) > 0 {
				for _, address := range cells {
					r.Log(address)
				}
			} else {
				for _, ws := range wb.Worksheets {
					r.Then(func(r *spreadsheet.RunnableSpreadsheet) *spreadsheet.RunnableSpreadsheet {
						return logWorksheet(r, ws.Name)
					})
				}
			}
			if err := r.Error(); err != nil {
				return errors.Wrap(err, "running workbook")
			}

			if reg != nil {
				return writeMetrics(out, reg)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&cells, "cells", nil, "only print these cells (e.g. Sheet1!A1,Sheet1!B2)")
	cmd.Flags().BoolVar(&withMetrics, "metrics", false, "print calculation metrics after the cells")
	return cmd
}

// logWorksheet logs every populated cell of a worksheet in row-major order
func logWorksheet(r *spreadsheet.RunnableSpreadsheet, name string) *spreadsheet.RunnableSpreadsheet {
	ws, ok := r.Spreadsheet().GetWorksheet(name)
	if !ok {
		return r
	}
	var addresses []string
	for cell := range ws.Cells() {
		addresses = append(addresses, qualify(name, spreadsheet.FormatCellAddress(cell.Row, cell.Col)))
	}
	for _, address := range addresses {
		r.Log(address)
	}
	return r
}

func writeMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return errors.Wrap(err, "gathering metrics")
	}
	fmt.Fprintln(w)
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Wrap(err, "writing metrics")
		}
	}
	return nil
}

func newFunctionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "functions [prefix]",
		Short: "List the built-in functions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = strings.ToUpper(args[0])
			}
			functions := spreadsheet.NewDefaultBuiltInFunctions()
			out := cmd.OutOrStdout()
			for _, name := range functions.Names() {
				if !strings.HasPrefix(name, prefix) {
					continue
				}
				if functions.IsVolatile(name) {
					fmt.Fprintf(out, "%s (volatile)\n", name)
				} else {
					fmt.Fprintln(out, name)
				}
			}
			return nil
		},
	}
}
