package cli

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/fx"
)

// ImportSummary reports the outcome of fx import.
type ImportSummary struct {
	Source  string           `json:"source"`
	DryRun  bool             `json:"dry_run"`
	Rows    []fx.UpsertInput `json:"rows"`
	Applied int              `json:"applied"`
}

func newFXCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fx",
		Short: "Manage exchange rates",
	}
	cmd.AddCommand(newFXImportCommand(deps), newFXResolveCommand(deps))
	return cmd
}

func newFXImportCommand(deps Deps) *cobra.Command {
	var (
		dryRun     bool
		yes        bool
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "import <file.csv|->",
		Short: "Upsert exchange rates from CSV (from_currency,to_currency,effective_date,rate)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			rows, err := loadRates(source, cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("fx import: %w", err)
			}
			summary := ImportSummary{Source: source, DryRun: dryRun, Rows: rows}
			if dryRun || len(rows) == 0 {
				return writeImportOutput(cmd.OutOrStdout(), jsonOutput, summary)
			}
			if !yes {
				if source == "-" {
					return errors.New("fx import: --yes is required when reading from stdin")
				}
				ok, err := confirmImport(cmd.InOrStdin(), cmd.OutOrStdout(), len(rows))
				if err != nil {
					return fmt.Errorf("fx import: confirmation failed: %w", err)
				}
				if !ok {
					return errors.New("fx import: cancelled by user")
				}
			}
			store, release, err := deps.Rates(cmd.Context())
			if err != nil {
				return fmt.Errorf("fx import: %w", err)
			}
			defer release()
			for i, row := range rows {
				if _, err := store.Upsert(cmd.Context(), row); err != nil {
					summary.Applied = i
					_ = writeImportOutput(cmd.OutOrStdout(), jsonOutput, summary)
					return fmt.Errorf("fx import: row %d (%s->%s %s): %w", i+1, row.FromCurrency, row.ToCurrency, row.EffectiveDate, err)
				}
			}
			summary.Applied = len(rows)
			return writeImportOutput(cmd.OutOrStdout(), jsonOutput, summary)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and print rows without writing")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print a JSON summary")
	return cmd
}

func newFXResolveCommand(deps Deps) *cobra.Command {
	var (
		date       string
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "resolve <FROM> <TO>",
		Short: "Print the rate in effect for a pair on a date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf, err := fx.ParseDay(date, deps.now())
			if err != nil {
				return fmt.Errorf("fx resolve: invalid --date %q (expected YYYY-MM-DD)", date)
			}
			store, release, err := deps.Rates(cmd.Context())
			if err != nil {
				return fmt.Errorf("fx resolve: %w", err)
			}
			defer release()
			rate, err := store.Lookup(cmd.Context(), args[0], args[1], asOf)
			if err != nil {
				return fmt.Errorf("fx resolve: %w", err)
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return json.NewEncoder(out).Encode(rate)
			}
			fmt.Fprintf(out, "%s->%s %s (effective %s)\n", rate.FromCurrency, rate.ToCurrency, rate.Rate.String(), rate.EffectiveDate.Format(fx.DateLayout))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "as-of date YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON")
	return cmd
}

func loadRates(source string, stdin io.Reader) ([]fx.UpsertInput, error) {
	var (
		data []byte
		err  error
	)
	if source == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	header, err := nextNonEmptyRecord(reader)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	idx := map[string]int{"from": -1, "to": -1, "date": -1, "rate": -1}
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "from", "from_currency":
			idx["from"] = i
		case "to", "to_currency":
			idx["to"] = i
		case "date", "effective_date":
			idx["date"] = i
		case "rate":
			idx["rate"] = i
		}
	}
	for _, key := range []string{"from", "to", "date", "rate"} {
		if idx[key] < 0 {
			return nil, errors.New("missing required columns (need from_currency, to_currency, effective_date, rate)")
		}
	}
	var rows []fx.UpsertInput
	for line := 2; ; line++ {
		record, err := nextNonEmptyRecord(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		field := func(key string) string {
			if idx[key] >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx[key]])
		}
		date := field("date")
		if _, err := time.Parse(fx.DateLayout, date); err != nil {
			return nil, fmt.Errorf("record %d: invalid effective_date %q", line, date)
		}
		rate, err := decimal.NewFromString(field("rate"))
		if err != nil || !rate.IsPositive() {
			return nil, fmt.Errorf("record %d: invalid rate %q", line, field("rate"))
		}
		rows = append(rows, fx.UpsertInput{
			FromCurrency:  strings.ToUpper(field("from")),
			ToCurrency:    strings.ToUpper(field("to")),
			EffectiveDate: date,
			Rate:          rate,
		})
	}
	return rows, nil
}

func nextNonEmptyRecord(r *csv.Reader) ([]string, error) {
	for {
		record, err := r.Read()
		if err != nil {
			return nil, err
		}
		for _, field := range record {
			trimmed := strings.TrimSpace(field)
			if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
				return record, nil
			}
		}
	}
}

func writeImportOutput(out io.Writer, jsonOutput bool, summary ImportSummary) error {
	if jsonOutput {
		return json.NewEncoder(out).Encode(summary)
	}
	mode := "apply"
	if summary.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintf(out, "FX import (%s) from %s: %d row(s)\n", mode, summary.Source, len(summary.Rows))
	for _, row := range summary.Rows {
		fmt.Fprintf(out, " - %s %s->%s %s\n", row.EffectiveDate, row.FromCurrency, row.ToCurrency, row.Rate.String())
	}
	if !summary.DryRun {
		fmt.Fprintf(out, "Applied: %d\n", summary.Applied)
	}
	return nil
}

func confirmImport(r io.Reader, w io.Writer, n int) (bool, error) {
	fmt.Fprintf(w, "Upsert %d exchange rate(s)? Type YES to confirm: ", n)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(line), "YES"), nil
}
