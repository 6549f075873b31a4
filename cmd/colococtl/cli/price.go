package cli

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/pricing"
	"github.com/Augustkim-dev/coloco-inventory-management-sub001/internal/shared"
)

func newPriceCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Pricing calculators",
	}
	cmd.AddCommand(newPriceComputeCommand(deps))
	return cmd
}

func newPriceComputeCommand(deps Deps) *cobra.Command {
	var (
		parent, transfer, rate, currency string
		margins                          []string
		jsonOutput                       bool
	)
	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Derive a price from parent price, transfer cost, rate and margins",
		RunE: func(cmd *cobra.Command, args []string) error {
			parentPrice, err := parseDecimal("parent", parent)
			if err != nil {
				return err
			}
			transferCost, err := parseDecimal("transfer-cost", transfer)
			if err != nil {
				return err
			}
			fxRate, err := parseDecimal("rate", rate)
			if err != nil {
				return err
			}
			parsed := make([]decimal.Decimal, 0, len(margins))
			for _, m := range margins {
				d, err := parseDecimal("margin", m)
				if err != nil {
					return err
				}
				parsed = append(parsed, d)
			}
			cur, err := shared.NormalizeCurrency(currency)
			if err != nil {
				return fmt.Errorf("price compute: %w", err)
			}
			result, err := pricing.ComputeDerivedPrice(parentPrice, transferCost, fxRate, parsed, deps.Rounding.Increment(cur))
			if err != nil {
				return fmt.Errorf("price compute: %w", err)
			}
			out := cmd.OutOrStdout()
			if jsonOutput {
				return json.NewEncoder(out).Encode(result)
			}
			fmt.Fprintf(out, "local cost:      %s %s\n", result.LocalCost.String(), cur)
			fmt.Fprintf(out, "final price:     %s %s\n", result.FinalPrice.StringFixed(4), cur)
			fmt.Fprintf(out, "suggested price: %s %s\n", result.SuggestedPrice.String(), cur)
			return nil
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "parent price in the parent currency")
	cmd.Flags().StringVar(&transfer, "transfer-cost", "0", "transfer cost in the parent currency")
	cmd.Flags().StringVar(&rate, "rate", "1", "exchange rate parent->target")
	cmd.Flags().StringVar(&currency, "currency", "", "target currency (selects rounding increment)")
	cmd.Flags().StringSliceVar(&margins, "margin", nil, "margin percent, repeatable, applied in order")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("parent")
	_ = cmd.MarkFlagRequired("currency")
	return cmd
}

func parseDecimal(flag, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("price compute: invalid --%s %q", flag, raw)
	}
	return d, nil
}
