package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-price-watch/history"
	"github.com/aluiziolira/go-price-watch/models"
)

func init() {
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history <identifier>",
	Short: "Prints the recorded prices of a product, oldest first.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := history.Open(cfg.StoreBackend, cfg.StorePath, 0)
		if err != nil {
			return fmt.Errorf("open price history: %w", err)
		}
		defer store.Close()

		identifier := strings.ToUpper(args[0])
		observations, err := store.History(cmd.Context(), identifier)
		if err != nil {
			return err
		}
		if len(observations) == 0 {
			fmt.Fprintf(os.Stderr, "no observations for %s\n", identifier)
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetTitle(observations[len(observations)-1].Title)
		t.AppendHeader(table.Row{"Observed", "Price", "Change", "Rating"})
		for i, obs := range observations {
			t.AppendRow(table.Row{
				obs.ObservedAt.Format(models.TimestampLayout),
				obs.Price.StringFixed(2),
				change(observations, i),
				obs.Rating,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

func change(observations []*models.Observation, i int) string {
	if i == 0 {
		return ""
	}
	diff := observations[i].Price.Sub(observations[i-1].Price)
	if diff.IsPositive() {
		return "+" + diff.StringFixed(2)
	}
	return diff.StringFixed(2)
}
