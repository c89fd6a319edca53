package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/newthinker/fastquant/internal/core"
	"github.com/newthinker/fastquant/internal/storage/result"
)

var (
	resultsStrategy string
	resultsLimit    int
	resultsOffset   int
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect stored backtest results",
}

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored results, newest first",
	Args:  cobra.NoArgs,
	RunE:  runResultsList,
}

var resultsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one stored result",
	Args:  cobra.ExactArgs(1),
	RunE:  runResultsShow,
}

func init() {
	resultsListCmd.Flags().StringVar(&resultsStrategy, "strategy", "", "filter by strategy")
	resultsListCmd.Flags().IntVar(&resultsLimit, "limit", 20, "maximum results")
	resultsListCmd.Flags().IntVar(&resultsOffset, "offset", 0, "results to skip")

	resultsCmd.AddCommand(resultsListCmd, resultsShowCmd)
	rootCmd.AddCommand(resultsCmd)
}

// openResults opens the configured hot store. The memory store is empty
// in a fresh process, so this is only useful with the sqlite driver.
func openResults() (result.Store, io.Closer, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	return openStore(cfg.Storage.Hot)
}

func runResultsList(cmd *cobra.Command, args []string) error {
	filter := result.ListFilter{Limit: resultsLimit, Offset: resultsOffset}
	if resultsStrategy != "" {
		name, err := core.ParseStrategyName(resultsStrategy)
		if err != nil {
			return err
		}
		filter.Strategy = name
	}

	store, closer, err := openResults()
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	results, err := store.List(context.Background(), filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-24s %-32s %-12s %-12s %8s %8s\n", "ID", "STRATEGY", "START", "END", "SHARPE", "TRADES")
	for _, r := range results {
		fmt.Fprintf(out, "%-24s %-32s %-12s %-12s %8.3f %8d\n",
			r.ID, r.Strategy,
			r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"),
			r.SharpeRatio, r.TradeCount)
	}
	return nil
}

func runResultsShow(cmd *cobra.Command, args []string) error {
	store, closer, err := openResults()
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	r, err := store.GetByID(context.Background(), args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
