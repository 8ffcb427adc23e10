package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/bastiangx/nextword/internal/cli"
	"github.com/bastiangx/nextword/internal/utils"
	"github.com/bastiangx/nextword/pkg/store"
	"github.com/bastiangx/nextword/pkg/suggest"
	"github.com/bastiangx/nextword/pkg/tokenize"
	"github.com/spf13/cobra"
)

func (a *app) predictCmd() *cobra.Command {
	var (
		context string
		prefix  string
		limit   int
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the next word or complete a prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.loadEngine(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.CLI.DefaultLimit
			}

			req := suggest.Request{
				Context: tokenize.Tokenize(context),
				Prefix:  prefix,
				Limit:   limit,
			}
			suggestions := engine.Predict(req)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(suggestions)
			}
			if len(suggestions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no predictions")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "#\tword\tscore\tfreq\t(%s)\n", suggest.ModeOf(req))
			for i, s := range suggestions {
				fmt.Fprintf(tw, "%d\t%s\t%.4f\t%s\t\n", i+1, s.Word, s.Score, utils.FormatWithCommas(s.Frequency))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&context, "context", "", "Preceding text")
	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "Partial word to complete")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Number of predictions (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func (a *app) replCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Interactive predictions for typed text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.loadEngine(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.CLI.DefaultLimit
			}
			return cli.NewInputHandler(engine, limit, a.cfg.Server.MaxPrefix).Start()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Number of predictions (default from config)")
	return cmd
}

func (a *app) inspectCmd() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show model statistics and its most frequent tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := store.Load(cmd.Context(), a.modelPath)
			if err != nil {
				return fmt.Errorf("loading model: %w", err)
			}
			stats := m.Stats()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "location\t%s\n", a.modelPath)
			fmt.Fprintf(tw, "order\t%d\n", stats.Order)
			fmt.Fprintf(tw, "vocabulary\t%s\n", utils.FormatWithCommas(stats.Vocabulary))
			fmt.Fprintf(tw, "tokens\t%s\n", utils.FormatWithCommas(stats.Tokens))
			fmt.Fprintf(tw, "max frequency\t%s\n", utils.FormatWithCommas(stats.MaxFrequency))
			for size, rows := range stats.Contexts {
				fmt.Fprintf(tw, "%d-token contexts\t%s\n", size, utils.FormatWithCommas(rows))
			}
			if top > 0 {
				fmt.Fprintln(tw, "\t")
				for i, s := range suggest.NewEngine(m).PredictNext(nil, top) {
					fmt.Fprintf(tw, "#%d\t%s (%s)\n", i+1, s.Word, utils.FormatWithCommas(s.Frequency))
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "Also list the most frequent tokens")
	return cmd
}
