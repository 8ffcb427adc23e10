package main

import (
	"fmt"

	"github.com/bastiangx/nextword/internal/eval"
	"github.com/bastiangx/nextword/pkg/model"
	"github.com/bastiangx/nextword/pkg/suggest"
	"github.com/spf13/cobra"
)

func (a *app) evalCmd() *cobra.Command {
	var (
		ratio     float64
		seed      uint64
		workers   int
		limit     int
		prefixLen int
		wordsOnly bool
	)

	cmd := &cobra.Command{
		Use:   "eval <text files...>",
		Short: "Train on part of the text and measure predictions on the rest",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sentences, err := readSentences(args)
			if err != nil {
				return err
			}
			train, test := eval.Split(sentences, ratio, seed)
			if len(train) == 0 || len(test) == 0 {
				return fmt.Errorf("split of %d sentences at %.2f leaves nothing to train or test on", len(sentences), ratio)
			}

			m, stats, err := model.Train(train, trainOptions(a.cfg.Model.Order, true)...)
			if err != nil {
				return err
			}
			engine := suggest.NewEngine(m, a.engineOptions(nil)...)

			cases := eval.BuildCases(test, eval.CaseOptions{
				Order:     m.Order(),
				PrefixLen: prefixLen,
				WordsOnly: wordsOnly,
			})
			report, err := eval.Run(cmd.Context(), engine, cases, eval.RunOptions{Workers: workers, Limit: limit})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "trained on %d sentences (vocabulary %d), evaluated %d cases from %d sentences\n",
				len(train), stats.Vocabulary, len(cases), len(test))
			fmt.Fprint(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().Float64Var(&ratio, "ratio", 0.9, "Share of sentences used for training")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Shuffle seed for the split")
	cmd.Flags().IntVar(&workers, "workers", 4, "Concurrent queries")
	cmd.Flags().IntVarP(&limit, "limit", "l", 10, "Predictions requested per case")
	cmd.Flags().IntVar(&prefixLen, "prefix-len", 2, "Typed characters for completion cases (0 disables)")
	cmd.Flags().BoolVar(&wordsOnly, "words-only", false, "Skip punctuation targets")
	return cmd
}
