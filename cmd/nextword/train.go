package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bastiangx/nextword/internal/utils"
	"github.com/bastiangx/nextword/pkg/model"
	"github.com/bastiangx/nextword/pkg/store"
	"github.com/bastiangx/nextword/pkg/tokenize"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

func (a *app) trainCmd() *cobra.Command {
	var (
		output      string
		order       int
		skipInvalid bool
	)

	cmd := &cobra.Command{
		Use:   "train <text files...>",
		Short: "Train a model from plain text files (- reads stdin)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("order") {
				order = a.cfg.Model.Order
			}
			if !cmd.Flags().Changed("skip-invalid") {
				skipInvalid = a.cfg.Model.SkipInvalid
			}
			if output == "" {
				output = a.modelPath
			}

			start := time.Now()
			m, stats, err := trainFiles(args, trainOptions(order, skipInvalid)...)
			if err != nil {
				return err
			}
			if err := store.Save(cmd.Context(), output, m); err != nil {
				return fmt.Errorf("saving model: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "trained %s sentences, %s tokens (%d skipped), vocabulary %s in %v\n",
				utils.FormatWithCommas(stats.Sentences), utils.FormatWithCommas(stats.Tokens), stats.Skipped,
				utils.FormatWithCommas(stats.Vocabulary), time.Since(start).Round(time.Millisecond))
			fmt.Fprintf(cmd.OutOrStdout(), "saved to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Where to save the model (default --model)")
	cmd.Flags().IntVar(&order, "order", model.DefaultOrder, "N-gram order")
	cmd.Flags().BoolVar(&skipInvalid, "skip-invalid", false, "Skip invalid tokens instead of aborting")
	return cmd
}

// trainFiles streams every file through one trainer.
func trainFiles(paths []string, opts ...model.TrainOption) (*model.Model, model.TrainStats, error) {
	trainer, err := model.NewTrainer(opts...)
	if err != nil {
		return nil, model.TrainStats{}, err
	}
	for _, path := range paths {
		if err := trainFile(trainer, path); err != nil {
			return nil, model.TrainStats{}, err
		}
	}
	return trainer.Model()
}

func trainFile(trainer *model.Trainer, path string) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	log.Debugf("Training on %s", path)
	for sentence, err := range tokenize.Stream(r) {
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if err := trainer.Add(sentence); err != nil {
			return fmt.Errorf("training on %s: %w", path, err)
		}
	}
	return nil
}

// readSentences loads every sentence of the given files.
func readSentences(paths []string) ([][]string, error) {
	var sentences [][]string
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		for sentence, err := range tokenize.Stream(f) {
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("reading %s: %w", path, err)
			}
			sentences = append(sentences, sentence)
		}
		f.Close()
	}
	return sentences, nil
}
