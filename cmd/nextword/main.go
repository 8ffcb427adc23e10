// Copyright 2025 The NextWord Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the nextword command: training, querying and serving n-gram
word prediction models.

nextword learns unigram to n-gram counts from plain text and predicts the word that
follows a context, completes a partially typed word, or both at once. Completion
candidates come from a frequency trie; context predictions back off from the
longest known context to shorter ones.

# Usage

Train a model from text files and save it:

	nextword train corpus/*.txt -o model.msgpack

Ask for predictions:

	nextword predict -m model.msgpack --context "good morning"
	nextword predict -m model.msgpack --context "good" --prefix mo

Try it interactively; end a line with a space to predict the next word:

	nextword repl -m model.msgpack

Serve msgpack IPC on stdin/stdout, plus websocket and health endpoints:

	nextword serve -m model.msgpack --listen :8080

# Storage

The model location selects the backend: a bolt:// URL or .db/.bolt path uses a bbolt
database, a libsql:// or file: DSN or .sqlite path uses libSQL, anything else is a
msgpack file.

# Configuration

Defaults come from config.toml in the user config dir, or the file passed with
--config (TOML or YAML):

	[server]
	max_limit = 64
	max_prefix = 60
	max_context = 32
	listen = ""
	reload_schedule = "0 * * * *"

	[model]
	order = 3
	path = "model.msgpack"

	[engine]
	cache_size = 10000
	prefix_weight = 0.7
	context_weight = 0.3

	[cli]
	default_limit = 5
*/
package main

import (
	"fmt"
	"os"

	"github.com/bastiangx/nextword/internal/logger"
	"github.com/bastiangx/nextword/internal/observe"
	"github.com/bastiangx/nextword/internal/utils"
	"github.com/bastiangx/nextword/pkg/config"
	"github.com/bastiangx/nextword/pkg/model"
	"github.com/bastiangx/nextword/pkg/store"
	_ "github.com/bastiangx/nextword/pkg/store/boltstore"
	_ "github.com/bastiangx/nextword/pkg/store/sqlstore"
	"github.com/bastiangx/nextword/pkg/suggest"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
	AppName = "nextword"
	gh      = "https://github.com/bastiangx/nextword"
)

// app carries what the persistent flags resolve to.
type app struct {
	configPath string
	debug      bool
	modelPath  string

	cfg          *config.Config
	activeConfig string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           AppName,
		Short:         "N-gram next-word prediction and word completion",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.Setup(a.debug)
			cfg, path, err := config.LoadConfigWithPriority(a.configPath)
			if err != nil {
				return err
			}
			log.Debugf("Using config: %s", config.GetActiveConfigPath(path))
			a.cfg = cfg
			a.activeConfig = path
			if a.modelPath == "" {
				a.modelPath = cfg.Model.Path
			}
			a.modelPath = utils.ExpandHome(a.modelPath)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a TOML or YAML config file")
	root.PersistentFlags().BoolVarP(&a.debug, "debug", "d", false, "Toggle debug logging")
	root.PersistentFlags().StringVarP(&a.modelPath, "model", "m", "", "Model location (default from config)")

	root.AddCommand(
		a.trainCmd(),
		a.predictCmd(),
		a.replCmd(),
		a.serveCmd(),
		a.evalCmd(),
		a.inspectCmd(),
		a.configCmd(),
		versionCmd(),
	)
	return root
}

// engineOptions maps the engine config onto engine options.
func (a *app) engineOptions(metrics *observe.Metrics) []suggest.Option {
	e := a.cfg.Engine
	return []suggest.Option{
		suggest.WithCache(e.CacheSize),
		suggest.WithWeights(e.PrefixWeight, e.ContextWeight),
		suggest.WithCandidateFactors(e.CompletionFactor, e.ContextFactor),
		suggest.WithMetrics(metrics),
	}
}

// loadEngine loads the configured model and wraps it in an engine.
func (a *app) loadEngine(cmd *cobra.Command) (*suggest.Engine, error) {
	m, err := store.Load(cmd.Context(), a.modelPath)
	if err != nil {
		return nil, fmt.Errorf("loading model: %w", err)
	}
	log.Debugf("Model: %s", m.Stats())
	return suggest.NewEngine(m, a.engineOptions(nil)...), nil
}

func trainOptions(order int, skipInvalid bool) []model.TrainOption {
	return []model.TrainOption{model.WithOrder(order), model.SkipInvalid(skipInvalid)}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show current version",
		Run: func(cmd *cobra.Command, args []string) {
			logger := log.NewWithOptions(cmd.OutOrStderr(), log.Options{
				ReportCaller:    false,
				ReportTimestamp: false,
				Prefix:          "",
			})

			styles := log.DefaultStyles()
			styles.Values["version"] = lipgloss.NewStyle().Bold(true).
				Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
			styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
				Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
			logger.SetStyles(styles)

			logger.Print("")
			logger.Print("[ nextword ] predicts what you type next")
			logger.Print("", "version", Version)
			logger.Print("")
			logger.Print("use -h or --help to see available commands")
			logger.Print("Github Repo", "gh", gh)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
