package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/bastiangx/nextword/internal/logger"
	"github.com/bastiangx/nextword/internal/observe"
	"github.com/bastiangx/nextword/pkg/model"
	"github.com/bastiangx/nextword/pkg/server"
	"github.com/bastiangx/nextword/pkg/store"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		listen   string
		schedule string
		noStdio  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve msgpack IPC on stdin/stdout and optionally HTTP/websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("listen") {
				listen = a.cfg.Server.Listen
			}
			if !cmd.Flags().Changed("reload-schedule") {
				schedule = a.cfg.Server.ReloadSchedule
			}
			if noStdio && listen == "" {
				return errors.New("--no-stdio needs --listen")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: Version})
			if err != nil {
				return err
			}
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					log.Warnf("Metrics shutdown: %v", err)
				}
			}()
			metrics := observe.DefaultMetrics()

			location := a.modelPath
			reload := func(ctx context.Context) (*model.Model, error) {
				return store.Load(ctx, location)
			}

			m, err := reload(ctx)
			switch {
			case errors.Is(err, store.ErrNotFound):
				log.Warnf("No model at %s yet; serving unready until a reload succeeds", location)
			case err != nil:
				return err
			}

			srv := server.NewServer(m, a.cfg,
				server.WithReloader(reload),
				server.WithEngineOptions(a.engineOptions(metrics)...),
				server.WithMetrics(metrics),
				server.WithLogger(logger.New("server")),
			)
			showStartupInfo(location, listen)

			if schedule != "" {
				stopReloads, err := srv.ScheduleReload(schedule)
				if err != nil {
					return err
				}
				defer stopReloads()
			}

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			g, gctx := errgroup.WithContext(ctx)
			if listen != "" {
				g.Go(func() error { return srv.ListenAndServe(gctx, listen) })
			}
			if noStdio {
				return g.Wait()
			}

			// stdin reads outlive cancellation; stdio runs outside the group
			stdio := make(chan error, 1)
			go func() { stdio <- srv.Serve(gctx, os.Stdin, os.Stdout) }()
			select {
			case err := <-stdio:
				cancel()
				return errors.Join(err, g.Wait())
			case <-gctx.Done():
				return g.Wait()
			}
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP address for /ws, /healthz, /readyz and /metrics")
	cmd.Flags().StringVar(&schedule, "reload-schedule", "", "Cron schedule for reloading the model")
	cmd.Flags().BoolVar(&noStdio, "no-stdio", false, "Do not serve on stdin/stdout")
	return cmd
}

// showStartupInfo displays some basic info about the init process on stderr.
func showStartupInfo(location, listen string) {
	l := logger.NewWithConfig("", log.InfoLevel, false, false, log.TextFormatter)
	l.Infof("Version: %s", Version)
	l.Infof("Process ID: [ %d ]", os.Getpid())
	l.Infof("model: ( %s )", location)
	if listen != "" {
		l.Infof("http: ( %s )", listen)
	}
	l.Info("status: ready")
}
