package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/twitchsongbot/songbot/internal/config"
)

func main() {
	Execute()
}

// run builds the application and drives the engine, the HTTP dashboard
// server, and the Discord front door concurrently via errgroup, exiting
// when any of them fails or the process receives SIGINT/SIGTERM.
// Grounded on jellycli's cmd.app.run/stopOnSignal (catch signal, stop
// every task, report the first error), generalized from jellycli's
// sequential task.Tasker list to a context-cancelable errgroup since none
// of these components need the pause/resume semantics task.Task offers.
func run(ctx context.Context) error {
	cfg := config.FromViper()

	a, err := newApp(cfg)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer a.queue.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logrus.Info("songbot: playback engine starting")
		return a.eng.Run(gctx)
	})

	g.Go(func() error {
		logrus.WithField("addr", a.cfg.HTTPAddr).Info("songbot: http dashboard starting")
		errCh := make(chan error, 1)
		go func() { errCh <- a.httpServer.ListenAndServe() }()
		select {
		case <-gctx.Done():
			return a.httpServer.Close()
		case err := <-errCh:
			return err
		}
	})

	if cfg.DiscordToken != "" {
		g.Go(func() error {
			logrus.Info("songbot: discord front door starting")
			if err := a.discord.Open(); err != nil {
				return fmt.Errorf("discord open: %w", err)
			}
			<-gctx.Done()
			return a.discord.Close()
		})
	} else {
		logrus.Warn("songbot: no discord token configured, chat front door disabled")
	}

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			logrus.WithField("signal", sig).Info("songbot: received signal, shutting down")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	return g.Wait()
}
