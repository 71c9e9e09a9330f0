package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	grpcTransport "calsync/internal/transport/grpc"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Sync on a schedule and serve gRPC health checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, a)
		},
	}
}

func runWatch(cmd *cobra.Command, a *app) error {
	log := a.log
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, cs, err := a.newEngine(ctx)
	if err != nil {
		return err
	}
	defer a.closeStore(cs)

	health := grpcTransport.NewHealthReporter(log)
	srv := grpcTransport.NewServer(a.cfg.RequestTimeout)
	health.Register(srv)

	lis, err := net.Listen("tcp", a.cfg.HealthAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.HealthAddr, err)
	}

	cronLog := cronLogger{log: log.With(slog.String("component", "watch"))}
	job := cron.NewChain(cron.SkipIfStillRunning(cronLog)).Then(cron.FuncJob(func() {
		report, err := engine.Run(ctx)
		printReport(cmd.OutOrStdout(), report)
		health.RunFinished(time.Now(), err)
	}))

	sched := cron.New(cron.WithLogger(cronLog))
	if _, err := sched.AddJob(a.cfg.WatchSchedule, job); err != nil {
		_ = lis.Close()
		return fmt.Errorf("watch.schedule %q: %w", a.cfg.WatchSchedule, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(lis)
	}()
	log.Info("health server started", slog.String("addr", a.cfg.HealthAddr), slog.String("schedule", a.cfg.WatchSchedule))

	firstRun := make(chan struct{})
	go func() {
		defer close(firstRun)
		job.Run()
	}()
	sched.Start()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("grpc server stopped with error", slog.Any("err", err))
			serveErr = err
		}
	}

	stopScheduler(log, sched, firstRun, a.cfg.ShutdownTimeout)
	health.Shutdown()
	grpcTransport.Shutdown(log, srv, a.cfg.ShutdownTimeout)
	return serveErr
}

// stopScheduler stops new runs and waits for running ones, including the
// run started at launch, to finish.
func stopScheduler(log *slog.Logger, c *cron.Cron, firstRun <-chan struct{}, timeout time.Duration) {
	waitCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, done := range []<-chan struct{}{c.Stop().Done(), firstRun} {
		select {
		case <-done:
		case <-waitCtx.Done():
			log.Warn("running sync did not finish before shutdown timeout")
			return
		}
	}
}

// cronLogger routes scheduler messages into slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, slog.Any("err", err))...)
}
