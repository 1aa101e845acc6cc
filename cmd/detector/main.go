package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authwatch/internal/factory"
	"authwatch/internal/handler"
	"authwatch/internal/pipeline"
	"authwatch/internal/retention"
	"authwatch/internal/scheduler"
	"authwatch/internal/util"
)

func main() {
	f, err := factory.NewFactory()
	if err != nil {
		util.Fatal("Failed to initialize factory", util.ErrorField(err))
	}
	defer f.Close()

	cfg := f.Config()
	logger := f.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(f.Locker(), cfg.Jobs.LockTTL, f.Metrics(), logger)
	sched.Register(scheduler.Job{
		Name:     pipeline.JobProcessLogs,
		Interval: cfg.Jobs.DetectionInterval,
		Handler:  f.Runner().Run,
	})
	sched.Register(scheduler.Job{
		Name:     retention.JobCleanModels,
		Interval: cfg.Jobs.RetentionInterval,
		Handler: func(ctx context.Context) error {
			return f.Purger().Purge(ctx, time.Now().UTC())
		},
	})

	go sched.Start(ctx)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.NewRouter(f, f.Metrics().Handler(), logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			util.Fatal("Ops server failed to start", util.ErrorField(err))
		}
	}()

	util.Info("Service started",
		util.String("environment", cfg.Environment),
		util.String("address", server.Addr),
		util.Duration("detection_interval", cfg.Jobs.DetectionInterval),
	)

	waitForShutdown(cancel, server)
	f.Close()
}

func waitForShutdown(cancel context.CancelFunc, server *http.Server) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-signalChan
	util.Info("Received shutdown signal", util.String("signal", sig.String()))

	// Stop the job loops first so no run is mid-flight during teardown.
	cancel()

	ctx, cancelTimeout := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelTimeout()

	if err := server.Shutdown(ctx); err != nil {
		util.Error("Failed to shutdown ops server gracefully", util.ErrorField(err))
	} else {
		util.Info("Ops server shutdown completed")
	}
}
