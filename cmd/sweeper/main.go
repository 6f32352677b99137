package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/conf"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/constants"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/logger"
	"github.com/bnidigitalmy/pocketbizz-billing-service/internal/service"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

var (
	flagconf string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

// app bundles what the scheduled jobs need.
type app struct {
	lifecycle *service.LifecycleService
	locker    *redsync.Redsync
	log       *log.Helper
}

func newApp(lifecycle *service.LifecycleService, locker *redsync.Redsync, logger log.Logger) *app {
	return &app{
		lifecycle: lifecycle,
		locker:    locker,
		log:       log.NewHelper(logger),
	}
}

// sweep runs one locked sweep. The lock is an efficiency measure against
// redundant concurrent runs; correctness comes from the conditional
// transitions underneath, so a lost lock just means another instance is
// already doing the work.
func (a *app) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), constants.SweepLockExpiration)
	defer cancel()

	mutex := a.locker.NewMutex(constants.SweepLockKey,
		redsync.WithExpiry(constants.SweepLockExpiration),
		redsync.WithTries(constants.SweepLockRetries),
	)
	if err := mutex.TryLockContext(ctx); err != nil {
		a.log.Infof("Sweep lock busy, skipping this run: %v", err)
		return
	}
	defer func() {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			a.log.Warnf("Failed to release sweep lock: %v", err)
		}
	}()

	a.log.Info("Starting subscription sweep")
	result, err := a.lifecycle.Sweep(ctx)
	if err != nil {
		a.log.Errorf("Sweep failed: %v", err)
		return
	}
	a.log.Infof("Sweep finished: processed=%d activated=%d grace=%d expired=%d trial_expired=%d",
		result.Processed, result.Activated, result.MovedToGrace, result.Expired, result.TrialExpired)
}

func main() {
	flag.Parse()

	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	if err := bc.Validate(); err != nil {
		panic(fmt.Sprintf("config validation failed: %v", err))
	}

	loggerInstance := log.With(logger.New(bc.Log),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", "pocketbizz-billing-sweeper",
	)
	helper := log.NewHelper(loggerInstance)

	application, cleanup, err := wireApp(&bc, loggerInstance)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	schedule := constants.DefaultSweepSchedule
	if bc.Subscription != nil && bc.Subscription.SweepSchedule != "" {
		schedule = bc.Subscription.SweepSchedule
	}

	cronScheduler := cron.New(cron.WithSeconds())
	if _, err := cronScheduler.AddFunc(schedule, application.sweep); err != nil {
		panic(fmt.Sprintf("invalid sweep schedule %q: %v", schedule, err))
	}

	cronScheduler.Start()
	helper.Infof("Sweeper started, schedule %q", schedule)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	helper.Info("Shutting down gracefully...")

	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		helper.Info("Sweeper stopped gracefully")
	case <-time.After(5 * time.Second):
		helper.Warn("Sweeper forced to stop after timeout")
	}
}
