// Command sla-sweep runs one SLA sweep and prints the result as JSON. It
// is meant to be triggered by an external scheduler.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/notify"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type options struct {
	timeout      time.Duration
	logOnly      bool
	failOnErrors bool
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if err == pflag.ErrHelp {
			return
		}
		os.Exit(2)
	}
	os.Exit(run(opts))
}

func parseFlags(args []string, output io.Writer) (options, error) {
	opts := options{}
	flagSet := pflag.NewFlagSet("sla-sweep", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "abort the sweep after this long")
	flagSet.BoolVar(&opts.logOnly, "log-only", false, "log alerts instead of delivering them to webhook and MQTT sinks")
	flagSet.BoolVar(&opts.failOnErrors, "fail-on-errors", false, "exit with status 1 when the sweep reports errors")
	if err := flagSet.Parse(args); err != nil {
		return options{}, err
	}
	if opts.timeout <= 0 {
		err := fmt.Errorf("--timeout must be positive, got %s", opts.timeout)
		fmt.Fprintln(output, err)
		return options{}, err
	}
	return opts, nil
}

func run(opts options) int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Printf("failed to init logger: %v", err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect postgres", zap.Error(err))
		return 1
	}
	defer pg.Close()

	dispatcher := events.NewInMemoryDispatcher(logger)
	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()
	if redis.Enabled() {
		events.NewRedisBridge(redis.Client, cfg.Redis.EventChannel, logger).Attach(dispatcher)
	}

	var sink notify.Sink = notify.NewLogSink(logger)
	if !opts.logOnly {
		fanout, closeSinks := notify.FromConfig(cfg.Notification, logger)
		defer closeSinks()
		sink = fanout
	}

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	clk := clock.Real()
	notifier := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		Sink:       sink,
		UserRepo:   repository.NewUserRepository(pool),
		TicketRepo: ticketRepo,
		AppURL:     cfg.App.URL,
		Clock:      clk,
		Logger:     logger,
	})
	result := service.NewSLAMonitor(ticketRepo, notifier, clk, nil, logger).RunSweep(ctx)

	if err := writeResult(os.Stdout, result); err != nil {
		logger.Error("failed to write result", zap.Error(err))
		return 1
	}
	return exitCode(result, opts.failOnErrors)
}

func writeResult(w io.Writer, result service.SweepResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func exitCode(result service.SweepResult, failOnErrors bool) int {
	if failOnErrors && len(result.Errors) > 0 {
		return 1
	}
	return 0
}
