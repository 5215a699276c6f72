package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"sort"
	"syscall"
	"time"

	"github.com/berfenger/growattcharger/internal/adapter/forecast"
	"github.com/berfenger/growattcharger/internal/adapter/mqttpub"
	"github.com/berfenger/growattcharger/internal/config"
	"github.com/berfenger/growattcharger/internal/core/actor"
	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/berfenger/growattcharger/internal/core/service"
	"github.com/berfenger/growattcharger/internal/mqtt"
	"github.com/berfenger/growattcharger/internal/scheduler"
	"github.com/berfenger/growattcharger/internal/server"
	"github.com/berfenger/growattcharger/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/carlmjohnson/versioninfo"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	MODE_RUN       = "run"
	MODE_MORNING   = "morning"
	MODE_PROVIDERS = "providers"
	MODE_SUMMARY   = "summary"
	MODE_SERVE     = "serve"

	chargeCycleTimeout = 10 * time.Minute
)

var modes = []string{MODE_RUN, MODE_MORNING, MODE_PROVIDERS, MODE_SUMMARY, MODE_SERVE}

func main() {
	os.Exit(run())
}

func run() int {
	flags := pflag.NewFlagSet("growattcharger", pflag.ContinueOnError)
	cfgFile := flags.StringP("config", "c", os.Getenv("CONFIG_FILE"), "YAML configuration file")
	flags.StringP("mode", "m", MODE_RUN, fmt.Sprintf("one of %v", modes))
	flags.Int("days", 7, "window in days for the recent accuracy report")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		slog.Error("flag errors", "error", err)
		return 2
	}
	mode := v.GetString("mode")
	if !slices.Contains(modes, mode) {
		slog.Error("unknown mode", "mode", mode, "available", modes)
		return 2
	}

	// load and print config
	cfg, err := config.Load(v, *cfgFile)
	if err != nil {
		slog.Error("config errors", "error", err)
		return 1
	}

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	logger.Info("growattcharger starting",
		zap.String("version", versioninfo.Short()),
		zap.String("mode", mode),
		zap.Any("config", cfg.Redacted()))

	for _, w := range cfg.ProviderWarnings(forecast.ProviderNames()) {
		logger.Warn("config warning", zap.String("detail", w))
	}

	if mode == MODE_RUN || mode == MODE_MORNING || mode == MODE_SERVE {
		if err := cfg.ValidateVendor(); err != nil {
			logger.Error("config errors", zap.Error(err))
			return 1
		}
	}

	a, err := newApp(*cfg, logger)
	if err != nil {
		logger.Error("initialization failed", zap.Error(err))
		return 1
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch mode {
	case MODE_MORNING:
		err = runMorningCheck(ctx, a)
	case MODE_PROVIDERS:
		err = runProviderDiagnostics(ctx, a)
	case MODE_SUMMARY:
		err = runSummary(a, v.GetInt("days"))
	case MODE_SERVE:
		err = serve(ctx, a)
	default:
		err = runChargeCycle(ctx, a)
	}
	if err != nil {
		logger.Error("growattcharger failed", zap.String("mode", mode), zap.Error(err))
		return 1
	}
	return 0
}

func runChargeCycle(ctx context.Context, a *app) error {
	if _, err := a.connectMQTT(nil); err != nil {
		a.logger.Warn("mqtt unavailable, plan will not be published", zap.Error(err))
	} else if a.charger.Publisher != nil {
		announce(ctx, a.charger.Publisher.(*mqttpub.RunPublisher), a.logger)
	}

	result, err := a.charger.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("target SOC %d%%, charge rate %d%% (written %d%%), forecast %.2f kWh from %s, updated=%t\n",
		result.Plan.TargetSOC, result.Plan.ChargeRatePct, result.WrittenRatePct,
		result.Plan.ForecastWh/1000, providerLabel(result.Provider), result.Updated)
	return nil
}

func runMorningCheck(ctx context.Context, a *app) error {
	result, err := a.charger.MorningCheck(ctx)
	if err != nil {
		return err
	}
	rec := result.Record
	if result.HasPrediction {
		fmt.Printf("morning SOC %d%% vs target %d%% (variance %+d, %.1f%% achieved): %s\n",
			rec.ActualSOC, rec.TargetSOC, rec.Variance, rec.Achievement, rec.Status)
	} else {
		fmt.Printf("morning SOC %d%%, no prediction found for %s\n", rec.ActualSOC, rec.Date.Format(domain.DateLayout))
	}
	return nil
}

func runProviderDiagnostics(ctx context.Context, a *app) error {
	fmt.Println("available providers:")
	for _, name := range forecast.ProviderNames() {
		info, _ := forecast.Info(name)
		fmt.Printf("  %-16s version %-6s api key required: %t\n", info.Name, info.Version, info.RequiresAPIKey)
	}

	fmt.Printf("configured: %v (primary %s)\n", a.forecasts.ProviderNames(), a.forecasts.Primary())
	status := a.forecasts.TestAllProviders(ctx)
	names := make([]string, 0, len(status))
	for name := range status {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-16s connection ok: %t\n", name, status[name])
	}

	date := a.tomorrow()
	forecasts := a.forecasts.AllForecastsForDate(ctx, date)
	fmt.Printf("forecasts for %s:\n", date.Format(domain.DateLayout))
	for _, f := range forecasts {
		if f.OK() {
			fmt.Printf("  %-16s %.2f kWh\n", f.Provider, f.Wh/1000)
		} else {
			fmt.Printf("  %-16s failed: %v\n", f.Provider, f.Err)
		}
	}
	return a.dataLog.LogProviderComparison(domain.ProviderComparisonRecord{
		Date:      date,
		LoggedAt:  time.Now().In(a.loc),
		Primary:   a.forecasts.Primary(),
		Forecasts: forecasts,
	})
}

func runSummary(a *app, days int) error {
	reporter := &service.PerformanceReporter{DataLog: a.dataLog, Logger: a.logger}
	rows, err := reporter.Generate()
	if err != nil {
		return err
	}
	fmt.Printf("performance summary written with %d rows\n", len(rows))
	if avg, ok := service.RecentAccuracy(rows, time.Now().In(a.loc), days); ok {
		fmt.Printf("forecast accuracy over the last %d days: %.1f%% (%s)\n", days, avg, service.RecentAccuracyStatus(avg))
	} else {
		fmt.Printf("no completed days in the last %d days\n", days)
	}
	return nil
}

func serve(ctx context.Context, a *app) error {
	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(a.logger)
	root := as.Root
	defer as.Shutdown()

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewChargerActor(a.charger, chargeCycleTimeout, a.logger)
	})
	pid, err := root.SpawnNamed(props, domain.ACTOR_ID_CHARGER)
	if err != nil {
		return err
	}
	defer root.Stop(pid)

	// mqtt: announce on every connection and listen for button presses
	_, err = a.connectMQTT(func(client *mqtt.MQTTClient, publisher *mqttpub.RunPublisher) {
		announce(ctx, publisher, a.logger)
		client.SubscribeToCommandTopic(func(_ pahomqtt.Client, msg pahomqtt.Message) {
			cmd, err := client.ParseMQTTCommand(msg)
			if err != nil {
				a.logger.Debug("ignoring mqtt message", zap.String("topic", msg.Topic()), zap.Error(err))
				return
			}
			if req := actorutil.ParsedMQTTCommandToRequest(*cmd); req != nil {
				root.Send(pid, req)
			}
		}, func(err error) {
			if err != nil {
				a.logger.Warn("could not subscribe to mqtt commands", zap.Error(err))
			}
		}, mqttConnectTimeout)
	})
	if err != nil {
		a.logger.Warn("mqtt unavailable, plans will not be published", zap.Error(err))
	}

	// cron triggers
	sched, err := scheduler.New(a.logger)
	if err != nil {
		return err
	}
	err = sched.Schedule(a.cfg.Schedule,
		scheduler.ActorTrigger(root, pid, func() any {
			return domain.RunChargeCycleRequest{Trigger: "cron"}
		}, chargeCycleTimeout),
		scheduler.ActorTrigger(root, pid, func() any {
			return domain.MorningCheckRequest{Trigger: "cron"}
		}, chargeCycleTimeout))
	if err != nil {
		return err
	}
	sched.Start(ctx)

	apiServer := server.NewServer(a.cfg, root, pid, a.metrics.Handler())
	// Create a done channel to signal when the shutdown is complete
	done := make(chan struct{})
	go gracefulShutdown(ctx, apiServer, sched, a.logger, done)

	a.logger.Info("http server listening", zap.String("addr", apiServer.Addr))
	err = apiServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	// Wait for the graceful shutdown to complete
	<-done
	a.logger.Info("graceful shutdown complete")
	return nil
}

func gracefulShutdown(ctx context.Context, apiServer *http.Server, sched *scheduler.Scheduler, logger *zap.Logger, done chan struct{}) {
	defer close(done)

	// Listen for the interrupt signal.
	<-ctx.Done()

	logger.Info("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}
	sched.Stop(shutdownCtx)
}

func providerLabel(p string) string {
	if p == "" {
		return "no provider (degraded)"
	}
	return p
}
