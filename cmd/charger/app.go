package main

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/berfenger/growattcharger/internal/adapter/csvlog"
	"github.com/berfenger/growattcharger/internal/adapter/forecast"
	"github.com/berfenger/growattcharger/internal/adapter/growatt"
	"github.com/berfenger/growattcharger/internal/adapter/mqttpub"
	"github.com/berfenger/growattcharger/internal/config"
	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/berfenger/growattcharger/internal/core/port"
	"github.com/berfenger/growattcharger/internal/core/service"
	"github.com/berfenger/growattcharger/internal/metrics"
	"github.com/berfenger/growattcharger/internal/mqtt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const mqttConnectTimeout = 10 * time.Second

// app holds every wired component shared by the run modes.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	loc       *time.Location
	metrics   *metrics.Metrics
	forecasts *service.ForecastManager
	dataLog   *csvlog.DataLog
	inverter  port.InverterClient
	charger   *service.Charger
	closers   []func()
}

func newApp(cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.NewMetrics()}

	loc, err := cfg.Schedule.Location()
	if err != nil {
		return nil, err
	}
	a.loc = loc

	registry := forecast.NewRegistry(cfg, a.forecastCache(), logger)
	a.forecasts, err = service.NewForecastManager(cfg.ForecastProviders, registry, a.metrics, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.dataLog, err = csvlog.New(cfg.OutputDir, forecast.ProviderNames(), loc)
	if err != nil {
		a.Close()
		return nil, err
	}

	planner, err := service.NewPlanner(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.inverter, err = growatt.NewInverterClient(cfg.Growatt, logger, a.metrics.ModbusInstrument())
	if err != nil {
		a.Close()
		return nil, err
	}
	if closer, ok := a.inverter.(io.Closer); ok {
		a.closers = append(a.closers, func() { _ = closer.Close() })
	}

	a.charger = &service.Charger{
		Config:    cfg,
		Inverter:  a.inverter,
		Forecasts: a.forecasts,
		Planner:   planner,
		DataLog:   a.dataLog,
		Observer:  a.metrics,
		Retry:     service.NewRetryPolicy(cfg.Retry, logger),
		Logger:    logger.With(zap.String("component", "charger")),
		Now: func() time.Time {
			return time.Now().In(loc)
		},
	}
	return a, nil
}

// forecastCache prefers Valkey when configured and falls back to memory when
// the server cannot be reached.
func (a *app) forecastCache() port.ForecastCache {
	if a.cfg.ForecastCache.ValkeyAddr == "" {
		return forecast.NewMemoryCache()
	}
	client, err := forecast.NewValkeyClient(a.cfg.ForecastCache.ValkeyAddr)
	if err != nil {
		a.logger.Warn("valkey unavailable, using in-memory forecast cache",
			zap.String("addr", a.cfg.ForecastCache.ValkeyAddr), zap.Error(err))
		return forecast.NewMemoryCache()
	}
	cache := forecast.NewValkeyCache(client, "")
	a.closers = append(a.closers, cache.Close)
	return cache
}

// connectMQTT connects to the broker and attaches a run publisher to the
// charger. onConnect runs after every (re)connection.
func (a *app) connectMQTT(onConnect func(*mqtt.MQTTClient, *mqttpub.RunPublisher)) (*mqtt.MQTTClient, error) {
	if !a.cfg.MQTT.Enabled() {
		return nil, nil
	}
	logger := a.logger.With(zap.String("component", "mqtt"))

	var client *mqtt.MQTTClient
	var publisher *mqttpub.RunPublisher
	client = mqtt.CreateMQTTClient(&a.cfg, mqtt.OptsFromConfig(&a.cfg), func(_ pahomqtt.Client) {
		logger.Info("mqtt connected")
		if onConnect != nil {
			go onConnect(client, publisher)
		}
	}, func(_ pahomqtt.Client, err error) {
		logger.Warn("mqtt connection lost", zap.Error(err))
	})
	publisher = mqttpub.NewRunPublisher(client, client.Topics, domain.ChargerDevice(a.cfg.MQTT.BaseTopic),
		a.cfg.MQTT.HADiscoveryEnable, a.logger)

	connected := make(chan error, 1)
	client.Connect(func(err error) {
		connected <- err
	}, mqttConnectTimeout)
	if err := <-connected; err != nil {
		return nil, err
	}

	a.charger.Publisher = publisher
	a.closers = append(a.closers, func() {
		client.Disconnect(time.Second)
	})
	return client, nil
}

// announce publishes the bridge state and the discovery configs.
func announce(ctx context.Context, publisher *mqttpub.RunPublisher, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
	defer cancel()
	if err := errors.Join(publisher.PublishOnline(ctx), publisher.PublishDiscovery(ctx)); err != nil {
		logger.Warn("could not announce on mqtt", zap.Error(err))
	}
}

func (a *app) tomorrow() time.Time {
	return domain.DateOf(time.Now().In(a.loc)).AddDate(0, 0, 1)
}

// Close releases resources in reverse creation order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
