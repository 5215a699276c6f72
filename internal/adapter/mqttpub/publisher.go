package mqttpub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/berfenger/growattcharger/internal/mqtt"

	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// MQTTPublisher is the part of *mqtt.MQTTClient used to publish.
type MQTTPublisher interface {
	Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration)
}

type rawMessage struct {
	topic   string
	message any
}

// RunPublisher publishes every charge plan as retained Home Assistant
// sensor states.
type RunPublisher struct {
	client    MQTTPublisher
	topics    mqtt.Topics
	device    domain.Device
	discovery bool
	logger    *zap.Logger
}

func NewRunPublisher(client MQTTPublisher, topics mqtt.Topics, device domain.Device, discovery bool, logger *zap.Logger) *RunPublisher {
	return &RunPublisher{
		client:    client,
		topics:    topics,
		device:    device,
		discovery: discovery,
		logger:    logger.With(zap.String("component", "mqtt")),
	}
}

// PublishDiscovery announces the charger sensors and the run button. It is a
// no-op when discovery is disabled.
func (p *RunPublisher) PublishDiscovery(ctx context.Context) error {
	if !p.discovery {
		return nil
	}
	var msgs []rawMessage
	for _, sensor := range domain.ChargerSensors(p.device) {
		payload, err := json.Marshal(mqtt.GenericSensorToHADiscoveryMessage(p.topics, sensor))
		if err != nil {
			return err
		}
		msgs = append(msgs, rawMessage{topic: p.topics.HADiscoverySensorTopic(sensor), message: payload})
	}
	for _, button := range domain.ChargerButtons(p.device) {
		payload, err := json.Marshal(mqtt.GenericButtonToHADiscoveryMessage(p.topics, button))
		if err != nil {
			return err
		}
		msgs = append(msgs, rawMessage{topic: p.topics.HADiscoveryButtonTopic(button), message: payload})
	}
	return p.publishAll(ctx, msgs)
}

// PublishOnline marks the bridge as available. The broker publishes the
// offline payload through the last will.
func (p *RunPublisher) PublishOnline(ctx context.Context) error {
	return p.publishAll(ctx, []rawMessage{{topic: p.topics.BridgeStateTopic(), message: mqtt.MQTT_PAYLOAD_ONLINE}})
}

func (p *RunPublisher) PublishRun(ctx context.Context, result domain.RunResult) error {
	values := RunSensorValues(result)
	msgs := make([]rawMessage, 0, len(values))
	for _, v := range values {
		msgs = append(msgs, rawMessage{topic: p.stateTopic(v), message: v.Value})
	}
	return p.publishAll(ctx, msgs)
}

func (p *RunPublisher) stateTopic(v domain.SensorValue) string {
	if v.SensorType == domain.SENSOR_TYPE_BINARY {
		return p.topics.BinarySensorStateTopic(v.Id)
	}
	return p.topics.SensorStateTopic(v.Id)
}

func (p *RunPublisher) publishAll(ctx context.Context, msgs []rawMessage) error {
	results := make(chan error, len(msgs))
	for _, msg := range msgs {
		p.logger.Sugar().Debugf("mqtt@publish: %s => %s", msg.topic, msg.message)
		p.client.Publish(msg.topic, msg.message, 1, true, func(err error) {
			if err != nil {
				err = fmt.Errorf("publish %s: %w", msg.topic, err)
			}
			results <- err
		}, publishTimeout)
	}

	var errs []error
	for range msgs {
		select {
		case err := <-results:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return errors.Join(errs...)
}

// RunSensorValues maps a run result to sensor states.
func RunSensorValues(result domain.RunResult) []domain.SensorValue {
	provider := result.Provider
	if provider == "" {
		provider = "none"
	}
	return []domain.SensorValue{
		sensor(domain.SENSOR_ID_TARGET_SOC, strconv.Itoa(result.Plan.TargetSOC)),
		sensor(domain.SENSOR_ID_CURRENT_SOC, strconv.Itoa(result.CurrentSOC)),
		sensor(domain.SENSOR_ID_CHARGE_RATE, strconv.Itoa(result.Plan.ChargeRatePct)),
		sensor(domain.SENSOR_ID_WRITTEN_RATE, strconv.Itoa(result.WrittenRatePct)),
		sensor(domain.SENSOR_ID_FORECAST_ENERGY, strconv.FormatFloat(result.Plan.ForecastWh/1000, 'f', 2, 64)),
		sensor(domain.SENSOR_ID_SOLAR_COVERAGE, strconv.FormatFloat(result.Plan.SolarCoveragePct, 'f', 1, 64)),
		sensor(domain.SENSOR_ID_FORECAST_SOURCE, provider),
		binary(domain.SENSOR_ID_SETTINGS_UPDATED, result.Updated),
		binary(domain.SENSOR_ID_DEGRADED_PLAN, result.Degraded),
	}
}

func sensor(id, value string) domain.SensorValue {
	return domain.SensorValue{Id: id, SensorType: domain.SENSOR_TYPE_SENSOR, Value: value}
}

func binary(id string, value bool) domain.SensorValue {
	payload := mqtt.MQTT_PAYLOAD_OFF
	if value {
		payload = mqtt.MQTT_PAYLOAD_ON
	}
	return domain.SensorValue{Id: id, SensorType: domain.SENSOR_TYPE_BINARY, Value: payload}
}
