package mqtt

import (
	"testing"

	"github.com/berfenger/growattcharger/internal/config"
	"github.com/berfenger/growattcharger/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestButtonCommandParse(t *testing.T) {

	assert := assert.New(t)

	r := buttonCommandExtractor("loremTopic")
	cmd, err := parseButtonCommand(r, "loremTopic/button/run_now/press", "PRESS")

	assert.NoError(err)
	assert.Equal("run_now", cmd.DeviceId, "button extract")
	assert.Equal(MQTT_COMMAND_BUTTON, cmd.Command)
	assert.Equal("PRESS", cmd.Payload)
}

func TestButtonCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	r := buttonCommandExtractor("loremTopic")
	_, err := parseButtonCommand(r, "loremTopic/sensor/run_now/state", "PRESS")
	assert.Error(err)

	_, err = parseButtonCommand(r, "otherTopic/button/run_now/press", "PRESS")
	assert.Error(err)
}

func TestTopics(t *testing.T) {

	assert := assert.New(t)

	topics := NewTopics(config.MQTTConfig{BaseTopic: "growattcharger"})
	assert.Equal("growattcharger/bridge/state", topics.BridgeStateTopic())
	assert.Equal("growattcharger/sensor/target_soc/state", topics.SensorStateTopic(domain.SENSOR_ID_TARGET_SOC))
	assert.Equal("growattcharger/binary_sensor/degraded_plan/state", topics.BinarySensorStateTopic(domain.SENSOR_ID_DEGRADED_PLAN))
	assert.Equal("growattcharger/button/+/press", topics.CommandTopic())

	sensor := domain.GenericSensor{
		Device:     domain.Device{Id: "growattcharger_local"},
		Id:         domain.SENSOR_ID_TARGET_SOC,
		SensorType: domain.SENSOR_TYPE_SENSOR,
	}
	assert.Equal("homeassistant/sensor/growattcharger_local/target_soc/config", topics.HADiscoverySensorTopic(sensor))

	custom := NewTopics(config.MQTTConfig{BaseTopic: "gc", HADiscoveryTopic: "ha"})
	assert.Equal("ha/button/dev/run_now/config",
		custom.HADiscoveryButtonTopic(domain.GenericButton{Device: domain.Device{Id: "dev"}, Id: domain.BUTTON_ID_RUN_NOW}))
}

func TestHADiscoveryMessages(t *testing.T) {

	assert := assert.New(t)

	topics := NewTopics(config.MQTTConfig{BaseTopic: "gc"})
	dev := domain.Device{Id: "dev", Name: "Charger", Version: "v1"}

	bridge := GenericSensorToHADiscoveryMessage(topics, domain.GenericSensor{
		Device: dev, Id: domain.SENSOR_ID_BRIDGE_STATE, SensorType: domain.SENSOR_TYPE_BINARY,
	})
	assert.Equal("gc/bridge/state", bridge.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ONLINE, bridge.PayloadOn)
	assert.Empty(bridge.AvTopic)

	updated := GenericSensorToHADiscoveryMessage(topics, domain.GenericSensor{
		Device: dev, Id: domain.SENSOR_ID_SETTINGS_UPDATED, SensorType: domain.SENSOR_TYPE_BINARY,
	})
	assert.Equal("gc/binary_sensor/settings_updated/state", updated.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ON, updated.PayloadOn)
	assert.Equal("gc/bridge/state", updated.AvTopic)

	soc := GenericSensorToHADiscoveryMessage(topics, domain.GenericSensor{
		Device: dev, Id: domain.SENSOR_ID_TARGET_SOC, SensorType: domain.SENSOR_TYPE_SENSOR, UnitOfMeasurement: "%",
	})
	assert.Equal("gc/sensor/target_soc/state", soc.StateTopic)
	assert.Empty(soc.PayloadOn)
	assert.Equal([]string{"dev"}, soc.Device.Id)
	assert.Equal("v1", soc.Device.Version)

	button := GenericButtonToHADiscoveryMessage(topics, domain.GenericButton{Device: dev, Id: domain.BUTTON_ID_RUN_NOW})
	assert.Equal("gc/button/run_now/press", button.CommandTopic)
	assert.Equal(MQTT_PAYLOAD_PRESS, button.PayloadPress)
}
