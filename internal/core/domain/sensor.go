package domain

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE     = "bridge"
	SENSOR_ID_TARGET_SOC       = "target_soc"
	SENSOR_ID_CURRENT_SOC      = "current_soc"
	SENSOR_ID_CHARGE_RATE      = "charge_rate"
	SENSOR_ID_WRITTEN_RATE     = "written_charge_rate"
	SENSOR_ID_FORECAST_ENERGY  = "forecast_energy"
	SENSOR_ID_SOLAR_COVERAGE   = "solar_coverage"
	SENSOR_ID_FORECAST_SOURCE  = "forecast_provider"
	SENSOR_ID_SETTINGS_UPDATED = "settings_updated"
	SENSOR_ID_DEGRADED_PLAN    = "degraded_plan"
	BUTTON_ID_RUN_NOW          = "run_now"
	STATE_CLASS_MEASUREMENT    = "measurement"
	DEVICE_CLASS_BATTERY       = "battery"
	DEVICE_CLASS_ENERGY        = "energy"
	DEVICE_CLASS_CONNECTIVITY  = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC    = "diagnostic"
	SENSOR_TYPE_SENSOR         = "sensor"
	SENSOR_TYPE_BINARY         = "binary_sensor"
)

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
}

type GenericSensor struct {
	Device            Device
	Id                string
	SensorType        string
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string
	DeviceClass       string
	EntityCategory    string
	Icon              string
}

type GenericButton struct {
	Device   Device
	Id       string
	Name     string
	UniqueId string
	Icon     string
}

// SensorValue is a single state update for a published sensor.
type SensorValue struct {
	Id         string
	SensorType string
	Value      string
}

func ChargerDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("growattcharger_%s", md5HashShort(baseTopic)),
		Manufacturer: "Growatt",
		Model:        "Charge planner",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Growatt charger %s", md5HashShort(baseTopic)),
	}
}

func ChargerSensors(device Device) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:         device,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(device.Id, SENSOR_ID_BRIDGE_STATE),
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_TARGET_SOC,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Target SoC",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_TARGET_SOC),
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_CURRENT_SOC,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Evening SoC",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_CURRENT_SOC),
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_CHARGE_RATE,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Planned charge rate",
		StateClass:        STATE_CLASS_MEASUREMENT,
		UnitOfMeasurement: "%",
		Icon:              "mdi:battery-charging",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_CHARGE_RATE),
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_WRITTEN_RATE,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Written charge rate",
		StateClass:        STATE_CLASS_MEASUREMENT,
		UnitOfMeasurement: "%",
		Icon:              "mdi:battery-charging-high",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_WRITTEN_RATE),
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_FORECAST_ENERGY,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Solar forecast",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		UnitOfMeasurement: "kWh",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_FORECAST_ENERGY),
	})
	sensors = append(sensors, GenericSensor{
		Device:            device,
		Id:                SENSOR_ID_SOLAR_COVERAGE,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Solar coverage",
		StateClass:        STATE_CLASS_MEASUREMENT,
		UnitOfMeasurement: "%",
		Icon:              "mdi:solar-power",
		UniqueId:          uniqueId(device.Id, SENSOR_ID_SOLAR_COVERAGE),
	})
	sensors = append(sensors, GenericSensor{
		Device:         device,
		Id:             SENSOR_ID_FORECAST_SOURCE,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Forecast provider",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		Icon:           "mdi:weather-partly-cloudy",
		UniqueId:       uniqueId(device.Id, SENSOR_ID_FORECAST_SOURCE),
	})
	sensors = append(sensors, GenericSensor{
		Device:     device,
		Id:         SENSOR_ID_SETTINGS_UPDATED,
		SensorType: SENSOR_TYPE_BINARY,
		Name:       "Charge settings updated",
		UniqueId:   uniqueId(device.Id, SENSOR_ID_SETTINGS_UPDATED),
	})
	sensors = append(sensors, GenericSensor{
		Device:         device,
		Id:             SENSOR_ID_DEGRADED_PLAN,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Degraded plan",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(device.Id, SENSOR_ID_DEGRADED_PLAN),
	})

	return sensors
}

func ChargerButtons(device Device) []GenericButton {
	return []GenericButton{{
		Device:   device,
		Id:       BUTTON_ID_RUN_NOW,
		Name:     "Run charge planning",
		UniqueId: uniqueId(device.Id, BUTTON_ID_RUN_NOW),
		Icon:     "mdi:play",
	}}
}

func uniqueId(deviceId string, sensorId string) string {
	return fmt.Sprintf("%s_%s", deviceId, sensorId)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	return md5Hash(text)[0:8]
}
