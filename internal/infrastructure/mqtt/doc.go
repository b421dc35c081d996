// Package mqtt connects the automation controller to the Mosquitto broker.
//
// The broker decouples the controller from protocol bridges (KNX, DALI,
// Modbus). Bridges publish sensor state, the controller publishes actuator
// commands and automation records:
//
//	bridge ──graylogic/state/{protocol}/{address}──► ingest ──► bus
//	actuator sink ──graylogic/command/{protocol}/{address}──► bridge
//	engine ──graylogic/core/automation/{id}/fired──► dashboards
//
// The Client wraps paho.mqtt.golang with auto-reconnect, subscription
// restoration after reconnect, a Last Will on graylogic/system/status and
// panic-safe message handlers.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllBridgeStates(), 1, ingest.HandleMessage)
package mqtt
