// Package mqtt connects the overlay service to an MQTT broker.
//
// The service publishes each event's timeline state as a retained message
// so scoreboards and stage displays always see the current run, and
// subscribes to command topics so hardware button decks can advance or
// revert without the web console:
//
//	overlay/event/Marathon2024/state        retained JSON state
//	overlay/command/Marathon2024/advance    empty payload, from a deck
//
// A last will marks the service offline on overlay/system/status.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
package mqtt
