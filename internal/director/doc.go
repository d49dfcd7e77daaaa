// Package director runs operator commands end to end.
//
// A command moves the timeline in one transaction (package progression),
// then pushes the committed state to the overlay (package overlay), then
// hands the outcome to every registered Publisher: the websocket hub, the
// MQTT state topics, InfluxDB and the audit trail. Overlay and publisher
// failures never undo a committed transition.
//
// Commands arrive over HTTP, from the runctl CLI and from MQTT button
// decks on {prefix}/command/{event}/{action}.
package director
