package mqtt

import "strings"

// Topics builds the overlay topic hierarchy under a configurable prefix
// (mqtt.topic_prefix, "overlay" by default):
//
//	{prefix}/system/status                  retained online/offline
//	{prefix}/event/{event}/state            retained timeline state
//	{prefix}/event/{event}/transition       one message per transition
//	{prefix}/command/{event}/{action}       operator commands (button decks)
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return "overlay"
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

// SystemStatus is the service's online/offline status topic.
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// EventState is the retained state topic of an event.
//
// Example: overlay/event/Marathon2024/state
func (t Topics) EventState(event string) string {
	return t.prefix() + "/event/" + segment(event) + "/state"
}

// EventTransition carries one message per committed transition.
func (t Topics) EventTransition(event string) string {
	return t.prefix() + "/event/" + segment(event) + "/transition"
}

// Command is the topic an operator device publishes an action to.
//
// Example: overlay/command/Marathon2024/advance
func (t Topics) Command(event, action string) string {
	return t.prefix() + "/command/" + segment(event) + "/" + segment(action)
}

// AllCommands matches every command topic.
//
// Pattern: overlay/command/+/+
func (t Topics) AllCommands() string {
	return t.prefix() + "/command/+/+"
}

// ParseCommand splits a command topic into event and action.
func (t Topics) ParseCommand(topic string) (event, action string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.prefix()+"/command/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// segment makes a name safe as a single topic level: the level separator
// and the wildcards are replaced.
func segment(s string) string {
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}
