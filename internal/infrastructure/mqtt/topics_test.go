package mqtt

import "testing"

func TestTopicBuilders(t *testing.T) {
	topics := Topics{Prefix: "overlay"}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"status", topics.SystemStatus(), "overlay/system/status"},
		{"state", topics.EventState("Marathon2024"), "overlay/event/Marathon2024/state"},
		{"transition", topics.EventTransition("Marathon2024"), "overlay/event/Marathon2024/transition"},
		{"command", topics.Command("Marathon2024", "advance"), "overlay/command/Marathon2024/advance"},
		{"all commands", topics.AllCommands(), "overlay/command/+/+"},
		{"unsafe name", topics.EventState("GDQ/2024 #1+"), "overlay/event/GDQ_2024 _1_/state"},
		{"default prefix", Topics{}.SystemStatus(), "overlay/system/status"},
		{"trailing slash", Topics{Prefix: "studio/"}.AllCommands(), "studio/command/+/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParseCommand(t *testing.T) {
	topics := Topics{Prefix: "overlay"}

	tests := []struct {
		topic  string
		event  string
		action string
		ok     bool
	}{
		{"overlay/command/Marathon2024/advance", "Marathon2024", "advance", true},
		{topics.Command("Marathon2024", "revert"), "Marathon2024", "revert", true},
		{"overlay/command/Marathon2024", "", "", false},
		{"overlay/command/Marathon2024/advance/extra", "", "", false},
		{"overlay/command//advance", "", "", false},
		{"other/command/Marathon2024/advance", "", "", false},
		{"overlay/event/Marathon2024/state", "", "", false},
	}

	for _, tt := range tests {
		event, action, ok := topics.ParseCommand(tt.topic)
		if event != tt.event || action != tt.action || ok != tt.ok {
			t.Errorf("ParseCommand(%q) = %q, %q, %v; want %q, %q, %v",
				tt.topic, event, action, ok, tt.event, tt.action, tt.ok)
		}
	}
}
