package director

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/overlay-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/overlay-core/internal/progression"
)

// ErrBadCommand is returned for a command message that cannot be parsed.
var ErrBadCommand = errors.New("director: malformed command")

const (
	defaultCommandTimeout = 10 * time.Second
	commandQoS            = 1
	defaultMQTTActor      = "mqtt"
)

// CommandPayload is the optional JSON body of an MQTT command. Moves need
// a run, by id or by run index.
//
//	{"actor": "deck-1", "run_index": 4}
type CommandPayload struct {
	Actor    string `json:"actor,omitempty"`
	RunID    *int64 `json:"run_id,omitempty"`
	RunIndex *int   `json:"run_index,omitempty"`
}

// Command runs action on event with the arguments in p.
func (d *Director) Command(ctx context.Context, event string, action progression.Action, p CommandPayload, actor Actor) (*Outcome, error) {
	var dir progression.Direction
	switch action {
	case progression.ActionMoveUp:
		dir = progression.Up
	case progression.ActionMoveDown:
		dir = progression.Down
	default:
		return d.Do(ctx, event, action, actor)
	}

	switch {
	case p.RunID != nil:
		return d.Move(ctx, event, *p.RunID, dir, actor)
	case p.RunIndex != nil:
		return d.MoveIndex(ctx, event, *p.RunIndex, dir, actor)
	default:
		return nil, fmt.Errorf("%w: %s needs run_id or run_index", ErrBadCommand, action)
	}
}

// CommandHandler handles messages on {prefix}/command/{event}/{action}.
// Each command gets its own timeout, detached from the MQTT client.
func (d *Director) CommandHandler(topics mqtt.Topics, timeout time.Duration) mqtt.MessageHandler {
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}

	return func(topic string, payload []byte) error {
		event, action, ok := topics.ParseCommand(topic)
		if !ok {
			return fmt.Errorf("%w: topic %q", ErrBadCommand, topic)
		}

		var p CommandPayload
		if len(bytes.TrimSpace(payload)) > 0 {
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("%w: %w", ErrBadCommand, err)
			}
		}
		actor := Actor{Name: p.Actor, Source: SourceMQTT}
		if actor.Name == "" {
			actor.Name = defaultMQTTActor
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		o, err := d.Command(ctx, event, progression.Action(action), p, actor)
		if err != nil {
			return fmt.Errorf("%s %s: %w", action, event, err)
		}
		d.logger.Info("mqtt command applied",
			"event", event,
			"action", action,
			"actor", actor.Name,
			"changed", o.Transition.Changed,
		)
		return nil
	}
}

// Listen subscribes to every command topic on client.
func (d *Director) Listen(client *mqtt.Client, timeout time.Duration) error {
	topics := client.Topics()
	if err := client.Subscribe(topics.AllCommands(), commandQoS, d.CommandHandler(topics, timeout)); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	return nil
}
