package obs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/overlay-core/internal/infrastructure/config"
	"github.com/nerrad567/overlay-core/internal/overlay"
)

// defaultTimeout bounds a call whose context carries no deadline.
const defaultTimeout = 5 * time.Second

// Logger is the logging surface the client needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Scene is one entry of the OBS scene collection.
type Scene struct {
	Name    string `json:"name"`
	Index   int    `json:"index"`
	Program bool   `json:"program"`
}

// Client speaks obs-websocket v5 over a single connection.
//
// Requests are serialised: one request is in flight at a time. The
// connection is opened on first use and dropped on any I/O error, so the
// next call reconnects.
type Client struct {
	url      string
	password string
	dialer   *websocket.Dialer
	logger   Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// New returns a client for the server at rawURL ("ws://host:port").
// No connection is made until the first request.
func New(rawURL, password string, opts ...Option) *Client {
	c := &Client{
		url:      rawURL,
		password: password,
		dialer:   websocket.DefaultDialer,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds a client from the obs section of config.yaml.
func NewFromConfig(cfg config.OBSConfig, opts ...Option) *Client {
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))}
	return New(u.String(), cfg.Password, opts...)
}

// Close drops the connection. Later calls return ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Ping opens the connection if needed and checks that it answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, "GetVersion", nil, nil)
}

// HealthCheck reports whether OBS answers. It is Ping.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx)
}

// SetProgramScene switches the live output.
func (c *Client) SetProgramScene(ctx context.Context, scene string) error {
	return c.call(ctx, "SetCurrentProgramScene", map[string]any{"sceneName": scene}, nil)
}

// SetPreviewScene enables studio mode and loads scene into preview.
func (c *Client) SetPreviewScene(ctx context.Context, scene string) error {
	if err := c.call(ctx, "SetStudioModeEnabled", map[string]any{"studioModeEnabled": true}, nil); err != nil {
		return err
	}
	return c.call(ctx, "SetCurrentPreviewScene", map[string]any{"sceneName": scene}, nil)
}

// SetText replaces the text of a text source.
func (c *Client) SetText(ctx context.Context, input, text string) error {
	return c.setInput(ctx, input, map[string]any{"text": text})
}

// SetStreamURL points a media source at a stream.
func (c *Client) SetStreamURL(ctx context.Context, input, streamURL string) error {
	return c.setInput(ctx, input, map[string]any{"input": streamURL})
}

func (c *Client) setInput(ctx context.Context, input string, settings map[string]any) error {
	return c.call(ctx, "SetInputSettings", map[string]any{
		"inputName":     input,
		"inputSettings": settings,
		"overlay":       true,
	}, nil)
}

// GetElementGeometry returns the box of a scene item.
func (c *Client) GetElementGeometry(ctx context.Context, scene, element string) (overlay.Geometry, error) {
	item, err := c.findItem(ctx, scene, element)
	if err != nil {
		return overlay.Geometry{}, err
	}
	return overlay.Geometry{
		X:      item.Transform.PositionX,
		Y:      item.Transform.PositionY,
		Width:  item.Transform.Width,
		Height: item.Transform.Height,
	}, nil
}

// SetElementGeometry moves a scene item. Only the position is sent; OBS
// derives the size from the source.
func (c *Client) SetElementGeometry(ctx context.Context, scene, element string, g overlay.Geometry) error {
	item, err := c.findItem(ctx, scene, element)
	if err != nil {
		return err
	}
	return c.call(ctx, "SetSceneItemTransform", map[string]any{
		"sceneName":   scene,
		"sceneItemId": item.SceneItemID,
		"sceneItemTransform": map[string]any{
			"positionX": g.X,
			"positionY": g.Y,
		},
	}, nil)
}

func (c *Client) findItem(ctx context.Context, scene, element string) (*sceneItem, error) {
	var list sceneItemList
	if err := c.call(ctx, "GetSceneItemList", map[string]any{"sceneName": scene}, &list); err != nil {
		return nil, err
	}
	for i := range list.SceneItems {
		if list.SceneItems[i].SourceName == element {
			return &list.SceneItems[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s in %s", overlay.ErrElementNotFound, element, scene)
}

// Scenes lists the scene collection in OBS order.
func (c *Client) Scenes(ctx context.Context) ([]Scene, error) {
	var list sceneList
	if err := c.call(ctx, "GetSceneList", nil, &list); err != nil {
		return nil, err
	}
	scenes := make([]Scene, 0, len(list.Scenes))
	for _, s := range list.Scenes {
		scenes = append(scenes, Scene{
			Name:    s.SceneName,
			Index:   s.SceneIndex,
			Program: s.SceneName == list.CurrentProgramSceneName,
		})
	}
	return scenes, nil
}

// Screenshot renders source as a PNG of the given width (0 keeps the
// source width).
func (c *Client) Screenshot(ctx context.Context, source string, width int) ([]byte, error) {
	data := map[string]any{
		"sourceName":  source,
		"imageFormat": "png",
	}
	if width > 0 {
		data["imageWidth"] = width
	}

	var shot screenshot
	if err := c.call(ctx, "GetSourceScreenshot", data, &shot); err != nil {
		return nil, err
	}

	encoded := shot.ImageData
	if i := strings.IndexByte(encoded, ','); i >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+1:]
	}
	img, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding screenshot: %w", err)
	}
	return img, nil
}

// call sends one request and decodes its response data into out.
func (c *Client) call(ctx context.Context, requestType string, data any, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultTimeout)
	}

	if c.conn == nil {
		conn, err := c.connect(ctx, deadline)
		if err != nil {
			return err
		}
		c.conn = conn
	}

	resp, err := c.roundTrip(ctx, deadline, requestType, data)
	if err != nil {
		c.logger.Warn("obs connection dropped", "request", requestType, "error", err)
		_ = c.conn.Close()
		c.conn = nil
		return err
	}

	if !resp.RequestStatus.Result {
		return &RequestError{
			RequestType: requestType,
			Code:        resp.RequestStatus.Code,
			Comment:     resp.RequestStatus.Comment,
		}
	}

	if out != nil && len(resp.ResponseData) > 0 {
		if err := json.Unmarshal(resp.ResponseData, out); err != nil {
			return fmt.Errorf("decoding %s response: %w", requestType, err)
		}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, deadline time.Time, requestType string, data any) (*requestResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	payload, err := json.Marshal(request{RequestType: requestType, RequestID: id, RequestData: data})
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", requestType, err)
	}

	stop := c.cancelOnDone(ctx)
	defer stop()

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return nil, err
	}
	if err := c.conn.WriteJSON(envelope{Op: opRequest, Data: payload}); err != nil {
		return nil, fmt.Errorf("sending %s: %w", requestType, err)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	for {
		var env envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("awaiting %s: %w", requestType, err)
		}
		// Events and stale responses are skipped.
		if env.Op != opRequestResponse {
			continue
		}
		var resp requestResponse
		if err := json.Unmarshal(env.Data, &resp); err != nil {
			return nil, fmt.Errorf("decoding %s response: %w", requestType, err)
		}
		if resp.RequestID == id {
			return &resp, nil
		}
	}
}

// cancelOnDone unblocks pending I/O when ctx is cancelled before its
// deadline.
func (c *Client) cancelOnDone(ctx context.Context) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	conn := c.conn
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
			_ = conn.SetWriteDeadline(time.Now())
		case <-done:
		}
	}()
	return func() { close(done) }
}

// connect dials and completes the Hello/Identify handshake.
func (c *Client) connect(ctx context.Context, deadline time.Time) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	conn, _, err := c.dialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to obs at %s: %w", c.url, err)
	}

	if err := c.handshake(conn, deadline); err != nil {
		_ = conn.Close()
		return nil, err
	}

	c.logger.Info("connected to obs", "url", c.url)
	return conn, nil
}

func (c *Client) handshake(conn *websocket.Conn, deadline time.Time) error {
	if err := conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		return fmt.Errorf("%w: reading hello: %v", ErrHandshake, err)
	}
	if env.Op != opHello {
		return fmt.Errorf("%w: expected hello, got op %d", ErrHandshake, env.Op)
	}
	var h hello
	if err := json.Unmarshal(env.Data, &h); err != nil {
		return fmt.Errorf("%w: decoding hello: %v", ErrHandshake, err)
	}

	id := identify{RPCVersion: rpcVersion}
	if h.Authentication != nil {
		if c.password == "" {
			return ErrAuthRequired
		}
		id.Authentication = authResponse(c.password, h.Authentication.Salt, h.Authentication.Challenge)
	}

	payload, err := json.Marshal(id)
	if err != nil {
		return err
	}
	if err := conn.WriteJSON(envelope{Op: opIdentify, Data: payload}); err != nil {
		return fmt.Errorf("%w: sending identify: %v", ErrHandshake, err)
	}

	if err := conn.ReadJSON(&env); err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			return fmt.Errorf("%w: server closed with %d %s", ErrHandshake, closeErr.Code, closeErr.Text)
		}
		return fmt.Errorf("%w: reading identified: %v", ErrHandshake, err)
	}
	if env.Op != opIdentified {
		return fmt.Errorf("%w: expected identified, got op %d", ErrHandshake, env.Op)
	}
	var ok identified
	if err := json.Unmarshal(env.Data, &ok); err != nil {
		return fmt.Errorf("%w: decoding identified: %v", ErrHandshake, err)
	}
	return nil
}

var _ overlay.SceneController = (*Client)(nil)
