package websocketPkg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"PersonalAssistant/internal/api/voice"
	"PersonalAssistant/internal/entity"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	actionStart = "start"
	actionStop  = "stop"

	eventReady    = "ready"
	eventDetected = "detected"
	eventError    = "error"
)

type command struct {
	Action string `json:"action"`
	Phrase string `json:"phrase,omitempty"`
}

type message struct {
	Event      string    `json:"event"`
	Phrase     string    `json:"phrase,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	Message    string    `json:"message,omitempty"`
	At         time.Time `json:"at,omitempty"`
}

// WakeWordClient drives a keyword-spotting sidecar over a websocket.
type WakeWordClient struct {
	log          *logrus.Logger
	url          string
	mu           sync.Mutex
	conn         *websocket.Conn
	pingInterval time.Duration
	readyTimeout time.Duration
	writeTimeout time.Duration
}

func NewWakeWordClient(log *logrus.Logger, url string) *WakeWordClient {
	if url == "" {
		url = os.Getenv("WAKE_WORD_ENGINE_URL")
	}
	return &WakeWordClient{
		log:          log,
		url:          url,
		pingInterval: 30 * time.Second,
		readyTimeout: 10 * time.Second,
		writeTimeout: 5 * time.Second,
	}
}

func (c *WakeWordClient) Available() bool {
	return c.url != ""
}

// Start connects, arms the phrase and waits for the sidecar to confirm.
// Events are delivered on out until ctx is cancelled or Stop is called.
func (c *WakeWordClient) Start(ctx context.Context, phrase string, out chan<- voice.EngineEvent) error {
	if !c.Available() {
		return errors.New("wake word engine URL not configured")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = c.readyTimeout

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	if err := c.send(conn, command{Action: actionStart, Phrase: phrase}); err != nil {
		conn.Close()
		return err
	}

	conn.SetReadDeadline(time.Now().Add(c.readyTimeout))
	var ack message
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return fmt.Errorf("waiting for engine: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	if ack.Event == eventError {
		conn.Close()
		return fmt.Errorf("engine rejected phrase: %s", ack.Message)
	}
	if ack.Event != eventReady {
		conn.Close()
		return fmt.Errorf("unexpected engine reply %q", ack.Event)
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
		if err != nil {
			c.log.WithField("error", err.Error()).Warn("Error sending pong")
		}
		return nil
	})

	c.conn = conn
	go c.readLoop(ctx, conn, out)
	go c.keepAlive(ctx, conn)

	c.log.WithFields(logrus.Fields{
		"url":    c.url,
		"phrase": phrase,
	}).Info("Wake word engine armed")

	return nil
}

func (c *WakeWordClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	err := c.send(c.conn, command{Action: actionStop})
	c.conn.Close()
	c.conn = nil
	return err
}

func (c *WakeWordClient) send(conn *websocket.Conn, cmd command) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	defer conn.SetWriteDeadline(time.Time{})
	return conn.WriteMessage(websocket.TextMessage, body)
}

func (c *WakeWordClient) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- voice.EngineEvent) {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || !c.current(conn) {
				return
			}
			c.deliver(ctx, out, voice.EngineEvent{Err: fmt.Errorf("engine connection lost: %w", err)})
			return
		}

		var msg message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.WithField("error", err.Error()).Warn("Unreadable wake word engine message")
			continue
		}

		switch msg.Event {
		case eventDetected:
			at := msg.At
			if at.IsZero() {
				at = time.Now()
			}
			c.deliver(ctx, out, voice.EngineEvent{Detection: &entity.WakeWordDetection{
				Phrase:     msg.Phrase,
				Confidence: msg.Confidence,
				DetectedAt: at,
			}})
		case eventError:
			c.deliver(ctx, out, voice.EngineEvent{Err: errors.New(msg.Message)})
		}
	}
}

func (c *WakeWordClient) deliver(ctx context.Context, out chan<- voice.EngineEvent, evt voice.EngineEvent) {
	select {
	case out <- evt:
	case <-ctx.Done():
	}
}

func (c *WakeWordClient) current(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn == conn
}

func (c *WakeWordClient) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if c.conn != conn {
			c.mu.Unlock()
			return
		}
		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.writeTimeout))
		c.mu.Unlock()

		if err != nil {
			c.log.WithField("error", err.Error()).Warn("Ping failed for wake word engine")
			return
		}
	}
}
