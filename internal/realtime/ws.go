package realtime

import (
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const (
	// subscriberBuffer is the per-connection delivery buffer. A connection
	// that falls this far behind starts missing updates rather than
	// stalling publishers.
	subscriberBuffer = 64

	writeTimeout = 5 * time.Second
)

// clientMessage is a control frame sent by a dashboard client.
type clientMessage struct {
	Action    string `json:"action"`
	ShortCode string `json:"shortCode"`
}

// serverMessage wraps a broker payload with the topic it arrived on so a
// client subscribed to several links can route updates.
type serverMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// UpgradeRequired is the HTTP middleware guarding the websocket route.
func UpgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Handler returns the websocket endpoint for live analytics. A client
// joins per-link or global topics with subscribe actions and receives
// every publish on its topics until it disconnects.
func Handler(broker *Broker, logger *slog.Logger) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		session := &wsSession{
			conn:    conn,
			broker:  broker,
			logger:  logger,
			updates: make(chan Envelope, subscriberBuffer),
			done:    make(chan struct{}),
			unsubs:  make(map[string]func()),
		}
		session.run()
	})
}

type wsSession struct {
	conn    *websocket.Conn
	broker  *Broker
	logger  *slog.Logger
	updates chan Envelope
	done    chan struct{}
	unsubs  map[string]func()
}

func (s *wsSession) run() {
	defer s.teardown()

	go s.writeLoop()

	for {
		var msg clientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("Websocket read failed", slog.Any("error", err))
			}
			return
		}

		switch msg.Action {
		case "subscribe":
			if msg.ShortCode == "" {
				continue
			}
			s.join(CodeTopic(msg.ShortCode))
		case "subscribe-global-analytics":
			s.join(GlobalTopic)
		case "unsubscribe":
			if msg.ShortCode == "" {
				continue
			}
			s.leave(CodeTopic(msg.ShortCode))
		case "unsubscribe-global-analytics":
			s.leave(GlobalTopic)
		default:
			s.logger.Debug("Ignoring unknown websocket action", slog.String("action", msg.Action))
		}
	}
}

func (s *wsSession) join(topic string) {
	if _, ok := s.unsubs[topic]; ok {
		return
	}
	s.unsubs[topic] = s.broker.Subscribe(topic, s.updates)
}

func (s *wsSession) leave(topic string) {
	if unsub, ok := s.unsubs[topic]; ok {
		unsub()
		delete(s.unsubs, topic)
	}
}

// writeLoop is the only goroutine that writes to the connection.
func (s *wsSession) writeLoop() {
	for {
		select {
		case env := <-s.updates:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteJSON(serverMessage{Event: env.Topic, Data: env.Payload}); err != nil {
				s.logger.Debug("Websocket write failed", slog.Any("error", err))
				_ = s.conn.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *wsSession) teardown() {
	for topic, unsub := range s.unsubs {
		unsub()
		delete(s.unsubs, topic)
	}
	close(s.done)
	_ = s.conn.Close()
}
