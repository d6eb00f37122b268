package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/qubitplay/quantum-crash-go/internal/lib/logger/sl"
)

// Message is one published notification: Channel routes to subscribers (one
// channel per session), Event names the engine event type.
type Message struct {
	Channel string      `json:"channel"`
	Event   string      `json:"event"`
	Data    interface{} `json:"data"`
}

type Subscription struct {
	Conn    *websocket.Conn
	Channel string
}

// Hub fans engine events out to WebSocket subscribers grouped by channel.
type Hub struct {
	Channels    map[string]map[*websocket.Conn]bool
	Broadcast   chan Message
	Subscribe   chan Subscription
	Unsubscribe chan Subscription
	mutex       sync.RWMutex
	log         *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		Channels:    make(map[string]map[*websocket.Conn]bool),
		Broadcast:   make(chan Message, 256),
		Subscribe:   make(chan Subscription),
		Unsubscribe: make(chan Subscription),
		log:         log,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Run dispatches subscriptions and broadcasts until the process exits.
func (hub *Hub) Run() {
	for {
		select {
		case sub := <-hub.Subscribe:
			hub.mutex.Lock()
			if hub.Channels[sub.Channel] == nil {
				hub.Channels[sub.Channel] = make(map[*websocket.Conn]bool)
			}
			hub.Channels[sub.Channel][sub.Conn] = true
			hub.mutex.Unlock()
		case sub := <-hub.Unsubscribe:
			hub.mutex.Lock()
			if receivers, ok := hub.Channels[sub.Channel]; ok {
				delete(receivers, sub.Conn)
				if len(receivers) == 0 {
					delete(hub.Channels, sub.Channel)
				}
			}
			hub.mutex.Unlock()
		case message := <-hub.Broadcast:
			hub.deliver(message)
		}
	}
}

func (hub *Hub) deliver(message Message) {
	data, err := json.Marshal(message)
	if err != nil {
		hub.log.Error("failed to marshal message", sl.Err(err))
		return
	}

	hub.mutex.RLock()
	receivers := hub.Channels[message.Channel]
	conns := make([]*websocket.Conn, 0, len(receivers))
	for conn := range receivers {
		conns = append(conns, conn)
	}
	hub.mutex.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			hub.log.Error("failed to write message", sl.Err(err))
		}
	}
}

// Publish is a non-blocking broadcast. Events are drop-on-overflow: a slow
// hub must not stall the engine's settlement path.
func (hub *Hub) Publish(message Message) {
	select {
	case hub.Broadcast <- message:
	default:
		hub.log.Warn("broadcast buffer full, dropping event",
			sl.String("channel", message.Channel), sl.String("event", message.Event))
	}
}

// HandleConnection upgrades an HTTP request and subscribes it to the
// channel named by the "session" query parameter. The read loop exists only
// to detect disconnects; clients never write engine state.
func (hub *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("session")
	if channel == "" {
		http.Error(w, "missing session parameter", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Error("failed to upgrade connection", sl.Err(err))
		return
	}

	hub.Subscribe <- Subscription{Conn: conn, Channel: channel}

	defer func() {
		hub.Unsubscribe <- Subscription{Conn: conn, Channel: channel}
		if err := conn.Close(); err != nil {
			hub.log.Error("failed to close connection", sl.Err(err))
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
