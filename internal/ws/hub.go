package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Msg is a message sent to clients.
type Msg struct {
	Type     string `json:"type"`
	AssetKey string `json:"asset_key,omitempty"`
	Data     any    `json:"data"`
}

// Firehose is the room that receives every published event regardless
// of asset key.
const Firehose = "*"

// Hub manages per-asset WebSocket subscriptions.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*conn]bool // asset key -> set of conns
	allConn map[*conn]bool
}

type conn struct {
	ws   *websocket.Conn
	send chan []byte
	hub  *Hub
	room string
}

func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*conn]bool),
		allConn: make(map[*conn]bool),
	}
}

// Publish sends a message to subscribers of the asset key and to the
// firehose room. Events without a key only reach the firehose.
func (h *Hub) Publish(assetKey, msgType string, data any) {
	msg := Msg{Type: msgType, AssetKey: assetKey, Data: data}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.RLock()
	targets := make(map[*conn]bool, len(h.rooms[assetKey])+len(h.rooms[Firehose]))
	if assetKey != "" {
		for c := range h.rooms[assetKey] {
			targets[c] = true
		}
	}
	for c := range h.rooms[Firehose] {
		targets[c] = true
	}
	h.mu.RUnlock()
	for c := range targets {
		select {
		case c.send <- b:
		default:
			// slow client, drop
		}
	}
}

// HandleWS is the HTTP handler for WebSocket connections.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}
	c := &conn{
		ws:   wsConn,
		send: make(chan []byte, 64),
		hub:  h,
	}
	h.mu.Lock()
	h.allConn[c] = true
	h.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

func (c *conn) readPump() {
	defer func() {
		c.hub.removeConn(c)
		c.ws.Close()
	}()
	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			break
		}
		// Subscription message: {"action":"subscribe","asset_key":"0x..."}
		// Use "*" as the key to follow everything.
		var sub struct {
			Action   string `json:"action"`
			AssetKey string `json:"asset_key"`
		}
		if err := json.Unmarshal(msg, &sub); err != nil {
			continue
		}
		switch sub.Action {
		case "subscribe":
			c.hub.subscribe(c, sub.AssetKey)
		case "unsubscribe":
			c.hub.unsubscribe(c, sub.AssetKey)
		}
	}
}

func (c *conn) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
}

func (h *Hub) subscribe(c *conn, assetKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	// One room per connection; drop the previous subscription
	if c.room != "" {
		if room, ok := h.rooms[c.room]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, c.room)
			}
		}
	}
	c.room = assetKey
	room, ok := h.rooms[assetKey]
	if !ok {
		room = make(map[*conn]bool)
		h.rooms[assetKey] = room
	}
	room[c] = true
}

func (h *Hub) unsubscribe(c *conn, assetKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[assetKey]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, assetKey)
		}
	}
	if c.room == assetKey {
		c.room = ""
	}
}

func (h *Hub) removeConn(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.allConn, c)
	if c.room != "" {
		if room, ok := h.rooms[c.room]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.rooms, c.room)
			}
		}
	}
	close(c.send)
}
