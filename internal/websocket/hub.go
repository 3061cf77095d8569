package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/makeasinger/producer/internal/model"
)

// Client represents a WebSocket subscriber to one production's events
type Client struct {
	ProductionID string
	Conn         *websocket.Conn
	Send         chan []byte
}

// Hub fans production and song status events out to subscribers,
// grouped by production id. A nil *Hub is valid and drops all events,
// so pipeline code never needs to guard its broadcasts.
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu sync.RWMutex
}

type broadcastMessage struct {
	ProductionID string
	Message      []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.ProductionID] == nil {
				h.clients[client.ProductionID] = make(map[*Client]bool)
			}
			h.clients[client.ProductionID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.ProductionID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.ProductionID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.ProductionID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) send(productionID string, payload interface{}) {
	if h == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[Hub] failed to marshal event: %v", err)
		return
	}
	select {
	case h.broadcast <- &broadcastMessage{ProductionID: productionID, Message: data}:
	default:
		// drop rather than block the pipeline on a slow consumer
	}
}

// BroadcastSongStatus announces a song status change.
func (h *Hub) BroadcastSongStatus(song *model.Song) {
	msg := model.WSSongMessage{
		Type:         model.WSMessageTypeSong,
		ProductionID: song.ProductionID,
		SongID:       song.ID,
		TrackNumber:  song.TrackNumber,
		Status:       song.Status,
	}
	if song.ErrorMessage != nil {
		msg.Error = *song.ErrorMessage
	}
	h.send(song.ProductionID, msg)
}

// BroadcastProductionStatus announces a production status change.
func (h *Hub) BroadcastProductionStatus(productionID string, status model.ProductionStatus, errMsg string) {
	h.send(productionID, model.WSProductionMessage{
		Type:         model.WSMessageTypeProduction,
		ProductionID: productionID,
		Status:       status,
		Error:        errMsg,
	})
}

// HandleConnection handles a WebSocket connection subscribed to one
// production's event stream.
func (h *Hub) HandleConnection(c *websocket.Conn, productionID string) {
	client := &Client{
		ProductionID: productionID,
		Conn:         c,
		Send:         make(chan []byte, 256),
	}

	h.register <- client
	defer func() { h.unregister <- client }()

	// Writer goroutine with keep-alive pings
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Hub] websocket error: %v", err)
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			pong := model.WSMessage{Type: model.WSMessageTypePong}
			data, _ := json.Marshal(pong)
			client.Send <- data
		}
	}
}
