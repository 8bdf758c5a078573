package main

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypePly   MessageType = "ply"
	MessageTypeDone  MessageType = "done"
	MessageTypeError MessageType = "error"
)

type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// conn is the part of *websocket.Conn the hub writes to.
type conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Hub fans analysis messages out to every connected viewer. Messages are
// kept so that a viewer joining late first receives what it missed.
type Hub struct {
	mu      sync.Mutex
	conns   map[string]conn
	history []Message
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]conn)}
}

// Register adds c and replays the history to it. It returns the viewer id.
func (h *Hub) Register(c conn) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, msg := range h.history {
		if err := c.WriteJSON(msg); err != nil {
			return "", err
		}
	}
	id := uuid.NewString()
	h.conns[id] = c
	return id, nil
}

func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}

// Broadcast sends payload to every viewer and drops the ones that fail.
func (h *Hub) Broadcast(t MessageType, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("marshal %s message: %v", t, err)
		return
	}
	msg := Message{Type: t, Payload: raw}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.history = append(h.history, msg)
	for id, c := range h.conns {
		if err := c.WriteJSON(msg); err != nil {
			log.Printf("write to viewer %s: %v", id, err)
			c.Close()
			delete(h.conns, id)
		}
	}
}

func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// HandleConnection serves one websocket viewer until it disconnects. The
// viewer only listens; anything it sends is ignored.
func (h *Hub) HandleConnection(c *websocket.Conn) {
	id, err := h.Register(c)
	if err != nil {
		log.Printf("failed to register viewer: %v", err)
		c.Close()
		return
	}
	log.Printf("viewer %s connected", id)
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
	h.Unregister(id)
	log.Printf("viewer %s disconnected", id)
}
