// Package websocket streams annotated frames to preview clients.
package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"

	"framecheck/internal/logger"
	"framecheck/internal/models"

	"github.com/gorilla/websocket"
)

// FrameMessage is sent to viewers for every processed frame.
type FrameMessage struct {
	Frame      int                `json:"frame"`
	Image      string             `json:"image"` // base64 JPEG
	Detections []models.Detection `json:"detections"`
	Plate      string             `json:"plate,omitempty"`
}

type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

// NewHubService creates a hub. Frames published while the broadcast queue is
// full are dropped so the pipeline never waits on slow viewers.
func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 4),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves the hub until ctx is cancelled, then closes every client.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", count)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					h.logger.Warning("Error sending frame to viewer: %v", err)
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues message for all viewers. It reports false when the
// message was dropped.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		return false
	}
}

// Publish sends an annotated frame to the viewers. Nothing is encoded while
// no viewer is connected.
func (h *HubService) Publish(frame int, jpeg []byte, detections []models.Detection, plate string) {
	if h.GetClientCount() == 0 {
		return
	}
	if detections == nil {
		detections = []models.Detection{}
	}

	message, err := json.Marshal(FrameMessage{
		Frame:      frame,
		Image:      base64.StdEncoding.EncodeToString(jpeg),
		Detections: detections,
		Plate:      plate,
	})
	if err != nil {
		h.logger.Error("Failed to encode preview frame %d: %v", frame, err)
		return
	}
	if !h.Broadcast(message) {
		h.logger.Debug("Preview frame %d dropped", frame)
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
