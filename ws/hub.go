// Package ws carries live task progress to browsers and control
// messages back, over a single websocket endpoint.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"clipforge/task"

	"github.com/gorilla/websocket"
)

// Controller is the slice of the task registry the hub needs to act on
// inbound control messages.
type Controller interface {
	RequestCancel(id string)
	RequestPause(id string)
	RequestResume(id string)
	Get(id string) (task.Task, bool)
}

// ControlMessage is a client-to-server request. Any connected client
// may control any task id it knows; there is no per-connection task
// affinity.
type ControlMessage struct {
	Type   string `json:"type"`
	TaskID string `json:"task_id"`
}

const (
	ctrlCancel    = "cancel_task"
	ctrlPause     = "pause_task"
	ctrlResume    = "resume_task"
	ctrlGetStatus = "get_task_status"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect cross-origin in development setups.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans registry events out to every connected client. Delivery is
// best-effort: a client that cannot keep up is dropped rather than
// allowed to stall progress reporting.
type Hub struct {
	controller Controller

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
}

func NewHub(controller Controller) *Hub {
	return &Hub{
		controller: controller,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
	}
}

// Run owns the client set. It must be started before ServeWS accepts
// connections and stops when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			log.Printf("Push client connected (%d total)", len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Printf("Push client disconnected (%d total)", len(h.clients))
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer: drop it.
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Publish queues an event for broadcast. It never blocks the caller;
// the registry invokes it under its lock.
func (h *Hub) Publish(event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Dropping unmarshalable push event: %v", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		log.Printf("Push broadcast buffer full, dropping event")
	}
}

// ServeWS upgrades an HTTP request into a push-channel connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 64)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// dispatch handles one inbound control message. Unknown task ids are
// silently ignored: the client cannot distinguish "finished and
// forgotten" from "never existed".
func (h *Hub) dispatch(c *Client, msg ControlMessage) {
	if msg.TaskID == "" {
		return
	}
	switch msg.Type {
	case ctrlCancel:
		h.controller.RequestCancel(msg.TaskID)
	case ctrlPause:
		h.controller.RequestPause(msg.TaskID)
	case ctrlResume:
		h.controller.RequestResume(msg.TaskID)
	case ctrlGetStatus:
		snapshot, ok := h.controller.Get(msg.TaskID)
		if !ok {
			return
		}
		// Snapshot replies go to the requesting connection only.
		payload, err := json.Marshal(task.ProgressEvent{
			Type:               task.EventProgress,
			TaskID:             snapshot.ID,
			Progress:           snapshot.Progress,
			CurrentStep:        snapshot.CurrentStep,
			TotalSteps:         snapshot.TotalSteps,
			Message:            snapshot.Message,
			EstimatedRemaining: snapshot.EstimatedRemaining,
			Status:             snapshot.Status,
		})
		if err != nil {
			return
		}
		select {
		case c.send <- payload:
		default:
		}
	default:
		log.Printf("Ignoring unknown control message type %q", msg.Type)
	}
}
