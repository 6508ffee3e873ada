package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/qieqieplus/meeting-client/pkg/config"
	"github.com/qieqieplus/meeting-client/pkg/log"
	"github.com/qieqieplus/meeting-client/pkg/metrics"
	"github.com/qieqieplus/meeting-client/pkg/screen"
)

// WebSocketServer streams view snapshots to clients and accepts commands
// back over the same socket.
type WebSocketServer struct {
	upgrader     websocket.Upgrader
	views        Views
	commands     Commander
	metrics      *metrics.Manager
	config       config.WebSocketConfig
	clients      map[string]*Client
	clientsMutex sync.RWMutex
}

// NewWebSocketServer creates a new WebSocket server. m may be nil.
func NewWebSocketServer(views Views, commands Commander, m *metrics.Manager, cfg config.WebSocketConfig) *WebSocketServer {
	return &WebSocketServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		views:    views,
		commands: commands,
		metrics:  m,
		config:   cfg,
		clients:  make(map[string]*Client),
	}
}

// HandleConnection handles incoming WebSocket connections
func (s *WebSocketServer) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade WebSocket connection: %v", err)
		return
	}

	client := newClient(conn, s)
	s.addClient(client)
	log.WithFields(log.Fields{"client": client.ID, "remote": conn.RemoteAddr().String()}).Info("WebSocket client connected")

	client.process()

	s.removeClient(client.ID)
	log.WithFields(log.Fields{"client": client.ID}).Info("WebSocket client disconnected")
}

// ClientCount returns the number of connected clients.
func (s *WebSocketServer) ClientCount() int {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	return len(s.clients)
}

// CloseAll disconnects every client.
func (s *WebSocketServer) CloseAll() {
	s.clientsMutex.RLock()
	defer s.clientsMutex.RUnlock()
	for _, c := range s.clients {
		c.conn.Close()
	}
}

func (s *WebSocketServer) addClient(client *Client) {
	s.clientsMutex.Lock()
	s.clients[client.ID] = client
	s.clientsMutex.Unlock()
	if s.metrics != nil {
		s.metrics.WSClientConnected()
	}
}

func (s *WebSocketServer) removeClient(clientID string) {
	s.clientsMutex.Lock()
	delete(s.clients, clientID)
	s.clientsMutex.Unlock()
	if s.metrics != nil {
		s.metrics.WSClientDisconnected()
	}
}

// Client represents a single WebSocket client
type Client struct {
	ID       string
	conn     *websocket.Conn
	server   *WebSocketServer
	replies  chan []byte
	stopChan chan struct{}
}

func newClient(conn *websocket.Conn, s *WebSocketServer) *Client {
	return &Client{
		ID:       uuid.NewString(),
		conn:     conn,
		server:   s,
		replies:  make(chan []byte, 16),
		stopChan: make(chan struct{}),
	}
}

// process runs until the read side fails or the connection is closed.
func (c *Client) process() {
	views, stop := c.server.views.Watch()
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump(views)
	}()
	c.readPump()
	close(c.stopChan)
	<-done
}

// writePump sends view snapshots and command results to the connection.
// Only the latest view is kept; stale snapshots are never queued.
func (c *Client) writePump(views <-chan screen.View) {
	cfg := c.server.config
	defer c.conn.Close()

	pingTicker := time.NewTicker(cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case v, ok := <-views:
			if !ok {
				c.write(websocket.CloseMessage, []byte{})
				return
			}
			msg, err := CreateViewMessage(v)
			if err != nil {
				log.Errorf("Failed to encode view: %v", err)
				continue
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				log.Errorf("Error writing view to WebSocket: %v", err)
				return
			}

		case msg := <-c.replies:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				log.Errorf("Error writing reply to WebSocket: %v", err)
				return
			}

		case <-pingTicker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				log.Errorf("Error sending ping to WebSocket: %v", err)
				return
			}
			log.Debugf("Sent ping to client %s", c.ID)

		case <-c.stopChan:
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout))
	return c.conn.WriteMessage(messageType, data)
}

// readPump reads command frames until the connection fails.
func (c *Client) readPump() {
	defer c.conn.Close()

	readTimeout := c.server.config.ReadTimeout
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		log.Debugf("Received pong from client %s", c.ID)
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Errorf("WebSocket read error: %v", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	msg, cmd, err := ParseCommandMessage(data)
	var reply []byte
	if err != nil && msg.Action == "" {
		reply, err = CreateErrorMessage(err.Error(), http.StatusBadRequest)
	} else {
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), c.server.config.WriteTimeout)
			err = c.server.commands.Submit(ctx, cmd)
			cancel()
			if c.server.metrics != nil {
				c.server.metrics.RecordCommand(msg.Action, err)
			}
		}
		if err != nil {
			log.WithFields(log.Fields{"client": c.ID, "action": msg.Action}).Warnf("Command rejected: %v", err)
		}
		reply, err = CreateResultMessage(msg.ID, msg.Action, err)
	}
	if err != nil {
		return
	}
	select {
	case c.replies <- reply:
	default:
		log.Warnf("Dropping reply for client %s (reply queue full)", c.ID)
	}
}
