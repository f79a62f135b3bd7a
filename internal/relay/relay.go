// internal/relay/relay.go
package relay

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chimeradev/chimera-navigator/internal/ai"
	"github.com/chimeradev/chimera-navigator/internal/domain"
	"github.com/chimeradev/chimera-navigator/internal/logger"
	"github.com/chimeradev/chimera-navigator/internal/storage"
)

var (
	customLog = logger.NewLogger()
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

// Message types on the wire.
const (
	MessageTypeAIChat     = "ai_chat"
	MessageTypeAIResponse = "ai_response"
	MessageTypeError      = "error"
)

// InboundMessage is one tagged frame received from a client.
type InboundMessage struct {
	Type      string `json:"type"`
	UserID    int64  `json:"userId"`
	ProjectID *int64 `json:"projectId"`
	Content   string `json:"content"`
}

// OutboundMessage is one tagged frame pushed back to a client.
type OutboundMessage struct {
	Type      string    `json:"type"`
	Content   string    `json:"content,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Relay brokers user-to-AI conversational turns over persistent socket
// connections. It holds no cross-connection state beyond the database.
type Relay struct {
	db       *sql.DB
	aiClient *ai.Client
	upgrader websocket.Upgrader
}

func NewRelay(db *sql.DB, aiClient *ai.Client, allowedOrigins []string) *Relay {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return &Relay{
		db:       db,
		aiClient: aiClient,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
	}
}

// conn wraps one socket connection with a write lock so the reply path and
// the keepalive ticker never interleave frames.
type conn struct {
	id      string
	ws      *websocket.Conn
	writeMu sync.Mutex
	userID  int64
}

func (c *conn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

func (c *conn) writeControl(messageType int) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteControl(messageType, nil, time.Now().Add(writeWait))
}

// Serve upgrades the request and runs the connection's read loop until the
// peer goes away. boundUserID is the authenticated user from the handshake
// ticket; frames claiming another user are rejected.
func (r *Relay) Serve(w http.ResponseWriter, req *http.Request, boundUserID int64) error {
	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return err
	}

	c := &conn{id: uuid.NewString(), ws: ws, userID: boundUserID}
	customLog.Printf("Relay: connection %s opened for user %d", c.id, boundUserID)

	done := make(chan struct{})
	go r.keepalive(c, done)
	r.readLoop(req.Context(), c)
	close(done)

	ws.Close()
	customLog.Printf("Relay: connection %s closed", c.id)
	return nil
}

func (r *Relay) keepalive(c *conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.writeControl(websocket.PingMessage); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (r *Relay) readLoop(ctx context.Context, c *conn) {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				customLog.Warnf("Relay: connection %s read error: %v", c.id, err)
			}
			return
		}

		var msg InboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			customLog.Warnf("Relay: connection %s sent an unparseable frame: %v", c.id, err)
			r.sendError(c, "Invalid message format")
			continue
		}

		switch msg.Type {
		case MessageTypeAIChat:
			r.handleChat(ctx, c, msg)
		default:
			// Unrecognized frame types are ignored.
		}
	}
}

// handleChat runs one conversational turn: fetch-or-create the transcript,
// append the user entry, ask the AI delegate, append the assistant entry,
// persist both in one update, and push the reply back on the same
// connection. Failures become error frames; the connection stays open.
func (r *Relay) handleChat(ctx context.Context, c *conn, msg InboundMessage) {
	if msg.UserID != c.userID {
		r.sendError(c, "Message user does not match this connection")
		return
	}
	if msg.Content == "" {
		r.sendError(c, "Message content is required")
		return
	}

	chat, err := storage.GetOrCreateChat(ctx, r.db, msg.UserID, msg.ProjectID)
	if err != nil {
		customLog.Warnf("Relay: connection %s failed to load chat: %v", c.id, err)
		r.sendError(c, "Failed to load chat history")
		return
	}

	userEntry := domain.ChatMessage{
		Role:      "user",
		Content:   msg.Content,
		Timestamp: time.Now().UTC(),
	}

	reply, err := r.aiClient.Chat(ctx, r.db, msg.Content, ai.ChatContext{
		UserID:    msg.UserID,
		ProjectID: msg.ProjectID,
	})
	if err != nil {
		customLog.Warnf("Relay: connection %s AI completion failed: %v", c.id, err)
		r.sendError(c, "AI assistant is unavailable: "+err.Error())
		return
	}

	assistantEntry := domain.ChatMessage{
		Role:      "assistant",
		Content:   reply,
		Timestamp: time.Now().UTC(),
	}

	if _, err := storage.AppendChatMessages(ctx, r.db, chat.ID, userEntry, assistantEntry); err != nil {
		customLog.Warnf("Relay: connection %s failed to persist chat turn: %v", c.id, err)
		r.sendError(c, "Failed to save chat history")
		return
	}

	if err := c.writeJSON(OutboundMessage{
		Type:      MessageTypeAIResponse,
		Content:   reply,
		Timestamp: assistantEntry.Timestamp,
	}); err != nil {
		customLog.Warnf("Relay: connection %s reply write failed: %v", c.id, err)
	}
}

func (r *Relay) sendError(c *conn, message string) {
	err := c.writeJSON(OutboundMessage{
		Type:      MessageTypeError,
		Error:     message,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		customLog.Warnf("Relay: connection %s error write failed: %v", c.id, err)
	}
}
