// api/handlers/ws_relay_test.go
package handlers_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chimeradev/chimera-navigator/config"
	"github.com/chimeradev/chimera-navigator/internal/domain"
)

// mintTicket obtains a websocket handshake ticket through the authenticated
// endpoint.
func (e *testEnv) mintTicket(t *testing.T, firebaseUID string) string {
	t.Helper()

	var body struct {
		Ticket           string `json:"ticket"`
		ExpiresInSeconds int    `json:"expiresInSeconds"`
	}
	res := e.doJSON(t, http.MethodPost, "/api/ws/ticket", firebaseUID, nil, &body)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NotEmpty(t, body.Ticket)
	return body.Ticket
}

// dialWS opens a websocket connection against the test server.
func (e *testEnv) dialWS(t *testing.T, ticket string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(e.Server.URL, "http") + "/ws?ticket=" + ticket
	ws, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if res != nil {
		res.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	return ws
}

func TestWebsocketChatRoundTrip(t *testing.T) {
	upstream := fakeAIServer(t, http.StatusOK, "Your project looks healthy.")
	defer upstream.Close()

	env := setupTestServer(t, func(cfg *config.Config) {
		cfg.OpenAIAPIKey = "test-key"
		cfg.OpenAIBaseURL = upstream.URL
	})
	assert := assert.New(t)

	user := env.createTestUser(t, "uid-ws")
	ticket := env.mintTicket(t, "uid-ws")
	ws := env.dialWS(t, ticket)

	require.NoError(t, ws.WriteJSON(map[string]any{
		"type":    "ai_chat",
		"userId":  user.ID,
		"content": "how does my project look?",
	}))

	var frame struct {
		Type      string `json:"type"`
		Content   string `json:"content"`
		Error     string `json:"error"`
		Timestamp string `json:"timestamp"`
	}
	require.NoError(t, ws.ReadJSON(&frame))
	assert.Equal("ai_response", frame.Type)
	assert.Equal("Your project looks healthy.", frame.Content)
	assert.Empty(frame.Error)

	// Both turns of the conversation were persisted in order.
	var chats []domain.AiChat
	res := env.doJSON(t, http.MethodGet, fmt.Sprintf("/api/ai/chat/%d", user.ID), "uid-ws", nil, &chats)
	assert.Equal(http.StatusOK, res.StatusCode)
	if assert.Len(chats, 1) && assert.Len(chats[0].Messages, 2) {
		assert.Equal("user", chats[0].Messages[0].Role)
		assert.Equal("how does my project look?", chats[0].Messages[0].Content)
		assert.Equal("assistant", chats[0].Messages[1].Role)
		assert.Equal("Your project looks healthy.", chats[0].Messages[1].Content)
	}
}

func TestWebsocketRejectsMismatchedUser(t *testing.T) {
	upstream := fakeAIServer(t, http.StatusOK, "irrelevant")
	defer upstream.Close()

	env := setupTestServer(t, func(cfg *config.Config) {
		cfg.OpenAIAPIKey = "test-key"
		cfg.OpenAIBaseURL = upstream.URL
	})
	assert := assert.New(t)

	user := env.createTestUser(t, "uid-ws-a")
	env.createTestUser(t, "uid-ws-b")

	ticket := env.mintTicket(t, "uid-ws-a")
	ws := env.dialWS(t, ticket)

	// Claiming another user's id on a frame yields an error frame; the
	// connection stays usable.
	require.NoError(t, ws.WriteJSON(map[string]any{
		"type":    "ai_chat",
		"userId":  user.ID + 1,
		"content": "impersonation attempt",
	}))

	var frame struct {
		Type  string `json:"type"`
		Error string `json:"error"`
	}
	require.NoError(t, ws.ReadJSON(&frame))
	assert.Equal("error", frame.Type)
	assert.NotEmpty(frame.Error)

	require.NoError(t, ws.WriteJSON(map[string]any{
		"type":    "ai_chat",
		"userId":  user.ID,
		"content": "legitimate message",
	}))
	require.NoError(t, ws.ReadJSON(&frame))
	assert.Equal("ai_response", frame.Type)
}

func TestWebsocketHandshakeRequiresValidTicket(t *testing.T) {
	env := setupTestServer(t, nil)

	for name, ticket := range map[string]string{
		"MissingTicket": "",
		"GarbageTicket": "not-a-ticket",
	} {
		t.Run(name, func(t *testing.T) {
			wsURL := "ws" + strings.TrimPrefix(env.Server.URL, "http") + "/ws"
			if ticket != "" {
				wsURL += "?ticket=" + ticket
			}
			ws, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
			assert.ErrorIs(t, err, websocket.ErrBadHandshake)
			assert.Nil(t, ws)
			if res != nil {
				assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
				res.Body.Close()
			}
		})
	}
}
