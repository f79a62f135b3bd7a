// internal/storage/chat_repo.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/chimeradev/chimera-navigator/internal/domain"
)

// chatLocks serializes the read-modify-write message-list update per chat id.
// The messages column is replaced wholesale on every append, so without this
// two concurrent relay connections on the same chat could drop an append.
var chatLocks = struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}{locks: make(map[int64]*sync.Mutex)}

func chatLock(chatID int64) *sync.Mutex {
	chatLocks.mu.Lock()
	defer chatLocks.mu.Unlock()
	l, ok := chatLocks.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		chatLocks.locks[chatID] = l
	}
	return l
}

func scanChat(scanner interface{ Scan(...any) error }) (*domain.AiChat, error) {
	var chat domain.AiChat
	var messages string
	err := scanner.Scan(&chat.ID, &chat.UserID, &chat.ProjectID, &messages, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("database error finding chat: %w", err)
	}
	chat.Messages = []domain.ChatMessage{}
	if messages != "" {
		if err := json.Unmarshal([]byte(messages), &chat.Messages); err != nil {
			log.Printf("Storage: ignoring malformed messages column for chat %d: %v", chat.ID, err)
			chat.Messages = []domain.ChatMessage{}
		}
	}
	return &chat, nil
}

// GetOrCreateChat fetches the chat for a (user, project) pair, lazily
// creating an empty one on first use. projectID may be nil for an
// account-level chat.
func GetOrCreateChat(ctx context.Context, db *sql.DB, userID int64, projectID *int64) (*domain.AiChat, error) {
	query := `SELECT id, user_id, project_id, messages, created_at, updated_at
		FROM ai_chats WHERE user_id = ? AND project_id IS ? ORDER BY updated_at DESC, id DESC LIMIT 1`
	chat, err := scanChat(db.QueryRowContext(ctx, query, userID, projectID))
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, ErrChatNotFound) {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO ai_chats (user_id, project_id, messages) VALUES (?, ?, '[]')`, userID, projectID)
	if err != nil {
		log.Printf("Storage: Failed to create chat for user %d: %v", userID, err)
		return nil, fmt.Errorf("database error creating chat: %w", err)
	}
	chatID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve chat ID after creation: %w", err)
	}
	return FindChatByID(ctx, db, chatID)
}

// FindChatByID retrieves a single chat transcript.
func FindChatByID(ctx context.Context, db *sql.DB, chatID int64) (*domain.AiChat, error) {
	return scanChat(db.QueryRowContext(ctx,
		`SELECT id, user_id, project_id, messages, created_at, updated_at FROM ai_chats WHERE id = ? LIMIT 1`, chatID))
}

// ListChatsByUser retrieves a user's chats, most recently updated first.
// When projectID is non-nil only chats scoped to that project are returned.
func ListChatsByUser(ctx context.Context, db *sql.DB, userID int64, projectID *int64) ([]*domain.AiChat, error) {
	query := `SELECT id, user_id, project_id, messages, created_at, updated_at
		FROM ai_chats WHERE user_id = ?`
	args := []any{userID}
	if projectID != nil {
		query += ` AND project_id = ?`
		args = append(args, *projectID)
	}
	query += ` ORDER BY updated_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error listing chats: %w", err)
	}
	defer rows.Close()

	chats := []*domain.AiChat{}
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, rows.Err()
}

// AppendChatMessages appends entries to a chat transcript. The full message
// list is re-read, extended and written back as one unit, serialized through
// a per-chat in-process lock so concurrent appends cannot lose entries.
func AppendChatMessages(ctx context.Context, db *sql.DB, chatID int64, entries ...domain.ChatMessage) (*domain.AiChat, error) {
	lock := chatLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	chat, err := FindChatByID(ctx, db, chatID)
	if err != nil {
		return nil, err
	}

	chat.Messages = append(chat.Messages, entries...)
	encoded, err := json.Marshal(chat.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat messages: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`UPDATE ai_chats SET messages = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(encoded), chatID)
	if err != nil {
		log.Printf("Storage: Failed to append messages to chat %d: %v", chatID, err)
		return nil, fmt.Errorf("database error appending chat messages: %w", err)
	}
	return FindChatByID(ctx, db, chatID)
}
