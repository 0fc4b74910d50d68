package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	"github.com/zatekoja/localservices/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

const (
	conversationsTable = "conversations"
	messagesTable      = "messages"
)

var conversationColumns = []interface{}{
	"id", "participant_ids", "participant_names", "last_message_text",
	"last_message_sender_id", "last_message_at", "message_count", "created_at",
}

type conversationRow struct {
	ID                  string         `db:"id"`
	ParticipantIDs      pq.StringArray `db:"participant_ids"`
	ParticipantNames    []byte         `db:"participant_names"`
	LastMessageText     string         `db:"last_message_text"`
	LastMessageSenderID string         `db:"last_message_sender_id"`
	LastMessageAt       time.Time      `db:"last_message_at"`
	MessageCount        int64          `db:"message_count"`
	CreatedAt           time.Time      `db:"created_at"`
}

func (r *conversationRow) toEntity() (*entities.Conversation, error) {
	names := map[string]string{}
	if len(r.ParticipantNames) > 0 {
		if err := json.Unmarshal(r.ParticipantNames, &names); err != nil {
			return nil, fmt.Errorf("invalid participant_names for conversation %s: %w", r.ID, err)
		}
	}
	return &entities.Conversation{
		ID:                  r.ID,
		ParticipantIDs:      []string(r.ParticipantIDs),
		ParticipantNames:    names,
		LastMessageText:     r.LastMessageText,
		LastMessageSenderID: r.LastMessageSenderID,
		LastMessageAt:       r.LastMessageAt,
		MessageCount:        r.MessageCount,
		CreatedAt:           r.CreatedAt,
	}, nil
}

// ConversationAdapter implements the ConversationRepository interface
type ConversationAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewConversationAdapter creates a new conversation adapter
func NewConversationAdapter(client *postgres.Client) repositories.ConversationRepository {
	return &ConversationAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a conversation by ID
func (a *ConversationAdapter) GetByID(ctx context.Context, id string) (*entities.Conversation, error) {
	query, args, err := a.db.From(conversationsTable).Prepared(true).
		Select(conversationColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var row conversationRow
	if err := a.client.DBX().GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("conversation with id %s not found", id))
		}
		return nil, apperrors.NewInternalError("failed to get conversation", err)
	}

	conv, err := row.toEntity()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to decode conversation", err)
	}
	return conv, nil
}

// ListByParticipant returns the user's conversations, most recently updated first
func (a *ConversationAdapter) ListByParticipant(ctx context.Context, userID string) ([]*entities.Conversation, error) {
	query, args, err := a.db.From(conversationsTable).Prepared(true).
		Select(conversationColumns...).
		Where(goqu.L("participant_ids @> ?", pq.Array([]string{userID}))).
		Order(goqu.C("last_message_at").Desc(), goqu.C("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var rows []conversationRow
	if err := a.client.DBX().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list conversations", err)
	}

	conversations := make([]*entities.Conversation, 0, len(rows))
	for i := range rows {
		conv, err := rows[i].toEntity()
		if err != nil {
			return nil, apperrors.NewInternalError("failed to decode conversation", err)
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

// CreateIfAbsent inserts the conversation, leaving an existing row with the same id untouched
func (a *ConversationAdapter) CreateIfAbsent(ctx context.Context, conversation *entities.Conversation) (bool, error) {
	names, err := json.Marshal(conversation.ParticipantNames)
	if err != nil {
		return false, apperrors.NewInternalError("failed to encode participant names", err)
	}

	record := goqu.Record{
		"id":                     conversation.ID,
		"participant_ids":        pq.Array(conversation.ParticipantIDs),
		"participant_names":      string(names),
		"last_message_text":      conversation.LastMessageText,
		"last_message_sender_id": conversation.LastMessageSenderID,
		"last_message_at":        conversation.LastMessageAt,
		"message_count":          0,
		"created_at":             conversation.CreatedAt,
	}

	query, args, err := a.db.Insert(conversationsTable).Prepared(true).
		Rows(record).
		OnConflict(goqu.DoNothing()).
		ToSQL()
	if err != nil {
		return false, apperrors.NewInternalError("failed to build insert query", err)
	}

	result, err := a.client.DBX().ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.NewInternalError("failed to create conversation", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.NewInternalError("failed to read insert result", err)
	}
	return affected == 1, nil
}
