package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	"github.com/zatekoja/localservices/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

var messageColumns = []interface{}{
	"id", "conversation_id", "sender_id", "sender_name", "text", "sent_at", "sequence",
}

// MessageAdapter implements the MessageRepository interface
type MessageAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewMessageAdapter creates a new message adapter
func NewMessageAdapter(client *postgres.Client) repositories.MessageRepository {
	return &MessageAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Append bumps the conversation's counter and last-message fields, then inserts
// the message with the returned sequence and timestamp. The conversation row
// lock serializes concurrent appends, and GREATEST keeps sent_at monotonic.
func (a *MessageAdapter) Append(ctx context.Context, msg *entities.Message) error {
	updateSQL, updateArgs, err := a.db.Update(conversationsTable).Prepared(true).
		Set(goqu.Record{
			"message_count":          goqu.L("message_count + 1"),
			"last_message_text":      msg.Text,
			"last_message_sender_id": msg.SenderID,
			"last_message_at":        goqu.L("GREATEST(clock_timestamp(), last_message_at)"),
		}).
		Where(goqu.Ex{"id": msg.ConversationID}).
		Returning("message_count", "last_message_at").
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		sequence int64
		sentAt   time.Time
	)
	if err := tx.QueryRowxContext(ctx, updateSQL, updateArgs...).Scan(&sequence, &sentAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFoundError(fmt.Sprintf("conversation with id %s not found", msg.ConversationID))
		}
		return apperrors.NewInternalError("failed to update conversation", err)
	}

	insertSQL, insertArgs, err := a.db.Insert(messagesTable).Prepared(true).
		Rows(goqu.Record{
			"id":              msg.ID,
			"conversation_id": msg.ConversationID,
			"sender_id":       msg.SenderID,
			"sender_name":     msg.SenderName,
			"text":            msg.Text,
			"sent_at":         sentAt,
			"sequence":        sequence,
		}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := tx.ExecContext(ctx, insertSQL, insertArgs...); err != nil {
		return apperrors.NewInternalError("failed to insert message", err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit message", err)
	}

	msg.Sequence = sequence
	msg.SentAt = sentAt.UTC()
	return nil
}

// ListByConversation returns messages after afterSequence in delivery order
func (a *MessageAdapter) ListByConversation(ctx context.Context, conversationID string, afterSequence int64) ([]*entities.Message, error) {
	query, args, err := a.db.From(messagesTable).Prepared(true).
		Select(messageColumns...).
		Where(
			goqu.C("conversation_id").Eq(conversationID),
			goqu.C("sequence").Gt(afterSequence),
		).
		Order(goqu.C("sent_at").Asc(), goqu.C("sequence").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	messages := []*entities.Message{}
	if err := a.client.DBX().SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list messages", err)
	}
	return messages, nil
}
