package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/localservices/internal/adapters/database"
	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

var userRowColumns = []string{
	"id", "role", "display_name", "phone", "service_type", "neighborhood",
	"latitude", "longitude", "availability_status", "bio", "profile_complete",
	"rating_average", "review_count", "created_at", "updated_at",
}

func newMockClient(t *testing.T) (*postgres.Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return postgres.NewClientFromDB(db), mock
}

func TestProviderAdapter_ListDiscoverable(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewProviderAdapter(client)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(userRowColumns).
		AddRow("p1", "provider", "João", "", "Encanador", "Centro", -22.9068, -43.1729, "available", "", true, 4.5, 2, created, created).
		AddRow("p2", "provider", "Maria", "", "Eletricista", "Tijuca", nil, nil, "busy", "", true, 0.0, 0, created, created)
	mock.ExpectQuery(`SELECT .* FROM "users" WHERE .* ORDER BY "created_at" ASC, "id" ASC LIMIT`).
		WillReturnRows(rows)

	providers, err := adapter.ListDiscoverable(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, providers, 2)

	assert.Equal(t, "João", providers[0].DisplayName)
	require.NotNil(t, providers[0].Coordinate)
	assert.InDelta(t, -22.9068, providers[0].Coordinate.Latitude, 1e-9)
	assert.Equal(t, 2, providers[0].ReviewCount)
	assert.Nil(t, providers[1].Coordinate)
	assert.Equal(t, entities.AvailabilityBusy, providers[1].AvailabilityStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProviderAdapter_GetByIDNotFound(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewProviderAdapter(client)

	mock.ExpectQuery(`SELECT .* FROM "users"`).WillReturnRows(sqlmock.NewRows(userRowColumns))

	_, err := adapter.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserAdapter_GetByIDClient(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewUserAdapter(client)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM "users" WHERE \("id" = \$1\)`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("c1", "client", "Ana", "", nil, nil, nil, nil, nil, "", true, 0.0, 0, created, created))

	user, err := adapter.GetByID(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, entities.RoleClient, user.Role)
	assert.Nil(t, user.Provider)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserAdapter_UpsertValidates(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewUserAdapter(client)

	err := adapter.Upsert(context.Background(), &entities.UserProfile{
		ID:          "p1",
		Role:        entities.RoleProvider,
		DisplayName: "João",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserAdapter_Upsert(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewUserAdapter(client)

	mock.ExpectExec(`INSERT INTO "users" .* ON CONFLICT \(id\) DO UPDATE SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.Upsert(context.Background(), &entities.UserProfile{
		ID:          "p1",
		Role:        entities.RoleProvider,
		DisplayName: "João",
		Provider: &entities.ProviderDetails{
			ServiceType:        "Encanador",
			Neighborhood:       "Centro",
			AvailabilityStatus: entities.AvailabilityAvailable,
			Coordinate:         &entities.Coordinate{Latitude: -22.9, Longitude: -43.17},
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConversationAdapter_CreateIfAbsent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	conv := entities.NewDirectConversation("a", "b", "Ana", "Bruno", now)

	t.Run("reports creation", func(t *testing.T) {
		client, mock := newMockClient(t)
		adapter := database.NewConversationAdapter(client)
		mock.ExpectExec(`INSERT INTO "conversations" .* ON CONFLICT DO NOTHING`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		created, err := adapter.CreateIfAbsent(context.Background(), conv)
		require.NoError(t, err)
		assert.True(t, created)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing row is left alone", func(t *testing.T) {
		client, mock := newMockClient(t)
		adapter := database.NewConversationAdapter(client)
		mock.ExpectExec(`INSERT INTO "conversations"`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		created, err := adapter.CreateIfAbsent(context.Background(), conv)
		require.NoError(t, err)
		assert.False(t, created)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestConversationAdapter_ListByParticipant(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewConversationAdapter(client)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "participant_ids", "participant_names", "last_message_text",
		"last_message_sender_id", "last_message_at", "message_count", "created_at",
	}).AddRow("conv-1", "{a,b}", []byte(`{"a":"Ana","b":"Bruno"}`), "oi", "b", now, 1, now)
	mock.ExpectQuery(`SELECT .* FROM "conversations" WHERE \(?participant_ids @> \$1\)? ORDER BY "last_message_at" DESC`).
		WillReturnRows(rows)

	conversations, err := adapter.ListByParticipant(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, []string{"a", "b"}, conversations[0].ParticipantIDs)
	assert.Equal(t, "Bruno", conversations[0].ParticipantNames["b"])
	assert.Equal(t, "b", conversations[0].OtherParticipant("a"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageAdapter_Append(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewMessageAdapter(client)
	sentAt := time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE "conversations" SET .* RETURNING "message_count", "last_message_at"`).
		WillReturnRows(sqlmock.NewRows([]string{"message_count", "last_message_at"}).AddRow(3, sentAt))
	mock.ExpectExec(`INSERT INTO "messages"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	msg := &entities.Message{ID: "m3", ConversationID: "conv-1", SenderID: "a", Text: "oi"}
	require.NoError(t, adapter.Append(context.Background(), msg))
	assert.Equal(t, int64(3), msg.Sequence)
	assert.Equal(t, sentAt, msg.SentAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageAdapter_AppendUnknownConversation(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewMessageAdapter(client)

	mock.ExpectBegin()
	mock.ExpectQuery(`UPDATE "conversations"`).
		WillReturnRows(sqlmock.NewRows([]string{"message_count", "last_message_at"}))
	mock.ExpectRollback()

	err := adapter.Append(context.Background(), &entities.Message{ID: "m1", ConversationID: "nope", SenderID: "a", Text: "oi"})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMessageAdapter_ListByConversation(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := database.NewMessageAdapter(client)
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "conversation_id", "sender_id", "sender_name", "text", "sent_at", "sequence"}).
		AddRow("m1", "conv-1", "a", "Ana", "a", t0, 1).
		AddRow("m2", "conv-1", "a", "Ana", "b", t0.Add(time.Second), 2)
	mock.ExpectQuery(`SELECT .* FROM "messages" WHERE .* ORDER BY "sent_at" ASC, "sequence" ASC`).
		WithArgs("conv-1", int64(0)).
		WillReturnRows(rows)

	messages, err := adapter.ListByConversation(context.Background(), "conv-1", 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "a", messages[0].Text)
	assert.Equal(t, "b", messages[1].Text)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewAdapter_Upsert(t *testing.T) {
	review := &entities.Review{
		ID:         entities.ReviewID("p1", "c1"),
		ProviderID: "p1",
		ReviewerID: "c1",
		Rating:     5,
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	t.Run("stores and refreshes rating", func(t *testing.T) {
		client, mock := newMockClient(t)
		adapter := database.NewReviewAdapter(client)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "reviews" .* ON CONFLICT \(provider_id, reviewer_id\) DO UPDATE`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE users SET`).WithArgs("p1").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, adapter.Upsert(context.Background(), review))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown provider", func(t *testing.T) {
		client, mock := newMockClient(t)
		adapter := database.NewReviewAdapter(client)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "reviews"`).WillReturnError(&pq.Error{Code: "23503"})
		mock.ExpectRollback()

		err := adapter.Upsert(context.Background(), review)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database failure", func(t *testing.T) {
		client, mock := newMockClient(t)
		adapter := database.NewReviewAdapter(client)
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "reviews"`).WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		err := adapter.Upsert(context.Background(), review)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
