package services_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/localservices/internal/adapters/memory"
	"github.com/zatekoja/localservices/internal/application/services"
	"github.com/zatekoja/localservices/internal/domain/entities"
)

type sentAlert struct {
	to       string
	body     string
	template string
	params   []string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentAlert
	err  error
}

func (r *recordingSender) SendText(_ context.Context, to, body string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentAlert{to: to, body: body})
	return "wamid.1", r.err
}

func (r *recordingSender) SendTemplate(_ context.Context, to, name, _ string, params []string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentAlert{to: to, template: name, params: params})
	return "wamid.1", r.err
}

func (r *recordingSender) alerts() []sentAlert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentAlert(nil), r.sent...)
}

type presenceSet map[string]bool

func (p presenceSet) IsOnline(userID string) bool { return p[userID] }

type alertFixture struct {
	store    *memory.Store
	sender   *recordingSender
	alerts   *services.OfflineAlertService
	messages *services.MessageService
	convID   string
}

func newAlertFixture(t *testing.T, online presenceSet, opts services.OfflineAlertOptions) *alertFixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Users().Upsert(ctx, &entities.UserProfile{
		ID: "bruno", Role: entities.RoleClient, DisplayName: "Bruno", Phone: "+5521999990000",
	}))
	require.NoError(t, store.Users().Upsert(ctx, &entities.UserProfile{
		ID: "dani", Role: entities.RoleClient, DisplayName: "Dani",
	}))

	chat := services.NewChatSessionService(store.Conversations(), store.Users(), nil)
	convID, err := chat.CreateOrGetConversation(ctx, "ana", "bruno", "Ana", "Bruno")
	require.NoError(t, err)

	sender := &recordingSender{}
	alerts := services.NewOfflineAlertService(store.Users(), sender, online, opts)
	messages := services.NewMessageService(store.Conversations(), store.Messages(), store.Users(), nil, nil)
	messages.AddObserver(alerts)

	return &alertFixture{store: store, sender: sender, alerts: alerts, messages: messages, convID: convID}
}

func TestOfflineAlertService_AlertsOfflineRecipient(t *testing.T) {
	f := newAlertFixture(t, presenceSet{}, services.OfflineAlertOptions{Cooldown: time.Minute})

	_, err := f.messages.Send(context.Background(), f.convID, "ana", "", "Posso passar às 14h?")
	require.NoError(t, err)
	f.alerts.Wait()

	sent := f.sender.alerts()
	require.Len(t, sent, 1)
	assert.Equal(t, "+5521999990000", sent[0].to)
	assert.Equal(t, "Ana: Posso passar às 14h?", sent[0].body)
}

func TestOfflineAlertService_SkipsOnlineRecipient(t *testing.T) {
	f := newAlertFixture(t, presenceSet{"bruno": true}, services.OfflineAlertOptions{})

	_, err := f.messages.Send(context.Background(), f.convID, "ana", "", "Oi")
	require.NoError(t, err)
	f.alerts.Wait()

	assert.Empty(t, f.sender.alerts())
}

func TestOfflineAlertService_Cooldown(t *testing.T) {
	f := newAlertFixture(t, presenceSet{}, services.OfflineAlertOptions{Cooldown: time.Hour})

	for _, text := range []string{"um", "dois", "três"} {
		_, err := f.messages.Send(context.Background(), f.convID, "ana", "", text)
		require.NoError(t, err)
	}
	f.alerts.Wait()

	assert.Len(t, f.sender.alerts(), 1)
}

func TestOfflineAlertService_TemplateAndPreview(t *testing.T) {
	f := newAlertFixture(t, presenceSet{}, services.OfflineAlertOptions{TemplateName: "nova_mensagem"})

	long := strings.Repeat("á", 120)
	_, err := f.messages.Send(context.Background(), f.convID, "ana", "", long)
	require.NoError(t, err)
	f.alerts.Wait()

	sent := f.sender.alerts()
	require.Len(t, sent, 1)
	assert.Equal(t, "nova_mensagem", sent[0].template)
	require.Len(t, sent[0].params, 2)
	assert.Equal(t, "Ana", sent[0].params[0])
	assert.Equal(t, 80, len([]rune(sent[0].params[1])))
}

func TestOfflineAlertService_NoPhoneOrSendFailure(t *testing.T) {
	f := newAlertFixture(t, presenceSet{}, services.OfflineAlertOptions{})
	f.sender.err = errors.New("whatsapp down")

	// Bruno's reply targets Ana, who has no profile.
	_, err := f.messages.Send(context.Background(), f.convID, "bruno", "", "Pode sim")
	require.NoError(t, err)
	// A failing sender never fails the send itself.
	_, err = f.messages.Send(context.Background(), f.convID, "ana", "", "Combinado")
	require.NoError(t, err)
	f.alerts.Wait()

	sent := f.sender.alerts()
	require.Len(t, sent, 1)
	assert.Equal(t, "+5521999990000", sent[0].to)
}
