package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zatekoja/localservices/pkg/config"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

// WhatsAppCloudSender sends messages via WhatsApp Cloud API
type WhatsAppCloudSender struct {
	accessToken   string
	phoneNumberID string
	baseURL       string
	httpClient    *http.Client
}

// NewWhatsAppCloudSender creates a new WhatsApp sender
func NewWhatsAppCloudSender(cfg config.AlertsConfig) (*WhatsAppCloudSender, error) {
	if !cfg.Enabled() {
		return nil, errors.New("WHATSAPP_ACCESS_TOKEN and WHATSAPP_PHONE_NUMBER_ID must be set")
	}
	baseURL := strings.TrimRight(cfg.WhatsAppBaseURL, "/")
	if baseURL == "" {
		baseURL = "https://graph.facebook.com/v18.0"
	}

	return &WhatsAppCloudSender{
		accessToken:   cfg.WhatsAppAccessToken,
		phoneNumberID: cfg.WhatsAppPhoneNumberID,
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type templateMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	RecipientType    string       `json:"recipient_type"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Template         templateBody `json:"template"`
}

type templateBody struct {
	Name     string `json:"name"`
	Language struct {
		Code string `json:"code"`
	} `json:"language"`
	Components []templateComponent `json:"components,omitempty"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters"`
}

type templateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type textMessage struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

// sendResponse is the part of the API response we read
type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// SendTemplate sends an approved template with body parameters. Templates are
// the only way to reach a user who has not written to the business in 24h.
func (w *WhatsAppCloudSender) SendTemplate(ctx context.Context, to, templateName, languageCode string, parameters []string) (string, error) {
	message := templateMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "template",
	}
	message.Template.Name = templateName
	message.Template.Language.Code = languageCode
	if len(parameters) > 0 {
		params := make([]templateParameter, len(parameters))
		for i, p := range parameters {
			params[i] = templateParameter{Type: "text", Text: p}
		}
		message.Template.Components = []templateComponent{{Type: "body", Parameters: params}}
	}
	return w.send(ctx, message)
}

// SendText sends a plain text message
func (w *WhatsAppCloudSender) SendText(ctx context.Context, to, body string) (string, error) {
	message := textMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
	}
	message.Text.Body = body
	return w.send(ctx, message)
}

func (w *WhatsAppCloudSender) send(ctx context.Context, message interface{}) (string, error) {
	payload, err := json.Marshal(message)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", w.baseURL, w.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewExternalError("WhatsApp request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.NewExternalError("failed to read WhatsApp response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewExternalError(fmt.Sprintf("WhatsApp API error (status %d)", resp.StatusCode),
			errors.New(strings.TrimSpace(string(body))))
	}

	var parsed sendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(parsed.Messages) == 0 {
		return "", errors.New("no message ID in response")
	}
	return parsed.Messages[0].ID, nil
}
