package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/mmeshcher/pettag/internal/model"
	"github.com/mmeshcher/pettag/internal/reminder"
)

// WebhookSender публикует напоминания во внешнюю систему рассылки по HTTP.
type WebhookSender struct {
	url        string
	httpClient *retryablehttp.Client
}

// WebhookPayload - тело запроса к вебхуку.
type WebhookPayload struct {
	ID        string `json:"id"`
	PetID     string `json:"petId"`
	To        string `json:"to"`
	Subject   string `json:"subject"`
	OwnerName string `json:"ownerName"`
	PetName   string `json:"petName"`
	Species   string `json:"species"`
	Date      string `json:"date"`
	Note      string `json:"note,omitempty"`
	HTML      string `json:"html"`
}

type webhookResponse struct {
	MessageID string `json:"messageId"`
}

// NewWebhookSender создаёт отправителя с повторами на 5xx и 429.
func NewWebhookSender(url string, retryMax int, retryWaitMin time.Duration) *WebhookSender {
	c := retryablehttp.NewClient()
	c.Logger = nil
	c.RetryMax = retryMax
	if retryWaitMin > 0 {
		c.RetryWaitMin = retryWaitMin
		c.RetryWaitMax = 10 * retryWaitMin
	}
	c.HTTPClient.Timeout = 5 * time.Second

	base := strings.TrimRight(url, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	return &WebhookSender{url: base, httpClient: c}
}

// IdempotencyKey возвращает ключ, одинаковый для всех отправок одного напоминания.
// Повтор после сбоя отметки не создаёт у получателя второе письмо.
func IdempotencyKey(r reminder.Reminder) string {
	name := fmt.Sprintf("pettag:reminder:%s:%s:%d", r.PetID, r.ExamDate.UTC().Format(time.RFC3339Nano), r.Occurrence)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// Send отправляет напоминание. Идентификатор сообщения берётся из ответа
// или совпадает с ключом идемпотентности.
func (w *WebhookSender) Send(ctx context.Context, r reminder.Reminder) (string, error) {
	html, _, err := Render(r)
	if err != nil {
		return "", err
	}

	payload := WebhookPayload{
		ID:        IdempotencyKey(r),
		PetID:     r.PetID,
		To:        r.To,
		Subject:   Subject(r),
		OwnerName: r.OwnerName,
		PetName:   r.PetName,
		Species:   r.Species,
		Date:      r.Date,
		Note:      r.Note,
		HTML:      html,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", payload.ID)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrTransientSend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: unexpected status %d", model.ErrTransientSend, resp.StatusCode)
	}

	var res webhookResponse
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil && len(data) > 0 && json.Unmarshal(data, &res) == nil && res.MessageID != "" {
		return res.MessageID, nil
	}
	return payload.ID, nil
}
