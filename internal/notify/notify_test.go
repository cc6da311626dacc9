package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmeshcher/pettag/internal/model"
	"github.com/mmeshcher/pettag/internal/reminder"
)

var testReminder = reminder.Reminder{
	PetID:     "pet-1",
	ExamDate:  time.Date(2026, 10, 20, 2, 0, 0, 0, time.UTC),
	To:        "owner@example.com",
	OwnerName: "An",
	PetName:   "Milu <3",
	Species:   "Cat",
	Date:      "20/10/2026",
	Note:      "fasting",
}

func TestRender(t *testing.T) {
	html, text, err := Render(testReminder)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}

	if !strings.Contains(html, "Milu &lt;3") {
		t.Fatalf("html must escape pet name: %s", html)
	}
	if !strings.Contains(html, "20/10/2026 (Ghi chú: fasting)") {
		t.Fatalf("html must contain date with note: %s", html)
	}
	if !strings.Contains(text, "Kính gửi An,") {
		t.Fatalf("text must greet owner: %s", text)
	}

	r := testReminder
	r.Note = ""
	html, _, err = Render(r)
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if strings.Contains(html, "Ghi chú") {
		t.Fatalf("note block must be omitted when empty")
	}
}

func TestSubject(t *testing.T) {
	if got := Subject(testReminder); got != "Nhắc nhở: Lịch tái khám của Milu <3" {
		t.Fatalf("Subject = %q", got)
	}
}

func TestBuildMessage(t *testing.T) {
	m, err := buildMessage("clinic@example.com", testReminder)
	if err != nil {
		t.Fatalf("buildMessage error: %v", err)
	}
	if m.GetMessageID() == "" {
		t.Fatalf("message id must be set")
	}

	r := testReminder
	r.To = "not an address"
	if _, err := buildMessage("clinic@example.com", r); err == nil {
		t.Fatalf("expected error for invalid recipient")
	}
}

func TestNewMailer_RequiresHost(t *testing.T) {
	if _, err := NewMailer(SMTPConfig{}); err == nil {
		t.Fatalf("expected error for empty host")
	}
}

func TestWebhookSender_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}

		var p WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode: %v", err)
		}
		if p.To != "owner@example.com" || p.PetID != "pet-1" {
			t.Errorf("unexpected payload: %+v", p)
		}
		if r.Header.Get("Idempotency-Key") != p.ID {
			t.Errorf("idempotency key must match payload id")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messageId":"m-42"}`))
	}))
	defer ts.Close()

	sender := NewWebhookSender(ts.URL, 0, time.Millisecond)

	id, err := sender.Send(context.Background(), testReminder)
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if id != "m-42" {
		t.Fatalf("message id = %q, want m-42", id)
	}
}

func TestWebhookSender_StableIdempotencyKey(t *testing.T) {
	var (
		mu   sync.Mutex
		keys []string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	sender := NewWebhookSender(ts.URL, 0, time.Millisecond)

	first, err := sender.Send(context.Background(), testReminder)
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}

	resent := testReminder
	resent.OwnerName = "An Nguyen"
	second, err := sender.Send(context.Background(), resent)
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}

	if first != second {
		t.Fatalf("message ids differ for the same reminder: %q and %q", first, second)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(keys) != 2 || keys[0] == "" || keys[0] != keys[1] {
		t.Fatalf("idempotency keys = %q, want two equal non-empty keys", keys)
	}
	if keys[0] != IdempotencyKey(testReminder) {
		t.Fatalf("idempotency key = %q, want %q", keys[0], IdempotencyKey(testReminder))
	}
}

func TestIdempotencyKey(t *testing.T) {
	base := IdempotencyKey(testReminder)

	otherDate := testReminder
	otherDate.ExamDate = otherDate.ExamDate.AddDate(0, 0, 1)

	otherPet := testReminder
	otherPet.PetID = "pet-2"

	sameDateSecond := testReminder
	sameDateSecond.Occurrence = 1

	local := testReminder
	local.ExamDate = local.ExamDate.In(time.FixedZone("ICT", 7*60*60))

	for name, r := range map[string]reminder.Reminder{
		"other date":         otherDate,
		"other pet":          otherPet,
		"same date, 2nd row": sameDateSecond,
	} {
		if IdempotencyKey(r) == base {
			t.Errorf("%s: key must differ from %q", name, base)
		}
	}
	if IdempotencyKey(local) != base {
		t.Errorf("key must not depend on the time zone of the exam date")
	}
}

func TestWebhookSender_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	sender := NewWebhookSender(ts.URL, 3, time.Millisecond)

	id, err := sender.Send(context.Background(), testReminder)
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if id == "" {
		t.Fatalf("expected generated message id")
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestWebhookSender_ClientErrorIsTransientSend(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	sender := NewWebhookSender(ts.URL, 0, time.Millisecond)

	_, err := sender.Send(context.Background(), testReminder)
	if !errors.Is(err, model.ErrTransientSend) {
		t.Fatalf("expected ErrTransientSend, got %v", err)
	}
}
