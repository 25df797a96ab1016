package notification

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type recordingSender struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recordingSender) SendEmail(_ context.Context, to, subject, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, to+"|"+subject+"|"+body)
	return r.err
}

func TestTemplateEngine_Render(t *testing.T) {
	e := NewTemplateEngine()
	subject, body, err := e.Render(TemplateAppointmentConfirmed, map[string]string{
		"name":   "Ana",
		"doctor": "Dr. Kim",
		"type":   "consultation",
		"when":   "Sun, 01 Mar 2026 14:30 UTC",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if subject != "Your appointment is confirmed" {
		t.Errorf("unexpected subject %q", subject)
	}
	if body != "Hi Ana, Dr. Kim confirmed your consultation appointment for Sun, 01 Mar 2026 14:30 UTC." {
		t.Errorf("unexpected body %q", body)
	}
}

func TestTemplateEngine_MissingKeyLeftInPlace(t *testing.T) {
	_, body, _ := NewTemplateEngine().Render(TemplateWelcome, map[string]string{"name": "Ana"})
	if !strings.Contains(body, "{{role}}") {
		t.Errorf("expected placeholder kept, got %q", body)
	}
}

func TestTemplateEngine_Unknown(t *testing.T) {
	if _, _, err := NewTemplateEngine().Render("nope", nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestTemplateEngine_Register(t *testing.T) {
	e := NewTemplateEngine()
	e.Register(Template{ID: "custom", Subject: "S {{x}}", Body: "B {{x}}"})
	subject, body, err := e.Render("custom", map[string]string{"x": "1"})
	if err != nil || subject != "S 1" || body != "B 1" {
		t.Errorf("got %q %q %v", subject, body, err)
	}
}

func TestDispatcher_Notify(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, NewTemplateEngine())

	err := d.Notify(context.Background(), "ana@example.com", TemplateAppointmentReminder, map[string]string{
		"name": "Ana", "doctor": "Dr. Kim", "type": "screening", "when": "tomorrow 09:00",
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(sender.calls) != 1 || !strings.HasPrefix(sender.calls[0], "ana@example.com|Reminder") {
		t.Errorf("unexpected calls %v", sender.calls)
	}
}

func TestDispatcher_Errors(t *testing.T) {
	sender := &recordingSender{err: errors.New("quota exceeded")}
	d := NewDispatcher(sender, NewTemplateEngine())

	if err := d.Notify(context.Background(), "", TemplateWelcome, nil); err == nil {
		t.Error("expected error for empty recipient")
	}
	if err := d.Notify(context.Background(), "a@b.c", TemplateWelcome, nil); err == nil {
		t.Error("expected sender error to propagate")
	}
	if len(sender.calls) != 1 {
		t.Errorf("expected exactly one attempt, got %d", len(sender.calls))
	}
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(zerolog.New(&buf))
	if err := s.SendEmail(context.Background(), "a@b.c", "Hello", "body"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"to":"a@b.c"`) {
		t.Errorf("expected recipient logged, got %s", buf.String())
	}
}
