// Package notification renders and sends transactional email about
// appointments and accounts.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// EmailSender delivers one message. Implementations must not retry.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

const (
	TemplateWelcome              = "welcome"
	TemplateAppointmentConfirmed = "appointment-confirmed"
	TemplateAppointmentDeclined  = "appointment-declined"
	TemplateAppointmentMoved     = "appointment-rescheduled"
	TemplateAppointmentReminder  = "appointment-reminder"
)

// Template is a subject/body pair with {{key}} placeholders.
type Template struct {
	ID      string
	Subject string
	Body    string
}

// TemplateEngine holds the message templates.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	for _, t := range []Template{
		{
			ID:      TemplateWelcome,
			Subject: "Welcome to MedConnect, {{name}}",
			Body:    "Hi {{name}}, your {{role}} account is ready. Sign in at {{app_url}}.",
		},
		{
			ID:      TemplateAppointmentConfirmed,
			Subject: "Your appointment is confirmed",
			Body:    "Hi {{name}}, {{doctor}} confirmed your {{type}} appointment for {{when}}.",
		},
		{
			ID:      TemplateAppointmentDeclined,
			Subject: "Your appointment request was declined",
			Body:    "Hi {{name}}, {{doctor}} could not accept your {{type}} request for {{when}}. Please book another date.",
		},
		{
			ID:      TemplateAppointmentMoved,
			Subject: "Your appointment was rescheduled",
			Body:    "Hi {{name}}, {{doctor}} moved your {{type}} appointment to {{when}}.",
		},
		{
			ID:      TemplateAppointmentReminder,
			Subject: "Reminder: appointment tomorrow",
			Body:    "Hi {{name}}, this is a reminder of your {{type}} appointment with {{doctor}} on {{when}}.",
		},
	} {
		e.templates[t.ID] = t
	}
	return e
}

func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// Render substitutes {{key}} placeholders. Unknown keys are left as-is.
func (e *TemplateEngine) Render(id string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[id]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", id)
	}

	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// Dispatcher renders a template and hands it to the sender.
type Dispatcher struct {
	sender    EmailSender
	templates *TemplateEngine
}

func NewDispatcher(sender EmailSender, templates *TemplateEngine) *Dispatcher {
	return &Dispatcher{sender: sender, templates: templates}
}

func (d *Dispatcher) Notify(ctx context.Context, to, templateID string, data map[string]string) error {
	if to == "" {
		return fmt.Errorf("notification recipient is required")
	}
	subject, body, err := d.templates.Render(templateID, data)
	if err != nil {
		return err
	}
	if err := d.sender.SendEmail(ctx, to, subject, body); err != nil {
		return fmt.Errorf("send %s to %s: %w", templateID, to, err)
	}
	return nil
}
