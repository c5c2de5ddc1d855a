package reminder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/smtp"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/todoflow/todoflow/internal/profile"
	"github.com/todoflow/todoflow/store"
)

// Sender delivers one reminder over one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, reminder *store.Reminder, task *store.Task) error
}

// Notification is an in-app reminder delivery, held until the client reads it.
type Notification struct {
	ReminderUID string    `json:"reminderUid"`
	TaskID      int32     `json:"taskId"`
	TaskTitle   string    `json:"taskTitle"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"createdAt"`
}

// AppSender queues in-app notifications per user.
type AppSender struct {
	mu    sync.Mutex
	inbox map[int32][]Notification
}

func NewAppSender() *AppSender {
	return &AppSender{inbox: make(map[int32][]Notification)}
}

func (s *AppSender) Name() string { return "app" }

func (s *AppSender) Send(_ context.Context, reminder *store.Reminder, task *store.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inbox[reminder.CreatorID] = append(s.inbox[reminder.CreatorID], Notification{
		ReminderUID: reminder.UID,
		TaskID:      task.ID,
		TaskTitle:   task.Title,
		Type:        string(reminder.Type),
		CreatedAt:   time.Now(),
	})
	return nil
}

// Drain returns and clears the pending notifications for a user.
func (s *AppSender) Drain(userID int32) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	notifications := s.inbox[userID]
	delete(s.inbox, userID)
	return notifications
}

// WebhookSender posts the reminder as JSON to a configured endpoint.
type WebhookSender struct {
	url    string
	client *http.Client
}

func NewWebhookSender(url string) *WebhookSender {
	return &WebhookSender{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *WebhookSender) Name() string { return "webhook" }

func (s *WebhookSender) Send(ctx context.Context, reminder *store.Reminder, task *store.Task) error {
	if s.url == "" {
		return errors.New("webhook channel is not configured")
	}
	payload, err := json.Marshal(map[string]any{
		"reminderUid": reminder.UID,
		"type":        string(reminder.Type),
		"attempt":     reminder.DeliveryAttempts,
		"taskId":      task.ID,
		"taskTitle":   task.Title,
		"dueTs":       task.DueTs,
	})
	if err != nil {
		return errors.Wrap(err, "failed to encode webhook payload")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "failed to build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "webhook delivery failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.Errorf("webhook delivery returned status %d", resp.StatusCode)
	}
	return nil
}

// EmailSender delivers over SMTP.
type EmailSender struct {
	addr string
	from string
}

func NewEmailSender(addr, from string) *EmailSender {
	return &EmailSender{addr: addr, from: from}
}

func (s *EmailSender) Name() string { return "email" }

func (s *EmailSender) Send(_ context.Context, reminder *store.Reminder, task *store.Task) error {
	if s.addr == "" || s.from == "" {
		return errors.New("email channel is not configured")
	}
	// Recipient addressing is deferred until user profiles carry an email;
	// deliveries go to the configured sender address for now.
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Reminder: %s\r\n\r\nTask %q is %s.\r\n",
		s.from, s.from, task.Title, task.Title, reminder.Type)
	if err := smtp.SendMail(s.addr, nil, s.from, []string{s.from}, []byte(body)); err != nil {
		return errors.Wrap(err, "smtp delivery failed")
	}
	return nil
}

// Dispatcher routes a delivery attempt across channels in priority order.
type Dispatcher struct {
	senders map[string]Sender
	logger  *slog.Logger

	// fired guards against double-firing a channel for the same attempt
	// sequence within this process. Cross-process idempotence comes from the
	// attempt counter being persisted before any channel fires. Entries are
	// keyed by reminder id and dropped once the reminder goes terminal.
	mu    sync.Mutex
	fired map[int32]map[string]bool
}

func NewDispatcher(p *profile.Profile, logger *slog.Logger, appSender *AppSender) *Dispatcher {
	senders := map[string]Sender{
		appSender.Name(): appSender,
	}
	webhook := NewWebhookSender(p.ReminderWebhookURL)
	senders[webhook.Name()] = webhook
	email := NewEmailSender(p.SMTPAddr, p.SMTPFrom)
	senders[email.Name()] = email

	return &Dispatcher{senders: senders, logger: logger, fired: make(map[int32]map[string]bool)}
}

// Deliver tries each channel in order and returns the first that succeeds.
// Every channel either fails or fires at most once per attempt sequence.
func (d *Dispatcher) Deliver(ctx context.Context, reminder *store.Reminder, task *store.Task, attemptSeq int) (string, error) {
	var channels []string
	if err := json.Unmarshal([]byte(reminder.Channels), &channels); err != nil || len(channels) == 0 {
		channels = DefaultChannels
	}

	var lastErr error
	for _, name := range channels {
		sender, ok := d.senders[name]
		if !ok {
			lastErr = errors.Errorf("unknown channel %q", name)
			continue
		}

		key := fmt.Sprintf("%d:%s", attemptSeq, name)
		d.mu.Lock()
		attempts := d.fired[reminder.ID]
		if attempts == nil {
			attempts = make(map[string]bool)
			d.fired[reminder.ID] = attempts
		}
		if attempts[key] {
			d.mu.Unlock()
			continue
		}
		attempts[key] = true
		d.mu.Unlock()

		if err := sender.Send(ctx, reminder, task); err != nil {
			d.logger.Warn("channel delivery failed",
				"reminderUID", reminder.UID, "channel", name, "attempt", attemptSeq, "error", err)
			lastErr = err
			continue
		}
		return name, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no delivery channels configured")
	}
	return "", lastErr
}

// Forget releases the firing record for a reminder. Called once the reminder
// reaches a terminal state, after which no attempt sequence can repeat.
func (d *Dispatcher) Forget(reminderID int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.fired, reminderID)
}
