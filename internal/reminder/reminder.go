// Package reminder notifies the on-call employee ahead of their shift by
// posting to a configured webhook. Settings are owned by the configuration
// layer and consumed read-only here.
package reminder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/dutyroster/internal/calendar"
	"github.com/example/dutyroster/internal/duty"
	"github.com/example/dutyroster/internal/logging"
	"github.com/example/dutyroster/internal/metrics"
)

// Settings controls whether and when reminders fire.
type Settings struct {
	Enabled     bool
	HoursBefore int
	WebhookURL  string
}

// Payload is the webhook body, shaped after the scheduler's reminder message.
type Payload struct {
	Type     string          `json:"type"`
	Schedule duty.Assignment `json:"schedule"`
	Message  string          `json:"message"`
	SentAt   string          `json:"sentAt"`
}

// ScheduleSource is the read-only slice of the cache the runner consults.
type ScheduleSource interface {
	Get(date string) (duty.Assignment, bool)
}

// Due reports whether a reminder should fire now for a shift starting at
// shiftStart: the window opens hoursBefore hours ahead and closes when the
// shift begins.
func Due(now, shiftStart time.Time, hoursBefore int) bool {
	if hoursBefore < 1 {
		return false
	}
	opens := shiftStart.Add(-time.Duration(hoursBefore) * time.Hour)
	return !now.Before(opens) && now.Before(shiftStart)
}

// Notifier delivers reminder payloads over HTTP.
type Notifier struct {
	httpc  *http.Client
	logger *slog.Logger
}

// NewNotifier constructs a Notifier. A nil http.Client gets a 10 second
// timeout default.
func NewNotifier(httpc *http.Client, logger *slog.Logger) *Notifier {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Notifier{httpc: httpc, logger: logger}
}

// Send posts the reminder for the assignment to the webhook URL.
func (n *Notifier) Send(ctx context.Context, webhookURL string, assignment duty.Assignment, sentAt time.Time) error {
	payload := Payload{
		Type:     "reminder",
		Schedule: assignment,
		Message: fmt.Sprintf("Reminder: %s is on phone duty tonight. Contact: %s",
			assignment.EmployeeName, assignment.Phone),
		SentAt: sentAt.UTC().Format(time.RFC3339),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("reminder: failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("reminder: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("reminder: webhook unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("reminder: webhook answered status %d", resp.StatusCode)
	}
	return nil
}

// Runner periodically checks today's assignment and fires at most one
// reminder per date once the reminder window opens.
type Runner struct {
	schedule       ScheduleSource
	notifier       *Notifier
	settings       Settings
	shiftStartHour int
	now            func() time.Time
	logger         *slog.Logger

	notified map[string]struct{}
}

// NewRunner constructs a Runner. A nil now falls back to time.Now.
func NewRunner(schedule ScheduleSource, notifier *Notifier, settings Settings, shiftStartHour int, now func() time.Time, logger *slog.Logger) *Runner {
	if now == nil {
		now = time.Now
	}
	return &Runner{
		schedule:       schedule,
		notifier:       notifier,
		settings:       settings,
		shiftStartHour: shiftStartHour,
		now:            now,
		logger:         logger,
		notified:       make(map[string]struct{}),
	}
}

// Run ticks at the given interval until the context is cancelled. The runner
// is single-threaded; Tick is never invoked concurrently.
func (r *Runner) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick evaluates the reminder window once. Exported for tests and manual
// triggering.
func (r *Runner) Tick(ctx context.Context) {
	if !r.settings.Enabled || r.settings.WebhookURL == "" {
		return
	}

	now := r.now()
	dateKey := calendar.DateKey(now)
	shiftStart := time.Date(now.Year(), now.Month(), now.Day(), r.shiftStartHour, 0, 0, 0, now.Location())

	assignment, ok := r.schedule.Get(dateKey)
	if !ok {
		return
	}
	if _, already := r.notified[dateKey]; already {
		return
	}
	if !Due(now, shiftStart, r.settings.HoursBefore) {
		return
	}

	logger := logging.Component(ctx, r.logger, "Reminder", "Tick",
		"date", dateKey, "employee", assignment.EmployeeName)

	if err := r.notifier.Send(ctx, r.settings.WebhookURL, assignment, now); err != nil {
		metrics.ReminderSent("failed")
		logger.WarnContext(ctx, "reminder delivery failed", "error", err)
		return
	}

	r.notified[dateKey] = struct{}{}
	metrics.ReminderSent("ok")
	logger.InfoContext(ctx, "reminder delivered")
}
