package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vodwatch/internal/config"
)

const userAgent = "vodwatch/0.1"

// Event names a milestone.
type Event string

const (
	EventRecordingStarted     Event = "recording_started"
	EventRecordingFinished    Event = "recording_finished"
	EventRecordingFailed      Event = "recording_failed"
	EventCompressionCompleted Event = "compression_completed"
	EventError                Event = "error"
	EventTest                 Event = "test"
)

// Payload carries event fields by name.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService returns an ntfy notifier, or a no-op when no topic is configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := cfg.NotifyTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := render(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func render(event Event, p Payload) (message, bool) {
	switch event {
	case EventRecordingStarted:
		return message{
			title: "vodwatch - Recording",
			body:  fmt.Sprintf("🔴 %s is live; recording to %s", p.text("channel"), p.text("file")),
			tags:  []string{"vodwatch", "recording", "started"},
		}, true
	case EventRecordingFinished:
		return message{
			title: "vodwatch - Recording Saved",
			body:  fmt.Sprintf("💾 %s %s after %s\nFile: %s", p.text("channel"), p.text("state"), p.text("duration"), p.text("file")),
			tags:  []string{"vodwatch", "recording", "completed"},
		}, true
	case EventRecordingFailed:
		return message{
			title:    "vodwatch - Recording Failed",
			body:     fmt.Sprintf("❌ %s recording failed: %s", p.text("channel"), p.text("error")),
			tags:     []string{"vodwatch", "recording", "failed"},
			priority: "high",
		}, true
	case EventCompressionCompleted:
		failed := p.count("failed")
		title := "vodwatch - Compression Complete"
		if failed > 0 {
			title = "vodwatch - Compression Complete (with errors)"
		}
		return message{
			title: title,
			body: fmt.Sprintf("🗜️ %d compressed, %d failed, %d skipped; %d originals deleted",
				p.count("succeeded"), failed, p.count("skipped"), p.count("deleted")),
			tags: []string{"vodwatch", "compress", "completed"},
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("❌ Error")
		if label := p.text("context"); label != "" {
			b.WriteString(" with " + label)
		}
		b.WriteString(": ")
		if detail := p.text("error"); detail != "" {
			b.WriteString(detail)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "vodwatch - Error",
			body:     b.String(),
			tags:     []string{"vodwatch", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "vodwatch - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"vodwatch", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (p Payload) text(key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func (p Payload) count(key string) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
