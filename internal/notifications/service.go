package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cymatics/internal/config"
	"cymatics/internal/version"
)

var userAgent = "cymatics/" + version.Version

// Service defines the notification surface used by the daemon.
type Service interface {
	JobCompleted(ctx context.Context, filename string, duration time.Duration) error
	JobFailed(ctx context.Context, filename, reason string) error
	Test(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		appName:  cfg.API.AppName,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	appName  string
	client   *http.Client
}

func (n *ntfyService) title(suffix string) string {
	name := strings.TrimSpace(n.appName)
	if name == "" {
		name = "cymatics"
	}
	return name + " - " + suffix
}

func (n *ntfyService) JobCompleted(ctx context.Context, filename string, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	data := payload{
		title:   n.title("Transcribed"),
		message: fmt.Sprintf("Transcript ready: %s (%s)", strings.TrimSpace(filename), duration),
		tags:    []string{"cymatics", "transcribe", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) JobFailed(ctx context.Context, filename, reason string) error {
	message := fmt.Sprintf("Transcription failed: %s", strings.TrimSpace(filename))
	if reason = strings.TrimSpace(reason); reason != "" {
		message += "\n" + reason
	}
	data := payload{
		title:    n.title("Failed"),
		message:  message,
		tags:     []string{"cymatics", "transcribe", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) Test(ctx context.Context) error {
	data := payload{
		title:    n.title("Test"),
		message:  "Notification system test",
		tags:     []string{"cymatics", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

type noopService struct{}

func (noopService) JobCompleted(context.Context, string, time.Duration) error { return nil }
func (noopService) JobFailed(context.Context, string, string) error           { return nil }
func (noopService) Test(context.Context) error                                { return nil }
