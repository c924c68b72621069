package notifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mohammad-safakhou/headliner/config"
	"github.com/mohammad-safakhou/headliner/internal/telemetry"
)

// ErrNotConfigured is returned when the bot token or the chat id is missing.
var ErrNotConfigured = errors.New("telegram token or chat id not configured")

// DeliveryError wraps any failure of the sendMessage call.
type DeliveryError struct {
	Status int // HTTP status, 0 when the request never got a response
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("telegram send failed (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("telegram send failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Payload is one outbound notification.
type Payload struct {
	ChatID string
	Text   string
}

// Telegram sends text messages to a fixed chat through the Bot API.
type Telegram struct {
	token     string
	chatID    string
	endpoint  string
	parseMode string
	client    *http.Client
	logger    *log.Logger
	metrics   *telemetry.Metrics
}

type Option func(*Telegram)

func WithHTTPClient(c *http.Client) Option { return func(t *Telegram) { t.client = c } }

func WithLogger(l *log.Logger) Option { return func(t *Telegram) { t.logger = l } }

func WithMetrics(m *telemetry.Metrics) Option { return func(t *Telegram) { t.metrics = m } }

func New(cfg config.TelegramConfig, opts ...Option) *Telegram {
	t := &Telegram{
		token:     strings.TrimSpace(cfg.Token),
		chatID:    strings.TrimSpace(cfg.ChatID),
		endpoint:  cfg.APIEndpoint,
		parseMode: cfg.ParseMode,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
	if t.endpoint == "" {
		t.endpoint = tgbotapi.APIEndpoint
	}
	if t.parseMode == "" {
		t.parseMode = tgbotapi.ModeMarkdown
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = log.New(log.Writer(), "[NOTIFY] ", log.LstdFlags)
	}
	return t
}

// Configured reports whether both credentials are present.
func (t *Telegram) Configured() bool { return t.token != "" && t.chatID != "" }

// Send delivers text and reports success. Failures are logged, never retried.
func (t *Telegram) Send(ctx context.Context, text string) bool {
	if err := t.Deliver(ctx, text); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			t.logger.Printf("configuration error: %v", err)
		} else {
			t.logger.Printf("error sending telegram message: %v", err)
		}
		return false
	}
	return true
}

// Deliver performs exactly one sendMessage call. It returns ErrNotConfigured
// without any network I/O when credentials are missing, and *DeliveryError on
// non-2xx responses, transport errors or an ok:false API reply.
func (t *Telegram) Deliver(ctx context.Context, text string) error {
	if !t.Configured() {
		t.metrics.Notification("not_configured")
		return ErrNotConfigured
	}
	p := Payload{ChatID: t.chatID, Text: text}

	bot := &tgbotapi.BotAPI{
		Token:  t.token,
		Client: &statusClient{ctx: ctx, client: t.client},
	}
	bot.SetAPIEndpoint(t.endpoint)

	if _, err := bot.Request(t.message(p)); err != nil {
		t.metrics.Notification("failed")
		var derr *DeliveryError
		if errors.As(err, &derr) {
			return derr
		}
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			return &DeliveryError{Status: apiErr.Code, Err: err}
		}
		return &DeliveryError{Err: err}
	}
	t.metrics.Notification("sent")
	return nil
}

func (t *Telegram) message(p Payload) tgbotapi.MessageConfig {
	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(p.ChatID, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, p.Text)
	} else {
		msg = tgbotapi.NewMessageToChannel(p.ChatID, p.Text)
	}
	msg.ParseMode = t.parseMode
	return msg
}

// statusClient binds the caller's context to the request and turns non-2xx
// responses into errors before the Bot API decoder sees them.
type statusClient struct {
	ctx    context.Context
	client *http.Client
}

func (c *statusClient) Do(req *http.Request) (*http.Response, error) {
	if c.ctx != nil {
		req = req.WithContext(c.ctx)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &DeliveryError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, &DeliveryError{Status: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
	}
	return resp, nil
}
