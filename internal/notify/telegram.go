// Package notify reports finished exports to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/romanzh1/onenote-export/internal/models"
	"github.com/romanzh1/onenote-export/pkg/utils"
)

const (
	maxListedFailures = 10
	maxMessageLength  = 4096
)

type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

type telegramOptions struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

type TelegramOption func(*telegramOptions)

// WithEndpoint overrides the Bot API endpoint format, e.g. "https://host/bot%s/%s".
func WithEndpoint(endpoint string) TelegramOption {
	return func(o *telegramOptions) {
		o.endpoint = endpoint
	}
}

func WithHTTPClient(client *http.Client) TelegramOption {
	return func(o *telegramOptions) {
		o.client = client
	}
}

func WithLogger(logger *zap.Logger) TelegramOption {
	return func(o *telegramOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func NewTelegram(token string, chatID int64, opts ...TelegramOption) (*Telegram, error) {
	o := telegramOptions{
		endpoint: tgbotapi.APIEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, o.endpoint, o.client)
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}

	o.logger.Debug("telegram notifier ready", zap.String("bot", api.Self.UserName), zap.Int64("chat_id", chatID))

	return &Telegram{
		api:    api,
		chatID: chatID,
		logger: o.logger,
	}, nil
}

func (t *Telegram) Notify(ctx context.Context, summary *models.Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, FormatSummary(summary))
	msg.DisableWebPagePreview = true

	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send message (chat_id: %d): %w", t.chatID, err)
	}

	t.logger.Info("sent export notification", zap.Int64("chat_id", t.chatID), zap.String("run_id", summary.RunID))
	return nil
}

// FormatSummary renders the plain-text notification body.
func FormatSummary(s *models.Summary) string {
	var b strings.Builder

	switch {
	case s.Error != "":
		fmt.Fprintf(&b, "OneNote export failed (run %s)\n", s.RunID)
		fmt.Fprintf(&b, "Error: %s\n", s.Error)
	case s.Clean():
		fmt.Fprintf(&b, "OneNote export finished (run %s)\n", s.RunID)
	default:
		fmt.Fprintf(&b, "OneNote export finished with errors (run %s)\n", s.RunID)
	}

	fmt.Fprintf(&b, "Output: %s\n", s.OutputDir)
	fmt.Fprintf(&b, "Notebooks: %d, sections: %d, pages: %d\n", s.Notebooks, s.Sections, s.Pages)
	fmt.Fprintf(&b, "Media files: %d", s.Media)
	if s.MediaFailed > 0 {
		fmt.Fprintf(&b, " (%d not downloaded)", s.MediaFailed)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Duration: %s\n", s.Duration().Round(time.Second))

	for _, br := range s.Branches {
		fmt.Fprintf(&b, "Skipped %s %s: %s\n", br.Kind, br.Name, br.Err)
	}

	if len(s.FailedPages) > 0 {
		fmt.Fprintf(&b, "Failed pages: %d\n", len(s.FailedPages))
		for i, f := range s.FailedPages {
			if i == maxListedFailures {
				fmt.Fprintf(&b, "... and %d more\n", len(s.FailedPages)-maxListedFailures)
				break
			}
			fmt.Fprintf(&b, "- %s / %s / %s\n", f.Notebook, f.Section, f.Title)
		}
	}

	return utils.Truncate(strings.TrimRight(b.String(), "\n"), maxMessageLength)
}
