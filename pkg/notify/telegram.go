package notify

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/pricewatch/pkg/common"
)

// Telegram sends messages through the Telegram Bot API. The target is a
// numeric chat ID or an @channel username.
type Telegram struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewTelegram returns a Telegram using the given bot token.
func NewTelegram(baseURL, token string) *Telegram {
	return &Telegram{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  common.HTTPClient(0),
	}
}

func configuredTelegram() *Telegram {
	t := NewTelegram("", "")
	baseURL := lflag.String("telegram-url", "https://api.telegram.org", "Base URL of the Telegram Bot API")
	token := lflag.String("telegram-bot-token", "", "Telegram bot token (defaults to $TELEGRAM_BOT_TOKEN)")

	lflag.Do(func() {
		t.baseURL = strings.TrimRight(*baseURL, "/")
		t.token = *token
		if t.token == "" {
			t.token = os.Getenv("TELEGRAM_BOT_TOKEN")
		}
	})
	return t
}

// Enabled returns true if a bot token is configured.
func (t *Telegram) Enabled() bool {
	return t.token != ""
}

// ctxClient attaches ctx to every request the bot makes since tgbotapi has
// no context support of its own.
type ctxClient struct {
	ctx    context.Context
	client *http.Client
}

func (c ctxClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

// bot returns a BotAPI bound to ctx. It is built directly instead of through
// tgbotapi.NewBotAPI so no getMe round trip happens on every send.
func (t *Telegram) bot(ctx context.Context) *tgbotapi.BotAPI {
	bot := &tgbotapi.BotAPI{
		Token:  t.token,
		Client: ctxClient{ctx: ctx, client: t.client},
		Buffer: 100,
	}
	bot.SetAPIEndpoint(t.baseURL + "/bot%s/%s")
	return bot
}

// Send posts the title and body as one message to the chat.
func (t *Telegram) Send(ctx context.Context, chat, title, body string) error {
	text := body
	if title != "" {
		text = title + "\n" + body
	}

	var msg tgbotapi.MessageConfig
	if strings.HasPrefix(chat, "@") {
		msg = tgbotapi.NewMessageToChannel(chat, text)
	} else {
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid telegram chat %q: %w", chat, err)
		}
		msg = tgbotapi.NewMessage(id, text)
	}

	if _, err := t.bot(ctx).Send(msg); err != nil {
		// the url carries the token
		return fmt.Errorf("failed to send telegram message: %w", redactURLError(err))
	}
	return nil
}
