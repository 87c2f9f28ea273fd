// Package telegram implements the chat-bot channel on top of telebot.
// It is a synchronous channel: one send call yields the message id.
package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"dealcast/internal/channel"
	"dealcast/internal/format"
	"dealcast/internal/models"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

// NewBot builds the shared telebot instance used by this channel and by
// the operator command surface.
func NewBot(cfg Config) (*tele.Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
}

// Channel publishes deals into one Telegram chat.
type Channel struct {
	bot  *tele.Bot
	chat tele.ChatID
}

func New(bot *tele.Bot, chatID int64) *Channel {
	return &Channel{bot: bot, chat: tele.ChatID(chatID)}
}

// Submit sends one formatted deal. Payload text is Telegram HTML.
func (c *Channel) Submit(ctx context.Context, p format.Payload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	opts := &tele.SendOptions{ParseMode: tele.ModeHTML, DisableWebPagePreview: true}

	var (
		msg *tele.Message
		err error
	)
	if strings.TrimSpace(p.MediaURL) != "" {
		photo := &tele.Photo{File: tele.FromURL(p.MediaURL), Caption: p.Text}
		msg, err = c.bot.Send(c.chat, photo, opts)
	} else {
		msg, err = c.bot.Send(c.chat, p.Text, opts)
	}
	if err != nil {
		return "", &channel.Error{Channel: models.ChannelChatBot, Code: "send_failed", Message: err.Error()}
	}
	return strconv.Itoa(msg.ID), nil
}

// Relay forwards log lines to the operator chat; it satisfies logx.Relay.
type Relay struct {
	bot  *tele.Bot
	chat tele.ChatID
}

func NewRelay(bot *tele.Bot, chatID int64) *Relay {
	return &Relay{bot: bot, chat: tele.ChatID(chatID)}
}

func (r *Relay) RelayLog(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.bot.Send(r.chat, text, &tele.SendOptions{DisableWebPagePreview: true})
	return err
}
