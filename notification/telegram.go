// Package notification pushes trade executions and deployment errors to
// the user over Telegram.
package notification

import (
	"fmt"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/raykavin/stardust/core"
)

// Telegram implements core.Notifier over a Telegram bot chat.
type Telegram struct {
	client *tb.Bot
	chat   *tb.Chat
	log    core.Logger
}

// NewTelegram creates the notifier for one recipient chat.
func NewTelegram(token string, chatID int64, log core.Logger) (*Telegram, error) {
	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     token,
		Poller:    &tb.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &Telegram{
		client: client,
		chat:   &tb.Chat{ID: chatID},
		log:    log,
	}, nil
}

// OnTrade implements core.Notifier.
func (t *Telegram) OnTrade(trade core.TradeRecord) {
	message := fmt.Sprintf(
		"*%s executed*\nsold `%f %s`\nbought `%f %s`",
		trade.Advice,
		trade.SoldAmount, trade.SoldAsset,
		trade.BoughtAmount, trade.BoughtAsset,
	)
	t.send(message)
}

// OnError implements core.Notifier.
func (t *Telegram) OnError(err error) {
	t.send(fmt.Sprintf("*deployment error*\n`%v`", err))
}

func (t *Telegram) send(message string) {
	if _, err := t.client.Send(t.chat, message); err != nil {
		t.log.WithError(err).Error("notification: telegram send failed")
	}
}
