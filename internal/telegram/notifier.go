// Package telegram отправляет уведомления о действиях бота.
// Отправка никогда не блокирует торговый пайплайн: ошибки только логируются.
package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/kirillm/opentrade-bot/internal/domain"
	"github.com/kirillm/opentrade-bot/pkg/logger"
)

// Notifier отправляет сообщения в один чат
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewNotifier создает нотификатор. Возвращает ошибку при невалидном токене.
func NewNotifier(token string, chatID int64) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	logger.Info("telegram bot authorized", zap.String("username", api.Self.UserName))

	return &Notifier{api: api, chatID: chatID}, nil
}

// NotifySignal отправляет сообщение о сигнале и решении по нему
func (n *Notifier) NotifySignal(signal domain.Signal, analysis domain.AiAnalysis) {
	n.send(FormatSignal(signal, analysis))
}

// NotifyTradeClosed отправляет сообщение о закрытой сделке
func (n *Notifier) NotifyTradeClosed(trade domain.Trade) {
	n.send(FormatTradeClosed(trade))
}

func (n *Notifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.api.Send(msg); err != nil {
		logger.Error("telegram send failed", zap.Error(err))
	}
}
