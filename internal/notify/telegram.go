package notify

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bowerhall/tourcam/internal/logger"
)

type telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) (Sender, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	return &telegram{api: api, chatID: chatID}, nil
}

func (t *telegram) Name() string {
	return "telegram"
}

func (t *telegram) Send(message string) error {
	msg := tgbotapi.NewMessage(t.chatID, message)
	_, err := t.api.Send(msg)
	if err != nil {
		logger.Error("telegram send failed", "error", err, "chatID", t.chatID)
	} else {
		logger.Info("telegram message sent", "chatID", t.chatID, "chars", len(message))
	}
	return err
}

func (t *telegram) SendPhoto(data []byte, caption string) error {
	photoBytes := tgbotapi.FileBytes{Name: "panorama.jpg", Bytes: data}
	msg := tgbotapi.NewPhoto(t.chatID, photoBytes)
	msg.Caption = caption
	_, err := t.api.Send(msg)
	if err != nil {
		logger.Error("telegram send photo failed", "error", err, "chatID", t.chatID)
	} else {
		logger.Info("telegram photo sent", "chatID", t.chatID, "caption", truncate(caption, 50))
	}
	return err
}
