package notify

import (
	"bytes"

	"github.com/bwmarrin/discordgo"

	"github.com/bowerhall/tourcam/internal/logger"
)

// discord posts over the REST API only; no gateway connection is opened.
type discord struct {
	session   *discordgo.Session
	channelID string
}

func NewDiscord(token, channelID string) (Sender, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	return &discord{session: session, channelID: channelID}, nil
}

func (d *discord) Name() string {
	return "discord"
}

func (d *discord) Send(message string) error {
	_, err := d.session.ChannelMessageSend(d.channelID, message)
	if err != nil {
		logger.Error("discord send failed", "error", err, "channelID", d.channelID)
	} else {
		logger.Info("discord message sent", "channelID", d.channelID, "chars", len(message))
	}
	return err
}

func (d *discord) SendPhoto(data []byte, caption string) error {
	_, err := d.session.ChannelMessageSendComplex(d.channelID, &discordgo.MessageSend{
		Content: caption,
		Files: []*discordgo.File{
			{
				Name:        "panorama.jpg",
				ContentType: "image/jpeg",
				Reader:      bytes.NewReader(data),
			},
		},
	})
	if err != nil {
		logger.Error("discord send photo failed", "error", err, "channelID", d.channelID)
	} else {
		logger.Info("discord photo sent", "channelID", d.channelID)
	}
	return err
}
