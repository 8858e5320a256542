package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brensch/camava/internal/providers"
	"github.com/bwmarrin/discordgo"
)

// Discord posts notifications to a single channel using a bot token.
type Discord struct {
	channelID string
	logger    *slog.Logger
	send      func(channelID, content string) error
}

func NewDiscord(token, channelID string) (*Discord, error) {
	if token == "" || channelID == "" {
		return nil, errors.New("discord token and channel id are required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &Discord{
		channelID: channelID,
		logger:    slog.Default(),
		send: func(channelID, content string) error {
			_, err := s.ChannelMessageSend(channelID, content)
			return err
		},
	}, nil
}

func (d *Discord) Notify(ctx context.Context, facility string, sites []providers.AvailableCampsite) error {
	if len(sites) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := FormatMessage(facility, sites)
	if err := d.send(d.channelID, msg); err != nil {
		return fmt.Errorf("send discord notification: %w", err)
	}
	d.logger.Info("sent discord notification", slog.String("facility", facility), slog.Int("count", len(sites)))
	return nil
}
