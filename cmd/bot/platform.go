package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"racebot/internal/chat"
	"racebot/internal/chat/stub"
	"racebot/internal/config"
	"racebot/internal/discordbot"
	"racebot/internal/tgbot"
)

func newPlatform(cfg config.Config, log zerolog.Logger) (chat.Platform, error) {
	switch cfg.ChatPlatform {
	case "discord":
		return discordbot.New(cfg.DiscordToken, cfg.DiscordGuildID, log)
	case "telegram":
		return tgbot.New(cfg.TelegramToken, cfg.TelegramChatID, log)
	case "stub":
		return stub.New(), nil
	default:
		return nil, fmt.Errorf("unknown chat platform: %s", cfg.ChatPlatform)
	}
}
