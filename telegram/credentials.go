// Copyright (c) 2025 BVK Chaitanya

package telegram

import (
	"fmt"
	"strconv"
	"strings"
)

type Secrets struct {
	BotToken string `json:"token"`

	// ChannelID is the destination for the price updates. It is either a
	// numeric chat id (ex: -1001234567890) or a public channel username (ex:
	// @mychannel).
	ChannelID string `json:"channel"`
}

func (v *Secrets) Check() error {
	if len(v.BotToken) == 0 {
		return fmt.Errorf("bot token cannot be empty")
	}
	if len(v.ChannelID) == 0 {
		return fmt.Errorf("channel id cannot be empty")
	}
	if _, err := strconv.ParseInt(v.ChannelID, 10, 64); err != nil && !strings.HasPrefix(v.ChannelID, "@") {
		return fmt.Errorf("channel id %q must be a number or a @username", v.ChannelID)
	}
	return nil
}

func (v *Secrets) Clone() *Secrets {
	return &Secrets{
		BotToken:  v.BotToken,
		ChannelID: v.ChannelID,
	}
}

// ChatID returns the channel id in the form accepted by the bot api.
func (v *Secrets) ChatID() any {
	if id, err := strconv.ParseInt(v.ChannelID, 10, 64); err == nil {
		return id
	}
	return v.ChannelID
}
