// Copyright (c) 2023 BVK Chaitanya

package server

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bvk/pricebot/coingecko"
	"github.com/bvk/pricebot/telegram"
)

// Environment variables that override the secrets file values.
const (
	TelegramTokenEnv   = "TELEGRAM_TOKEN"
	ChannelIDEnv       = "CHANNEL_ID"
	CoinGeckoAPIKeyEnv = "COINGECKO_API_KEY"
)

type Secrets struct {
	Telegram  *telegram.Secrets      `json:"telegram"`
	CoinGecko *coingecko.Credentials `json:"coingecko,omitempty"`
}

func SecretsFromFile(fpath string) (*Secrets, error) {
	data, err := os.ReadFile(fpath)
	if err != nil {
		return nil, err
	}
	s := new(Secrets)
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("could not parse secrets file %q: %w", fpath, err)
	}
	return s, nil
}

// UpdateFromEnv overrides the secrets with non-empty values from the
// environment.
func (v *Secrets) UpdateFromEnv() {
	if x := os.Getenv(TelegramTokenEnv); len(x) != 0 {
		if v.Telegram == nil {
			v.Telegram = new(telegram.Secrets)
		}
		v.Telegram.BotToken = x
	}
	if x := os.Getenv(ChannelIDEnv); len(x) != 0 {
		if v.Telegram == nil {
			v.Telegram = new(telegram.Secrets)
		}
		v.Telegram.ChannelID = x
	}
	if x := os.Getenv(CoinGeckoAPIKeyEnv); len(x) != 0 {
		if v.CoinGecko == nil {
			v.CoinGecko = new(coingecko.Credentials)
		}
		v.CoinGecko.APIKey = x
	}
}

func (v *Secrets) Check() error {
	if v.Telegram == nil {
		return fmt.Errorf("telegram secrets are required (set %s and %s): %w", TelegramTokenEnv, ChannelIDEnv, os.ErrInvalid)
	}
	if err := v.Telegram.Check(); err != nil {
		return fmt.Errorf("invalid telegram secrets: %w", err)
	}
	return nil
}
