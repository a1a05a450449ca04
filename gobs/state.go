// Copyright (c) 2025 BVK Chaitanya

// Package gobs defines the gob-encoded types saved in the database.
package gobs

import "time"

type TelegramState struct {
	// ChatIDs maps a telegram user to the chat id of their last conversation
	// with the bot. Users without a username are keyed by their numeric id.
	ChatIDs map[string]int64
}

// PublisherState holds the outcome of the most recent publish cycles. It is
// overwritten on every cycle and never grows.
type PublisherState struct {
	LastAttempt time.Time
	LastSuccess time.Time
	LastError   string

	NumPublished uint64
	NumFailed    uint64

	// OutageNoticeSent is true when the channel was already told that price
	// data is unavailable and no successful cycle has happened since.
	OutageNoticeSent bool
}
