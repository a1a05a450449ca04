// Copyright (c) 2023 BVK Chaitanya

package server

import (
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultUpdateInterval = 300 * time.Second
	DefaultInitialDelay   = 10 * time.Second
)

type Options struct {
	// ChannelID is the telegram chat id or @username of the channel that
	// receives the price updates.
	ChannelID any

	// UpdateInterval is the time between the recurring price updates.
	UpdateInterval time.Duration

	// InitialDelay is the time before the first price update. Zero runs the
	// first update immediately.
	InitialDelay time.Duration

	// FetchTimeout limits the time for fetching prices in one cycle, including
	// the retries.
	FetchTimeout time.Duration

	// PublishTimeout limits the time for sending one message to the channel,
	// including the retries.
	PublishTimeout time.Duration

	// Registerer receives the server metrics. Metrics are not exported when
	// nil.
	Registerer prometheus.Registerer
}

func (v *Options) setDefaults() {
	if v.UpdateInterval == 0 {
		v.UpdateInterval = DefaultUpdateInterval
	}
	if v.FetchTimeout == 0 {
		v.FetchTimeout = time.Minute
	}
	if v.PublishTimeout == 0 {
		v.PublishTimeout = time.Minute
	}
}

func (v *Options) Check() error {
	if v.ChannelID == nil {
		return fmt.Errorf("channel id cannot be empty: %w", os.ErrInvalid)
	}
	if s, ok := v.ChannelID.(string); ok && len(s) == 0 {
		return fmt.Errorf("channel id cannot be empty: %w", os.ErrInvalid)
	}
	if v.UpdateInterval < time.Second {
		return fmt.Errorf("update interval %s is too small: %w", v.UpdateInterval, os.ErrInvalid)
	}
	if v.InitialDelay < 0 {
		return fmt.Errorf("initial delay cannot be negative: %w", os.ErrInvalid)
	}
	if v.FetchTimeout <= 0 || v.PublishTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive: %w", os.ErrInvalid)
	}
	return nil
}
