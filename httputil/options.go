// Copyright (c) 2023 BVK Chaitanya

package httputil

import (
	"fmt"
	"os"
	"time"
)

type Options struct {
	// HealthCheck reports the service health for the /healthz endpoint. A nil
	// function always reports healthy.
	HealthCheck func() error

	// ProbeTimeout limits the total time to wait for the listener to serve
	// its own /pid endpoint.
	ProbeTimeout time.Duration

	// ProbeRetryInterval is the wait between readiness probes.
	ProbeRetryInterval time.Duration

	ReadHeaderTimeout time.Duration
}

func (v *Options) setDefaults() {
	if v.ProbeTimeout == 0 {
		v.ProbeTimeout = 10 * time.Second
	}
	if v.ProbeRetryInterval == 0 {
		v.ProbeRetryInterval = 100 * time.Millisecond
	}
	if v.ReadHeaderTimeout == 0 {
		v.ReadHeaderTimeout = 10 * time.Second
	}
}

func (v *Options) Check() error {
	if v.ProbeTimeout < 0 || v.ProbeRetryInterval < 0 || v.ReadHeaderTimeout < 0 {
		return fmt.Errorf("timeouts cannot be negative: %w", os.ErrInvalid)
	}
	return nil
}
