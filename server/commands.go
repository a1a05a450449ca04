// Copyright (c) 2025 BVK Chaitanya

package server

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/bvk/pricebot/message"
	"github.com/visvasity/cli"
)

func (s *Server) startCmd(ctx context.Context, _ []string) error {
	s.metrics.commandTotal.WithLabelValues("start").Inc()

	stdout := cli.Stdout(ctx)
	fmt.Fprintf(stdout, "Bot is running! Price updates will be sent to the channel every %s.", intervalText(s.opts.UpdateInterval))
	return nil
}

// pricesCmd replies with the latest prices. Fetch errors are reported in the
// reply instead of failing the command.
func (s *Server) pricesCmd(ctx context.Context, _ []string) error {
	s.metrics.commandTotal.WithLabelValues("prices").Inc()

	stdout := cli.Stdout(ctx)
	snaps, err := s.fetch(ctx)
	if err != nil {
		fmt.Fprint(stdout, message.Unavailable(s.now(), err))
		return nil
	}
	fmt.Fprint(stdout, message.Format(snaps, snaps.FetchTime))
	return nil
}

func (s *Server) statusCmd(ctx context.Context, _ []string) error {
	s.metrics.commandTotal.WithLabelValues("status").Inc()

	stdout := cli.Stdout(ctx)
	state := s.State()

	fmt.Fprintf(stdout, "Uptime: %s\n", uptimeText(s.now().Sub(s.startTime)))
	fmt.Fprintf(stdout, "Update interval: %s\n", intervalText(s.opts.UpdateInterval))
	fmt.Fprintf(stdout, "Last attempt: %s\n", timeText(state.LastAttempt))
	fmt.Fprintf(stdout, "Last success: %s\n", timeText(state.LastSuccess))
	fmt.Fprintf(stdout, "Published: %d\n", state.NumPublished)
	fmt.Fprintf(stdout, "Failed: %d", state.NumFailed)
	if len(state.LastError) != 0 {
		fmt.Fprintf(stdout, "\nLast error: %s", html.EscapeString(state.LastError))
	}
	return nil
}

// intervalText returns "5 minutes" style text for whole minutes and the
// duration string otherwise.
func intervalText(d time.Duration) string {
	if d%time.Minute != 0 {
		return d.String()
	}
	if n := int64(d / time.Minute); n != 1 {
		return fmt.Sprintf("%d minutes", n)
	}
	return "1 minute"
}

func uptimeText(d time.Duration) string {
	const day = 24 * time.Hour
	d = d.Round(time.Second)
	if d < day {
		return d.String()
	}
	return fmt.Sprintf("%dd%v", d/day, d%day)
}

func timeText(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.UTC().Format(message.TimeLayout) + " UTC"
}
