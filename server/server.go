// Copyright (c) 2023 BVK Chaitanya

// Package server runs the recurring price updates to the telegram channel and
// handles the on-demand user commands.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/bvk/pricebot/ctxutil"
	"github.com/bvk/pricebot/gobs"
	"github.com/bvk/pricebot/kvutil"
	"github.com/bvk/pricebot/message"
	"github.com/bvk/pricebot/pricefeed"
	"github.com/bvk/pricebot/telegram"
	"github.com/bvkgo/kv"
	"github.com/google/uuid"
	"github.com/visvasity/topic"
)

const PublisherStateKey = "/pricebot/publisher/state"

// Fetcher returns the latest prices for all configured assets. It is
// implemented by pricefeed.Feed.
type Fetcher interface {
	Fetch(ctx context.Context) (*pricefeed.Snapshots, error)
}

// Messenger delivers messages and user commands. It is implemented by
// telegram.Client.
type Messenger interface {
	SendHTML(ctx context.Context, chatID any, text string) error
	AddCommand(ctx context.Context, name, purpose string, handler telegram.CmdFunc) error
}

// update is the result of one fetch cycle.
type update struct {
	cycleID string
	at      time.Time
	snaps   *pricefeed.Snapshots
	err     error
}

type Server struct {
	cg ctxutil.CloseGroup

	opts Options

	db kv.Database

	fetcher   Fetcher
	messenger Messenger

	updates *topic.Topic[*update]

	startTime time.Time

	now func() time.Time

	metrics *metrics

	stateMu sync.Mutex
	state   *gobs.PublisherState
}

// New creates a server and registers the user commands with the messenger.
// Recurring updates begin only after Start.
func New(ctx context.Context, db kv.Database, fetcher Fetcher, messenger Messenger, opts *Options) (*Server, error) {
	if db == nil || fetcher == nil || messenger == nil {
		return nil, fmt.Errorf("db, fetcher and messenger are required: %w", os.ErrInvalid)
	}
	if opts == nil {
		opts = new(Options)
	}
	opts.setDefaults()
	if err := opts.Check(); err != nil {
		return nil, err
	}

	state, err := kvutil.GetOrNewDB[gobs.PublisherState](ctx, db, PublisherStateKey)
	if err != nil {
		return nil, fmt.Errorf("could not load publisher state: %w", err)
	}

	m, err := newMetrics(opts.Registerer)
	if err != nil {
		return nil, fmt.Errorf("could not register metrics: %w", err)
	}

	s := &Server{
		opts:      *opts,
		db:        db,
		fetcher:   fetcher,
		messenger: messenger,
		updates:   topic.New[*update](),
		startTime: time.Now(),
		now:       time.Now,
		metrics:   m,
		state:     state,
	}

	cmds := []struct {
		name, purpose string
		handler       telegram.CmdFunc
	}{
		{"start", "Prints the bot status and the update interval", s.startCmd},
		{"prices", "Prints the latest prices", s.pricesCmd},
		{"status", "Prints the recent price update status", s.statusCmd},
	}
	for _, c := range cmds {
		if err := messenger.AddCommand(ctx, c.name, c.purpose, c.handler); err != nil {
			return nil, fmt.Errorf("could not add command %q: %w", c.name, err)
		}
	}
	return s, nil
}

// Start begins the recurring price updates in the background.
func (s *Server) Start(ctx context.Context) error {
	receiver, err := topic.Subscribe(s.updates, 0, false /* includeRecent */)
	if err != nil {
		return fmt.Errorf("could not subscribe to price updates: %w", err)
	}
	updatesCh, err := topic.ReceiveCh(receiver)
	if err != nil {
		receiver.Close()
		return fmt.Errorf("could not get price updates channel: %w", err)
	}

	s.cg.Go(func(ctx context.Context) {
		defer receiver.Close()
		s.goPublish(ctx, updatesCh)
	})
	s.cg.Go(s.goTimer)

	slog.Info("started recurring price updates", "interval", s.opts.UpdateInterval, "initial-delay", s.opts.InitialDelay)
	return nil
}

func (s *Server) Close() error {
	s.cg.Close()
	return nil
}

// goTimer runs the fetches one at a time. Ticks that arrive while a fetch is
// running are dropped by the ticker. Publishing happens in goPublish, so a
// fetch can run while the previous update is still being sent; updates are
// still sent one at a time and in order.
func (s *Server) goTimer(ctx context.Context) {
	ctxutil.Sleep(ctx, s.opts.InitialDelay)
	if ctx.Err() != nil {
		return
	}

	ticker := time.NewTicker(s.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		s.updates.Send(s.fetchCycle(ctx))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) goPublish(ctx context.Context, updatesCh <-chan *update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-updatesCh:
			s.publish(ctx, u)
		}
	}
}

func (s *Server) fetchCycle(ctx context.Context) *update {
	u := &update{
		cycleID: uuid.New().String(),
	}
	u.snaps, u.err = s.fetch(ctx)
	u.at = s.now()
	if u.snaps != nil {
		u.at = u.snaps.FetchTime
	}
	return u
}

func (s *Server) fetch(ctx context.Context) (*pricefeed.Snapshots, error) {
	fctx, fcancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer fcancel()

	start := time.Now()
	snaps, err := s.fetcher.Fetch(fctx)
	s.metrics.fetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.fetchTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	s.metrics.fetchTotal.WithLabelValues("ok").Inc()
	s.metrics.observePrices(snaps)
	return snaps, nil
}

// publish sends the price update to the channel. Failures are recorded in the
// publisher state and the channel is told about the outage once, when the
// first cycle after a success fails.
func (s *Server) publish(ctx context.Context, u *update) {
	if ctx.Err() != nil {
		return
	}

	err := u.err
	if err == nil {
		text := message.Format(u.snaps, u.at)
		if err = s.send(ctx, "update", text); err == nil {
			slog.Info("price update sent successfully", "cycle", u.cycleID, "assets", len(u.snaps.Items))
			s.updateState(ctx, func(st *gobs.PublisherState) {
				st.LastAttempt = u.at
				st.LastSuccess = u.at
				st.LastError = ""
				st.NumPublished++
				st.OutageNoticeSent = false
			})
			s.metrics.lastSuccessTS.Set(float64(u.at.Unix()))
			return
		}
	}

	slog.Error("could not publish price update", "cycle", u.cycleID, "err", err)

	noticeSent := false
	s.updateState(ctx, func(st *gobs.PublisherState) {
		st.LastAttempt = u.at
		st.LastError = err.Error()
		st.NumFailed++
		noticeSent = st.OutageNoticeSent
	})
	if noticeSent {
		return
	}

	if err := s.send(ctx, "notice", message.Unavailable(u.at, err)); err != nil {
		slog.Error("could not send outage notice (ignored)", "cycle", u.cycleID, "err", err)
		return
	}
	s.updateState(ctx, func(st *gobs.PublisherState) {
		st.OutageNoticeSent = true
	})
}

func (s *Server) send(ctx context.Context, kind, text string) error {
	pctx, pcancel := context.WithTimeout(ctx, s.opts.PublishTimeout)
	defer pcancel()

	if err := s.messenger.SendHTML(pctx, s.opts.ChannelID, text); err != nil {
		s.metrics.publishTotal.WithLabelValues(kind, "failed").Inc()
		return err
	}
	s.metrics.publishTotal.WithLabelValues(kind, "ok").Inc()
	return nil
}

// updateState modifies the publisher state and saves it to the database.
func (s *Server) updateState(ctx context.Context, modify func(*gobs.PublisherState)) {
	s.stateMu.Lock()
	modify(s.state)
	state := *s.state
	s.stateMu.Unlock()

	if err := kvutil.SetDB(ctx, s.db, PublisherStateKey, &state); err != nil {
		slog.Error("could not save publisher state (ignored)", "err", err)
	}
}

// State returns a copy of the publisher state.
func (s *Server) State() *gobs.PublisherState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	state := *s.state
	return &state
}

// Health returns an error when the most recent update cycle failed.
func (s *Server) Health() error {
	st := s.State()
	if st.LastAttempt.IsZero() || !st.LastAttempt.After(st.LastSuccess) {
		return nil
	}
	return fmt.Errorf("price update failed at %s: %s", st.LastAttempt.UTC().Format(time.RFC3339), st.LastError)
}
