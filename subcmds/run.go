// Copyright (c) 2023 BVK Chaitanya

package subcmds

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/bvk/pricebot/daemonize"
	"github.com/bvk/pricebot/httputil"
	"github.com/bvk/pricebot/server"
	"github.com/bvk/pricebot/subcmds/cmdutil"
	"github.com/bvk/pricebot/telegram"
	"github.com/bvkgo/kvbadger"
	"github.com/dgraph-io/badger/v4"
	"github.com/nightlyone/lockfile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/visvasity/cli"
	"github.com/visvasity/sglog"
)

const daemonizeEnvKey = "PRICEBOT_DAEMONIZE"

type Run struct {
	cmdutil.ServerFlags
	cmdutil.DataFlags

	background bool
	noHTTP     bool

	logDir string

	updateInterval time.Duration
	initialDelay   time.Duration
}

func (c *Run) Purpose() string {
	return "Runs the price bot in foreground or background"
}

func (c *Run) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("run", flag.ContinueOnError)
	c.ServerFlags.SetFlags(fset)
	c.DataFlags.SetFlags(fset)
	fset.BoolVar(&c.background, "background", false, "runs the bot in background")
	fset.BoolVar(&c.noHTTP, "no-http", false, "when true, metrics and health endpoints are not served")
	fset.StringVar(&c.logDir, "log-dir", "", "when non-empty, log messages are written to files in this directory")
	fset.DurationVar(&c.updateInterval, "update-interval", server.DefaultUpdateInterval, "time between the price updates to the channel")
	fset.DurationVar(&c.initialDelay, "initial-delay", server.DefaultInitialDelay, "time before the first price update")
	return "run", fset, cli.CmdFunc(c.run)
}

func (c *Run) Description() string {
	return `

Command "run" starts the price bot. It posts the latest crypto prices to the
configured Telegram channel periodically and answers /start, /prices and
/status commands from the users.

CONFIGURATION

Telegram bot token and the destination channel are read from the secrets file
(see "pricebot setup") and the TELEGRAM_TOKEN and CHANNEL_ID environment
variables. Environment values take precedence. Environment variables can also
be placed in a .env file:

    TELEGRAM_TOKEN=123456:ABC-DEF...
    CHANNEL_ID=@mychannel
    COINGECKO_API_KEY=CG-...

`
}

func (c *Run) run(ctx context.Context, args []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(args) != 0 {
		return fmt.Errorf("command takes no arguments: %w", os.ErrInvalid)
	}
	if c.background && c.noHTTP {
		return fmt.Errorf("background mode requires the http endpoints: %w", os.ErrInvalid)
	}

	if err := c.LoadEnv(); err != nil {
		return err
	}
	dataDir, err := c.DataDir()
	if err != nil {
		return err
	}
	secrets, err := c.Secrets()
	if err != nil {
		return err
	}
	if err := secrets.Check(); err != nil {
		return err
	}
	feed, err := c.NewFeed(secrets)
	if err != nil {
		return err
	}

	addr, err := c.TCPAddr()
	if err != nil {
		return err
	}

	// Health checker for the background process initialization. We need to
	// verify that responding http server is really our child and not an older
	// instance.
	check := func(ctx context.Context, child *os.Process) error {
		client := http.Client{Timeout: time.Second}
		resp, err := client.Get(fmt.Sprintf("http://%s/pid", addr.String()))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("http status: %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if pid := string(data); pid != strconv.Itoa(child.Pid) {
			return fmt.Errorf("is another instance already running? pid mismatch: want %d got %s", child.Pid, pid)
		}
		return nil
	}

	if c.background {
		if err := daemonize.Daemonize(ctx, daemonizeEnvKey, check); err != nil {
			return err
		}
	}

	if len(c.logDir) != 0 {
		if err := os.MkdirAll(c.logDir, 0700); err != nil {
			return fmt.Errorf("could not create log directory: %w", err)
		}
		backend := sglog.NewBackend(&sglog.Options{
			LogDirs:              []string{c.logDir},
			LogFileHeader:        true,
			LogFileReuseDuration: time.Hour,
		})
		defer backend.Close()
		slog.SetDefault(slog.New(backend.Handler()))
	}

	slog.Info("using data directory", "data-dir", dataDir, "assets", feed.Table().Len())

	lockPath := filepath.Join(dataDir, "pricebot.lock")
	flock, err := lockfile.New(lockPath)
	if err != nil {
		return fmt.Errorf("could not create lock file %q: %w", lockPath, err)
	}
	if err := flock.TryLock(); err != nil {
		return fmt.Errorf("could not get lock on file %q (is another instance running?): %w", lockPath, err)
	}
	defer flock.Unlock()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Open the database.
	bopts := badger.DefaultOptions(filepath.Join(dataDir, "db"))
	bopts.Logger = nil
	bdb, err := badger.Open(bopts)
	if err != nil {
		return fmt.Errorf("could not open the database: %w", err)
	}
	defer bdb.Close()
	db := kvbadger.New(bdb, isGoodKey)

	tclient, err := telegram.New(ctx, db, secrets.Telegram, nil /* opts */)
	if err != nil {
		return fmt.Errorf("could not create telegram client: %w", err)
	}
	defer tclient.Close()

	sopts := &server.Options{
		ChannelID:      tclient.ChannelID(),
		UpdateInterval: c.updateInterval,
		InitialDelay:   c.initialDelay,
		Registerer:     reg,
	}
	srv, err := server.New(ctx, db, feed, tclient, sopts)
	if err != nil {
		return err
	}
	defer srv.Close()

	if !c.noHTTP {
		hopts := &httputil.Options{
			HealthCheck: srv.Health,
		}
		hs, err := httputil.New(ctx, addr, hopts)
		if err != nil {
			return err
		}
		defer hs.Close()

		hs.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		slog.Info("started http server", "addr", hs.Addr())
	}

	if err := tclient.Start(ctx); err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}

	slog.Info("bot started successfully", "bot", tclient.BotUserName(), "channel", secrets.Telegram.ChannelID)
	<-ctx.Done()
	slog.Info("price bot is shutting down", "cause", context.Cause(ctx))
	return nil
}

func isGoodKey(k string) bool {
	return path.IsAbs(k) && k == path.Clean(k)
}
