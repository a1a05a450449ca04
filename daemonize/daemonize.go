// Copyright (c) 2023 BVK Chaitanya

// Package daemonize restarts the current program as a background process.
package daemonize

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"log/syslog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/bvk/pricebot/ctxutil"
	"golang.org/x/sys/unix"
)

// CheckFunc verifies that the background process has initialized
// successfully. It is called repeatedly till it returns nil or the child
// process dies.
type CheckFunc func(ctx context.Context, child *os.Process) error

// IsChild returns true if the current process was started by Daemonize with
// the input environment key.
func IsChild(envKey string) bool {
	return len(os.Getenv(envKey)) != 0
}

// Daemonize respawns the current program in the background with the same
// command-line arguments and environment. The envKey environment variable
// tells the parent and child processes apart; it holds the parent's pid in the
// child. Daemonize must be called during startup, before opening databases or
// starting servers.
//
// Standard input and outputs of the background process are replaced with
// /dev/null and the standard library log is redirected to syslog.
//
// On success, the parent process exits with zero status and Daemonize returns
// nil in the child. When the child cannot be started, or it dies before the
// check function succeeds, Daemonize returns an error to the parent.
func Daemonize(ctx context.Context, envKey string, check CheckFunc) error {
	if !IsChild(envKey) {
		if err := daemonizeParent(ctx, envKey, check); err != nil {
			return err
		}
		os.Exit(0)
	}
	if err := daemonizeChild(); err != nil {
		slog.Error("could not initialize the background process", "err", err)
		os.Exit(1)
	}
	return nil
}

func daemonizeParent(ctx context.Context, envKey string, check CheckFunc) error {
	binary, err := exec.LookPath(os.Args[0])
	if err != nil {
		return fmt.Errorf("could not lookup binary: %w", err)
	}
	binaryPath, err := filepath.Abs(binary)
	if err != nil {
		return fmt.Errorf("could not determine absolute path for binary: %w", err)
	}

	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("could not open %s: %w", os.DevNull, err)
	}
	defer devnull.Close()

	// Receive signal when child-process dies.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGCHLD, os.Interrupt)
	defer stop()

	// Child needs the parent's environment for the secrets.
	env := append(os.Environ(), envKey+"="+strconv.Itoa(os.Getpid()))

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	attr := &os.ProcAttr{
		Dir:   cwd,
		Env:   env,
		Files: []*os.File{devnull, devnull, devnull},
	}
	child, err := os.StartProcess(binaryPath, os.Args, attr)
	if err != nil {
		return fmt.Errorf("could not start process: %w", err)
	}

	if check != nil {
		ctxutil.Sleep(ctx, time.Second)
		for ctx.Err() == nil {
			if err := check(ctx, child); err != nil {
				slog.Warn("background process not yet initialized", "pid", child.Pid, "err", err)
				ctxutil.Sleep(ctx, time.Second)
				continue
			}
			break
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("could not initialize the background process: %w", err)
	}
	slog.Info("started background process", "pid", child.Pid)
	return nil
}

func daemonizeChild() error {
	syslogger, err := syslog.New(syslog.LOG_INFO, "pricebot")
	if err != nil {
		return fmt.Errorf("could not create syslog: %w", err)
	}
	log.SetOutput(syslogger)

	if _, err := unix.Setsid(); err != nil {
		return fmt.Errorf("could not set session id: %w", err)
	}
	return nil
}
