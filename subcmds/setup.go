// Copyright (c) 2025 BVK Chaitanya

package subcmds

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/bvk/pricebot/coingecko"
	"github.com/bvk/pricebot/server"
	"github.com/bvk/pricebot/subcmds/cmdutil"
	"github.com/bvk/pricebot/telegram"
	"github.com/bvkgo/kv/kvmemdb"
	"github.com/visvasity/cli"
	"golang.org/x/term"
)

type Setup struct {
	cmdutil.DataFlags

	skipTesting bool
}

func (c *Setup) Purpose() string {
	return "Prints and/or configures the price bot secrets"
}

func (c *Setup) Command() (string, *flag.FlagSet, cli.CmdFunc) {
	fset := flag.NewFlagSet("setup", flag.ContinueOnError)
	c.DataFlags.SetFlags(fset)
	fset.BoolVar(&c.skipTesting, "skip-testing", false, "don't test the parameters")
	return "setup", fset, cli.CmdFunc(c.run)
}

func (c *Setup) Description() string {
	return `

Command "setup" helps users configure the Telegram bot token, the destination
channel and the optional CoinGecko API key. Command prints current config when
run without any arguments.

TELEGRAM PARAMETERS

Telegram bot token is created with the @BotFather and the bot must be an admin
of the destination channel. They can be configured as follows:

  $ pricebot setup telegram-token=123456:ABC-DEF... channel-id=@mychannel

Bot token is read from the terminal when the "telegram-token" value is empty.

COINGECKO PARAMETERS

CoinGecko API key is optional. Public API is used without a key. Keys for the
paid plans also need the "coingecko-pro=true" parameter.

  $ pricebot setup coingecko-key=CG-... coingecko-pro=false
`
}

func (c *Setup) run(ctx context.Context, args []string) error {
	fpath, err := c.SecretsPath()
	if err != nil {
		return err
	}
	secrets, err := server.SecretsFromFile(fpath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if len(args) == 0 {
			return fmt.Errorf("pricebot is not configured")
		}
	}

	if len(args) == 0 {
		js, _ := json.MarshalIndent(redacted(secrets), "", "  ")
		fmt.Fprintf(cli.Stdout(ctx), "%s\n", js)
		return nil
	}

	if secrets == nil {
		secrets = new(server.Secrets)
	}

	validKeys := []string{"telegram-token", "channel-id", "coingecko-key", "coingecko-pro"}
	kvMap := make(map[string]string)
	for _, arg := range args {
		before, after, found := strings.Cut(arg, "=")
		if !found {
			return fmt.Errorf("invalid config argument %q", arg)
		}
		if !slices.Contains(validKeys, before) {
			return fmt.Errorf("invalid/unrecognized config item key %q", before)
		}
		if v, ok := kvMap[before]; ok && v != after {
			return fmt.Errorf("config item key %q is found with different values", before)
		}
		kvMap[before] = after
	}

	token, hasToken := kvMap["telegram-token"]
	channel, hasChannel := kvMap["channel-id"]
	if hasToken || hasChannel {
		tsecrets := new(telegram.Secrets)
		if secrets.Telegram != nil {
			tsecrets = secrets.Telegram.Clone()
		}
		if hasToken {
			if len(token) == 0 {
				if token, err = readSecret("Telegram bot token: "); err != nil {
					return err
				}
			}
			tsecrets.BotToken = token
		}
		if hasChannel {
			tsecrets.ChannelID = channel
		}
		if err := tsecrets.Check(); err != nil {
			return err
		}
		if !c.skipTesting {
			if err := testTelegram(ctx, tsecrets); err != nil {
				return err
			}
		}
		secrets.Telegram = tsecrets
	}

	key, hasKey := kvMap["coingecko-key"]
	pro, hasPro := kvMap["coingecko-pro"]
	if hasKey || hasPro {
		creds := new(coingecko.Credentials)
		if secrets.CoinGecko != nil {
			*creds = *secrets.CoinGecko
		}
		if hasKey {
			creds.APIKey = key
		}
		if hasPro {
			switch strings.ToLower(pro) {
			case "true", "yes", "1":
				creds.Pro = true
			case "false", "no", "0", "":
				creds.Pro = false
			default:
				return fmt.Errorf("coingecko-pro value %q must be a boolean: %w", pro, os.ErrInvalid)
			}
		}
		if len(creds.APIKey) == 0 {
			creds = nil
		}
		if !c.skipTesting {
			// Attempt a ping to validate the key.
			client, err := coingecko.New(creds, nil /* opts */)
			if err != nil {
				return err
			}
			if err := client.Ping(ctx); err != nil {
				return fmt.Errorf("could not verify coingecko api key: %w", err)
			}
		}
		secrets.CoinGecko = creds
	}

	js, err := json.MarshalIndent(secrets, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(fpath, js, os.FileMode(0600)); err != nil {
		return err
	}
	return nil
}

func testTelegram(ctx context.Context, secrets *telegram.Secrets) error {
	client, err := telegram.New(ctx, kvmemdb.New(), secrets, nil /* opts */)
	if err != nil {
		return fmt.Errorf("could not verify telegram bot token: %w", err)
	}
	defer client.Close()

	msg := "Test message from pricebot setup; please ignore."
	if err := client.SendHTML(ctx, client.ChannelID(), msg); err != nil {
		return fmt.Errorf("could not send test message to channel %q (is the bot an admin?): %w", secrets.ChannelID, err)
	}
	return nil
}

func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal to read the secret: %w", os.ErrInvalid)
	}
	fmt.Fprint(os.Stderr, prompt)
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("could not read the secret: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// redacted returns a copy of the secrets with the keys partially hidden.
func redacted(s *server.Secrets) *server.Secrets {
	v := new(server.Secrets)
	if s.Telegram != nil {
		v.Telegram = s.Telegram.Clone()
		v.Telegram.BotToken = mask(v.Telegram.BotToken)
	}
	if s.CoinGecko != nil {
		v.CoinGecko = &coingecko.Credentials{
			APIKey: mask(s.CoinGecko.APIKey),
			Pro:    s.CoinGecko.Pro,
		}
	}
	return v
}

func mask(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
