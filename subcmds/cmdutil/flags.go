// Copyright (c) 2023 BVK Chaitanya

// Package cmdutil has the command-line flags shared by the subcommands.
package cmdutil

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"

	"github.com/bvk/pricebot/asset"
	"github.com/bvk/pricebot/coingecko"
	"github.com/bvk/pricebot/envfile"
	"github.com/bvk/pricebot/pricefeed"
	"github.com/bvk/pricebot/server"
	"github.com/bvk/pricebot/subcmds/defaults"
)

type ServerFlags struct {
	Port int
	IP   string
}

func (sf *ServerFlags) SetFlags(fset *flag.FlagSet) {
	fset.IntVar(&sf.Port, "listen-port", defaults.ServerPort(), "TCP port number for the metrics and health endpoints")
	fset.StringVar(&sf.IP, "listen-ip", "127.0.0.1", "TCP ip address for the metrics and health endpoints")
}

func (sf *ServerFlags) TCPAddr() (*net.TCPAddr, error) {
	ip := net.ParseIP(sf.IP)
	if ip == nil {
		return nil, fmt.Errorf("invalid ip address %q: %w", sf.IP, os.ErrInvalid)
	}
	if sf.Port <= 0 || sf.Port > 65535 {
		return nil, fmt.Errorf("invalid port number %d: %w", sf.Port, os.ErrInvalid)
	}
	return &net.TCPAddr{IP: ip, Port: sf.Port}, nil
}

// DataFlags locate the configuration and the persistent state.
type DataFlags struct {
	dataDir     string
	secretsPath string
	envFile     string
	assetsFile  string
}

func (f *DataFlags) SetFlags(fset *flag.FlagSet) {
	fset.StringVar(&f.dataDir, "data-dir", "", "path to the data directory (default ~/.pricebot or PRICEBOT_DATA_DIR value)")
	fset.StringVar(&f.secretsPath, "secrets-file", "", "path to the secrets file (default secrets.json in the data directory)")
	fset.StringVar(&f.envFile, "env-file", "", "path to an env file with TELEGRAM_TOKEN, CHANNEL_ID, etc. (default .env in the current directory, if any)")
	fset.StringVar(&f.assetsFile, "assets-file", "", "path to a yaml file with the assets (default is the built-in list)")
}

// LoadEnv updates the process environment from the env file.
func (f *DataFlags) LoadEnv() error {
	opts := []envfile.Option{
		envfile.OnlyKeys(server.TelegramTokenEnv, server.ChannelIDEnv, server.CoinGeckoAPIKeyEnv, "PRICEBOT_DATA_DIR"),
	}
	if len(f.envFile) != 0 {
		opts = append(opts, envfile.FilePath(f.envFile))
	} else {
		opts = append(opts, envfile.SearchCurrentDir(false))
	}
	keys, err := envfile.UpdateEnv(".env", opts...)
	if err != nil {
		return fmt.Errorf("could not load env file: %w", err)
	}
	if len(keys) != 0 {
		slog.Info("loaded environment variables from env file", "keys", keys)
	}
	return nil
}

// DataDir returns the absolute path to the data directory. It is created if
// it doesn't exist.
func (f *DataFlags) DataDir() (string, error) {
	if len(f.dataDir) == 0 {
		f.dataDir = defaults.DataDir()
	}
	if err := os.MkdirAll(f.dataDir, 0700); err != nil {
		return "", fmt.Errorf("could not create data directory %q: %w", f.dataDir, err)
	}
	dataDir, err := filepath.Abs(f.dataDir)
	if err != nil {
		return "", fmt.Errorf("could not determine data-dir %q absolute path: %w", f.dataDir, err)
	}
	return dataDir, nil
}

func (f *DataFlags) SecretsPath() (string, error) {
	if len(f.secretsPath) != 0 {
		return f.secretsPath, nil
	}
	dataDir, err := f.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, "secrets.json"), nil
}

// Secrets returns the secrets from the secrets file, if it exists, with the
// overrides from the environment. Secrets are not validated.
func (f *DataFlags) Secrets() (*server.Secrets, error) {
	fpath, err := f.SecretsPath()
	if err != nil {
		return nil, err
	}
	secrets, err := server.SecretsFromFile(fpath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) || len(f.secretsPath) != 0 {
			return nil, fmt.Errorf("could not load secrets file: %w", err)
		}
		secrets = new(server.Secrets)
	}
	secrets.UpdateFromEnv()
	return secrets, nil
}

func (f *DataFlags) AssetTable() (*asset.Table, error) {
	if len(f.assetsFile) == 0 {
		return asset.Default(), nil
	}
	return asset.LoadFile(f.assetsFile)
}

// NewFeed creates a price feed for the configured assets.
func (f *DataFlags) NewFeed(secrets *server.Secrets) (*pricefeed.Feed, error) {
	table, err := f.AssetTable()
	if err != nil {
		return nil, err
	}
	client, err := coingecko.New(secrets.CoinGecko, nil /* opts */)
	if err != nil {
		return nil, fmt.Errorf("could not create coingecko client: %w", err)
	}
	return pricefeed.New(table, client, "usd")
}
