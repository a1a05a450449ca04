// Copyright (c) 2025 BVK Chaitanya

package defaults

import (
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

func ServerPort() int {
	const defaultValue = 10100

	value := os.Getenv("PRICEBOT_SERVER_PORT")
	if len(value) == 0 {
		return defaultValue
	}

	port, err := strconv.ParseUint(value, 10, 16)
	if err != nil || port == 0 {
		slog.Warn("PRICEBOT_SERVER_PORT value must be a valid port number (ignored)", "value", value)
		return defaultValue
	}
	return int(port)
}

func DataDir() string {
	const fallbackValue = "."
	user, err := user.Current()
	if err != nil {
		slog.Warn("could not query for current user (using fallback data directory)", "err", err)
		return fallbackValue
	}
	if len(user.HomeDir) == 0 {
		slog.Warn("could not find home directory (using fallback data directory)")
		return fallbackValue
	}

	var defaultValue = filepath.Join(user.HomeDir, ".pricebot")
	value := os.Getenv("PRICEBOT_DATA_DIR")
	if len(value) == 0 {
		return defaultValue
	}

	if !filepath.IsAbs(value) {
		slog.Warn("PRICEBOT_DATA_DIR value must be an absolute path (ignored)", "value", value)
		return defaultValue
	}
	return value
}
