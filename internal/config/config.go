package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"meshmap/telegram-bot/internal/model"
)

// Config lists the tunable parameters for the marker bot.
type Config struct {
	BotToken     string
	DataFile     string
	LogStateFile string
	LogLevel     string
	FlowTimeout  time.Duration
	AdminIDs     []model.OwnerID
	SpecialIDs   []model.OwnerID
}

const (
	defaultDataFile     = "shared/markers.csv"
	defaultLogStateFile = "log_state.json"
	defaultLogLevel     = "info"
	defaultFlowTimeout  = 300 * time.Second
)

// Load derives configuration values from environment variables, falling back
// to defaults. The bot token is validated by the serve command, not here, so
// inspection commands work without one.
func Load() (Config, error) {
	cfg := Config{
		BotToken:     os.Getenv("MESHMAP_BOT_TOKEN"),
		DataFile:     defaultDataFile,
		LogStateFile: defaultLogStateFile,
		LogLevel:     defaultLogLevel,
		FlowTimeout:  defaultFlowTimeout,
	}

	if v := os.Getenv("MESHMAP_DATA_FILE"); v != "" {
		cfg.DataFile = v
	}

	if v := os.Getenv("MESHMAP_LOG_STATE_FILE"); v != "" {
		cfg.LogStateFile = v
	}

	if v := os.Getenv("MESHMAP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("MESHMAP_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			return Config{}, fmt.Errorf("invalid MESHMAP_TIMEOUT_SECONDS: %q", v)
		}
		cfg.FlowTimeout = time.Duration(secs) * time.Second
	}

	admins, err := parseIDList(os.Getenv("MESHMAP_ADMIN_IDS"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid MESHMAP_ADMIN_IDS: %w", err)
	}
	cfg.AdminIDs = admins

	special, err := parseIDList(os.Getenv("MESHMAP_SPECIAL_IDS"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid MESHMAP_SPECIAL_IDS: %w", err)
	}
	cfg.SpecialIDs = special

	return cfg, nil
}

// parseIDList reads a comma-separated list of numeric identities.
func parseIDList(v string) ([]model.OwnerID, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}

	var ids []model.OwnerID
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("identity %q is not numeric", part)
		}
		ids = append(ids, model.OwnerID(strconv.FormatInt(id, 10)))
	}
	return ids, nil
}

// IDSet turns an identity list into a membership set.
func IDSet(ids []model.OwnerID) map[model.OwnerID]struct{} {
	set := make(map[model.OwnerID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
