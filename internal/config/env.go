package config

import (
	"errors"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvBotToken = "BOT_TOKEN"
	EnvAdminID  = "ADMIN_ID"
)

// LoadEnvFile exports the file's variables into the process environment
// without overriding ones already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ApplyEnv lets BOT_TOKEN replace telegram.token and ADMIN_ID add an
// operator. Malformed ADMIN_ID values are reported and ignored.
func ApplyEnv(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	if tok := strings.TrimSpace(os.Getenv(EnvBotToken)); tok != "" {
		cfg.Telegram.Token = tok
	}
	raw := strings.TrimSpace(os.Getenv(EnvAdminID))
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return errors.New("config: ADMIN_ID must be a positive integer")
	}
	if !slices.Contains(cfg.Telegram.OwnerUserIDs, id) {
		cfg.Telegram.OwnerUserIDs = append(cfg.Telegram.OwnerUserIDs, id)
	}
	return nil
}
