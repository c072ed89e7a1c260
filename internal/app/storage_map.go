package app

import (
	"fmt"
	"strings"
	"time"

	"valubot/internal/config"
	"valubot/internal/storage"
)

const defaultSQLitePath = "./data/valubot.db"

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg == nil {
		return storage.Config{Driver: storage.DriverSQLite, Path: defaultSQLitePath}, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	switch driver {
	case "", storage.DriverSQLite, "sqlite3":
		path := strings.TrimSpace(sc.Path)
		if path == "" {
			path = defaultSQLitePath
		}
		busy, err := config.Duration("storage.busy_timeout", sc.BusyTimeout, 5*time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: storage.DriverSQLite, Path: path, BusyTimeout: busy}, nil
	case storage.DriverPostgres, "postgresql", "pg":
		if strings.TrimSpace(sc.DSN) == "" {
			return storage.Config{}, fmt.Errorf("storage.dsn is required when storage.driver=%s", sc.Driver)
		}
		return storage.Config{Driver: storage.DriverPostgres, DSN: strings.TrimSpace(sc.DSN)}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}
