package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  owner_user_ids: [1001, 1002]
  manager_url: "https://t.me/manager"
  manager_username: "manager"
storage:
  driver: sqlite
  path: ./bot.db
reminder:
  tick: 30s
report:
  timezone: Europe/Moscow
  daily_spec: "0 9 * * *"
`

func TestDecodeYAML(t *testing.T) {
	cfg, err := Decode("config.yaml", []byte(sampleYAML))
	require.NoError(t, err)

	want := TelegramConfig{
		Token:           "123:abc",
		OwnerUserIDs:    []int64{1001, 1002},
		ManagerURL:      "https://t.me/manager",
		ManagerUsername: "manager",
	}
	if diff := cmp.Diff(want, cfg.Telegram); diff != "" {
		t.Fatalf("telegram mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "30s", cfg.Reminder.Tick)
	assert.Nil(t, cfg.Notifier)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode("config.json", []byte(`{"telegram":{"token":"x"},"pprof":{}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pprof")
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	_, err := Decode("config.json", []byte(`{} {}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trailing")
}

func TestDuration(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{raw: "", want: time.Minute},
		{raw: "0s", want: time.Minute},
		{raw: " 45s ", want: 45 * time.Second},
		{raw: "-1s", wantErr: true},
		{raw: "soon", wantErr: true},
	}
	for _, tt := range tests {
		got, err := Duration("reminder.tick", tt.raw, time.Minute)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvBotToken, "999:env")
	t.Setenv(EnvAdminID, "1002")

	cfg := &Config{Telegram: TelegramConfig{Token: "file", OwnerUserIDs: []int64{1001, 1002}}}
	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, "999:env", cfg.Telegram.Token)
	assert.Equal(t, []int64{1001, 1002}, cfg.Telegram.OwnerUserIDs)

	t.Setenv(EnvAdminID, "2000")
	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, []int64{1001, 1002, 2000}, cfg.Telegram.OwnerUserIDs)

	t.Setenv(EnvAdminID, "admin")
	assert.Error(t, ApplyEnv(cfg))
}

func TestLoadEnvFileMissingIsFine(t *testing.T) {
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), ".env")))
}

func TestSummarizeChangeHidesSecrets(t *testing.T) {
	oldCfg := &Config{Telegram: TelegramConfig{Token: "a"}}
	newCfg := &Config{
		Telegram: TelegramConfig{Token: "b"},
		Storage:  StorageConfig{Driver: "postgres", DSN: "postgres://secret"},
	}
	changed, _ := SummarizeChange(oldCfg, newCfg)
	assert.Equal(t, []string{"storage"}, changed)
}

func TestWatchPublishesReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"telegram":{"token":"a"}}`), 0o644))

	m := NewManager(path)
	_, err := m.Load()
	require.NoError(t, err)
	ch := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`{"telegram":{"token":"b"}}`), 0o644))
	select {
	case cfg := <-ch:
		assert.Equal(t, "b", cfg.Telegram.Token)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload published")
	}
	assert.Equal(t, "b", m.Get().Telegram.Token)
}
