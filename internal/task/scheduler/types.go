package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"valubot/pkg/logx"
)

var (
	ErrUnknownSchedule = errors.New("scheduler: unknown schedule")
	ErrAlreadyRunning  = errors.New("scheduler: previous run still in progress")
	ErrNotStarted      = errors.New("scheduler: not started")
)

const (
	defaultTimeout = 5 * time.Minute
	historyMax     = 50
)

type Config struct {
	// Timezone is an IANA name, e.g. "Europe/Moscow". Empty means local time.
	Timezone       string
	DefaultTimeout time.Duration
}

type scheduleDef struct {
	name    string
	spec    string
	timeout time.Duration
	job     func(ctx context.Context) error
	entryID cron.EntryID

	running atomic.Bool
	runs    atomic.Uint64
	skips   atomic.Uint64

	mu      sync.Mutex
	lastRun time.Time
	lastErr string
}

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	cfg    Config
	loc    *time.Location
	parser cron.Parser
	c      *cron.Cron
	defs   map[string]*scheduleDef
	order  []string

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	skipMu   sync.Mutex
	lastSkip map[string]time.Time

	hmu     sync.Mutex
	history []HistoryItem
}

type ScheduleInfo struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Next    time.Time
	Prev    time.Time
	Running bool
	Runs    uint64
	Skips   uint64
	LastRun time.Time
	LastErr string
}

type HistoryItem struct {
	Name    string
	Started time.Time
	Took    time.Duration
	Err     string
}

type Snapshot struct {
	Running   bool
	Timezone  string
	Schedules []ScheduleInfo
	History   []HistoryItem
}
