// Package broadcast delivers an operator message to every reachable user.
package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"valubot/internal/eventbus"
	"valubot/internal/runtime/supervisor"
	"valubot/internal/transport"
	"valubot/pkg/logx"
)

// ErrInfrastructure means the run could not start, as opposed to every
// recipient failing.
var ErrInfrastructure = errors.New("broadcast: infrastructure failure")

var ErrQueueFull = errors.New("broadcast: queue full")

const (
	DefaultDelay     = 50 * time.Millisecond
	DefaultQueueSize = 16
	DefaultStatusTTL = 24 * time.Hour
	statusMax        = 200
)

type Config struct {
	// Delay separates consecutive sends.
	Delay     time.Duration
	QueueSize int
	StatusTTL time.Duration
}

// Message is text, or a photo with Text as its caption.
type Message struct {
	Text    string
	Photo   *transport.Photo
	Options *transport.SendOptions
}

type Result struct {
	Total   int
	Success int
	Blocked int
	Failed  int
}

type JobStatus struct {
	ID        string
	Result    Result
	Done      int
	Err       string
	CreatedAt time.Time
	StartedAt time.Time
	DoneAt    time.Time
	Running   bool
}

// Finished reports whether the job has completed or was dropped.
func (s JobStatus) Finished() bool { return !s.DoneAt.IsZero() }

type Store interface {
	ActiveUserIDs(ctx context.Context) ([]int64, error)
	MarkBlocked(ctx context.Context, id int64) (bool, error)
}

type job struct {
	id     string
	msg    Message
	onDone func(JobStatus)
}

type Service struct {
	mu sync.Mutex

	cfg    Config
	store  Store
	sender transport.Sender
	bus    eventbus.Bus
	clock  clockwork.Clock
	log    logx.Logger

	queue chan job
	sup   *supervisor.Supervisor

	statusMu sync.RWMutex
	status   map[string]*JobStatus
}
