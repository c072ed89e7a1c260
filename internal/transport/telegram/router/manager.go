package router

import (
	"context"
	"runtime"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/xid"

	"valubot/internal/runtime/supervisor"
	"valubot/internal/transport"
	"valubot/pkg/logx"
	"valubot/pkg/tgui"
)

const (
	defaultTimeout = 30 * time.Second
	jobQueueSize   = 256
)

// Texts the router answers with on its own.
const (
	textUnknownCommand = "Unknown command. Try /help"
	textUnauthorized   = "⛔ This command is for operators only."
	textBusy           = "⏳ Busy, try again in a moment."
	textForbidden      = "forbidden"
)

type Option func(*CommandManager)

func WithClock(c clockwork.Clock) Option { return func(m *CommandManager) { m.clock = c } }

// WithWorkers overrides the worker count (default NumCPU, at least 2).
func WithWorkers(n int) Option { return func(m *CommandManager) { m.workers = n } }

func WithConversationTTL(d time.Duration) Option { return func(m *CommandManager) { m.convTTL = d } }

type CommandManager struct {
	mu       sync.RWMutex
	commands map[string]*Command
	ordered  []Command
	inputs   []InputRoute
	owners   []int64

	cbMu      sync.RWMutex
	callbacks map[string]map[string]CallbackRoute

	log     logx.Logger
	adapter transport.Adapter
	clock   clockwork.Clock
	conv    *Conversations
	convTTL time.Duration
	workers int

	runMu   sync.Mutex
	running bool
	sup     *supervisor.Supervisor

	jobs chan func()
}

func NewCommandManager(log logx.Logger, adapter transport.Adapter, owners []int64, opts ...Option) *CommandManager {
	if log.IsZero() {
		log = logx.Nop()
	}
	m := &CommandManager{
		commands:  map[string]*Command{},
		callbacks: map[string]map[string]CallbackRoute{},
		log:       log.With(logx.String("comp", "telegram.router")),
		adapter:   adapter,
		clock:     clockwork.NewRealClock(),
		owners:    slices.Clone(owners),
		jobs:      make(chan func(), jobQueueSize),
	}
	for _, o := range opts {
		o(m)
	}
	if m.workers <= 0 {
		m.workers = max(runtime.NumCPU(), 2)
	}
	m.conv = NewConversations(m.clock, m.convTTL)
	return m
}

// Conversations is the shared per-user input state.
func (m *CommandManager) Conversations() *Conversations { return m.conv }

// Supervisor returns the worker pool supervisor (nil when not running).
func (m *CommandManager) Supervisor() *supervisor.Supervisor {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if !m.running {
		return nil
	}
	return m.sup
}

// SetOwners swaps the operator list. Safe during hot-reload.
func (m *CommandManager) SetOwners(owners []int64) {
	m.mu.Lock()
	m.owners = slices.Clone(owners)
	m.mu.Unlock()
}

func (m *CommandManager) Owners() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.owners)
}

func (m *CommandManager) IsOwner(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(m.owners, id)
}

// SetRegistry installs every plugin's routes, replacing the previous set,
// and refreshes the platform command menu in the background.
func (m *CommandManager) SetRegistry(ctx context.Context, plugins ...Plugin) {
	var cmds []Command
	var inputs []InputRoute
	cbs := map[string]map[string]CallbackRoute{}
	for _, p := range plugins {
		cmds = append(cmds, p.Commands()...)
		inputs = append(inputs, p.Inputs()...)
		for _, r := range p.Callbacks() {
			ns, action := strings.TrimSpace(r.NS), strings.TrimSpace(r.Action)
			if ns == "" || action == "" || r.Handle == nil {
				continue
			}
			if cbs[ns] == nil {
				cbs[ns] = map[string]CallbackRoute{}
			}
			cbs[ns][action] = r
		}
	}
	cmds = append(cmds, m.helpCommand())

	index := map[string]*Command{}
	ordered := make([]Command, 0, len(cmds))
	for _, c := range cmds {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		ordered = append(ordered, c)
		cp := &ordered[len(ordered)-1]
		index[name] = cp
		for _, a := range c.Aliases {
			if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
				if _, taken := index[a]; !taken {
					index[a] = cp
				}
			}
		}
	}

	m.mu.Lock()
	m.commands, m.ordered, m.inputs = index, ordered, inputs
	m.mu.Unlock()
	m.cbMu.Lock()
	m.callbacks = cbs
	m.cbMu.Unlock()

	if up, ok := m.adapter.(transport.CommandMenuUpdater); ok {
		menu := buildMenuCommands(ordered)
		go func() {
			cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if err := up.UpdateMenuCommands(cctx, menu); err != nil {
				m.log.Warn("menu update failed", logx.Err(err))
			}
		}()
	}
}

// DispatchLoop routes updates until ctx ends or updates is closed.
func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan transport.Update) error {
	sup := supervisor.New(ctx,
		supervisor.WithLogger(m.log),
		supervisor.WithClock(m.clock),
		supervisor.WithCancelOnError(false),
	)
	jobs := m.jobs
	m.runMu.Lock()
	m.sup, m.running = sup, true
	m.runMu.Unlock()
	m.log.Info("dispatcher started", logx.Int("workers", m.workers), logx.Int("job_queue_cap", cap(jobs)))

	for i := range m.workers {
		sup.GoRestart("command.worker."+strconv.Itoa(i), func(c context.Context) error {
			m.worker(c, i, jobs)
			return c.Err()
		},
			supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			supervisor.WithPublishFirstError(true),
		)
	}

	defer func() {
		m.runMu.Lock()
		m.running = false
		m.runMu.Unlock()
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Stop(wctx)
		cancel()
		m.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			m.Route(ctx, up)
		}
	}
}

func (m *CommandManager) worker(ctx context.Context, idx int, jobs <-chan func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-jobs:
			func() {
				defer func() {
					if r := recover(); r != nil {
						m.log.Error("panic in command job", logx.Int("worker", idx), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
					}
				}()
				job()
			}()
		}
	}
}

func (m *CommandManager) enqueue(fn func()) bool {
	select {
	case m.jobs <- fn:
		return true
	default:
		return false
	}
}

// Route dispatches one update onto the worker pool.
func (m *CommandManager) Route(ctx context.Context, up transport.Update) {
	switch up.Kind {
	case transport.UpdateMessage:
		if up.Message != nil && !up.Message.IsGroup {
			m.routeMessage(ctx, up)
		}
	case transport.UpdateCallback:
		if up.Callback != nil {
			m.routeCallback(ctx, up)
		}
	}
}

func (m *CommandManager) newRequest(up transport.Update, kind string) *Request {
	rid := xid.New().String()
	req := &Request{Update: up, Command: kind, ReqID: rid, Adapter: m.adapter, Conv: m.conv}
	switch {
	case up.Message != nil:
		msg := up.Message
		req.Chat = transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}
		req.FromID, req.FromUsername, req.FromLang = msg.FromID, msg.FromUsername, msg.FromLang
		req.Text, req.Photo = msg.Text, msg.Photo
	case up.Callback != nil:
		cb := up.Callback
		req.Chat = transport.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID}
		req.FromID, req.FromUsername = cb.FromID, cb.FromUsername
		req.MessageID, req.CallbackID = cb.MessageID, cb.ID
	}
	req.IsOwner = m.IsOwner(req.FromID)
	req.Logger = m.log.With(
		logx.String("rid", rid),
		logx.Int64("chat_id", req.Chat.ChatID),
		logx.Int64("from_id", req.FromID),
		logx.String("cmd", kind),
	)
	return req
}

func (m *CommandManager) run(ctx context.Context, req *Request, h HandlerFunc, timeout time.Duration) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	final := Chain(h, MWPanicRecover(), MWRequestLog(), MWTimeout(timeout))
	if m.enqueue(func() {
		_ = final(ctx, req)
		if req.CallbackID != "" {
			_ = req.Answer(ctx, "")
		}
	}) {
		return
	}
	if req.CallbackID != "" {
		_ = req.Answer(ctx, textBusy)
		return
	}
	_ = req.ReplyText(ctx, textBusy)
}

// parseCommand splits "/name@bot arg1 arg2" into the lower-cased name and
// its arguments.
func parseCommand(text string) (string, []string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	fields := strings.Fields(text)
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}

func (m *CommandManager) routeMessage(ctx context.Context, up transport.Update) {
	text := strings.TrimSpace(up.Message.Text)
	if name, args, ok := parseCommand(text); ok && up.Message.Photo == nil {
		m.mu.RLock()
		cmd := m.commands[name]
		m.mu.RUnlock()
		if cmd == nil {
			req := m.newRequest(up, "/"+name)
			_ = req.ReplyText(ctx, textUnknownCommand)
			return
		}
		req := m.newRequest(up, cmd.Name)
		req.Args = args
		if cmd.Access == AccessOwnerOnly && !req.IsOwner {
			req.Logger.Warn("unauthorized command")
			_ = req.ReplyText(ctx, textUnauthorized)
			return
		}
		m.run(ctx, req, cmd.Handle, cmd.Timeout)
		return
	}

	m.mu.RLock()
	inputs := m.inputs
	m.mu.RUnlock()
	if len(inputs) == 0 {
		return
	}
	req := m.newRequest(up, "input")
	m.run(ctx, req, func(ctx context.Context, r *Request) error {
		for _, in := range inputs {
			if in.Access == AccessOwnerOnly && !r.IsOwner {
				continue
			}
			r.Command = "input:" + in.Name
			handled, err := runInput(ctx, in, r)
			if handled || err != nil {
				return err
			}
		}
		r.Logger.Debug("input not handled")
		return nil
	}, 0)
}

func runInput(ctx context.Context, in InputRoute, req *Request) (bool, error) {
	if in.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, in.Timeout)
		defer cancel()
	}
	return in.Handle(ctx, req)
}

func (m *CommandManager) routeCallback(ctx context.Context, up transport.Update) {
	cb := up.Callback
	ns, action, payload, ok := tgui.ParseData(cb.Data)
	if !ok {
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}
	m.cbMu.RLock()
	route, found := m.callbacks[ns][action]
	m.cbMu.RUnlock()
	if !found {
		m.log.Debug("unknown callback", logx.String("data", cb.Data))
		_ = m.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}

	req := m.newRequest(up, "cb:"+ns+":"+action)
	if route.Access == CallbackAccessOwnerOnly && !req.IsOwner {
		req.Logger.Warn("unauthorized callback")
		_ = req.Answer(ctx, textForbidden)
		return
	}
	m.run(ctx, req, func(ctx context.Context, r *Request) error {
		return route.Handle(ctx, r, payload)
	}, route.Timeout)
}
