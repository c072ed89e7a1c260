// Package app wires the bot together: config, logging, storage, the chat
// adapter, background services and the two chat plugins.
package app

import (
	"context"
	"strings"
	"time"

	"valubot/internal/analytics"
	"valubot/internal/config"
	"valubot/internal/eventbus"
	"valubot/internal/events"
	"valubot/internal/notifier"
	"valubot/internal/notifier/broadcast"
	"valubot/internal/reminder"
	"valubot/internal/runtime/supervisor"
	"valubot/internal/settings"
	"valubot/internal/storage"
	"valubot/internal/task/scheduler"
	"valubot/internal/transport"
	"valubot/internal/transport/telegram/adapter"
	"valubot/internal/transport/telegram/router"
	"valubot/internal/ui"
	"valubot/internal/valuation"
	"valubot/pkg/logx"
	"valubot/plugins/admin"
	"valubot/plugins/storefront"
)

const (
	defaultEnvFile = ".env"
	updatesBuffer  = 256
)

type App struct {
	cfgm    *config.Manager
	envFile string
	sup     *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store    *storage.DB
	settings *settings.Service
	mirror   *settings.Mirror
	adapter  *adapter.Adapter

	screens *ui.Storefront
	stats   *analytics.Aggregator
	notif   *notifier.Service
	alerts  *notifier.Alerts
	bcast   *broadcast.Service
	remind  *reminder.Scheduler
	sched   *scheduler.Service

	cmdm *router.CommandManager
	adm  *admin.Plugin
	shop *storefront.Plugin

	updates chan transport.Update
}

// NewApp loads the config and builds every component. envPath overrides
// the config's env_file; both empty means ".env".
func NewApp(ctx context.Context, cfgPath, envPath string) (*App, error) {
	bootLog := logx.NewConsole("INFO").With(logx.String("comp", "boot"))

	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	envFile := firstNonEmpty(envPath, cfg.EnvFile, defaultEnvFile)
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg); err != nil {
		bootLog.Warn("environment override ignored", logx.Err(err))
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	pollTimeout, err := config.Duration("telegram.poll_timeout", cfg.Telegram.PollTimeout, defaultPollTimeout)
	if err != nil {
		return nil, err
	}
	ad, err := adapter.New(adapter.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout}, bootLog)
	if err != nil {
		return nil, err
	}

	// Bootstrap with the Telegram sink off; applyLogging sets the target
	// before enabling it.
	baseLog := mapLoggingConfig(cfg)
	baseLog.Telegram.Enabled = false
	logSvc, log := logx.New(baseLog, logSender(ad))
	applyLogging(logSvc, cfg)
	appLog := log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			_ = store.Close()
		}
	}()

	set := settings.New(store, log)
	if err := set.Seed(ctx); err != nil {
		return nil, err
	}
	mirror := settings.NewMirror(envFile, set, log)
	if changed, err := mirror.SyncFromFile(ctx); err != nil {
		appLog.Warn(".env sync failed", logx.String("path", envFile), logx.Err(err))
	} else if len(changed) > 0 {
		appLog.Info("settings loaded from .env", logx.String("keys", strings.Join(changed, ",")))
	}
	set.SetMirror(mirror)

	loc, err := loadLocation(cfg.Report.Timezone)
	if err != nil {
		return nil, err
	}
	stats := analytics.New(store, analytics.WithLocation(loc))

	rec := events.NewRecorder(store, bus, log)
	val := valuation.NewService(store, valuation.NewGenerator(nil), log,
		valuation.WithResolver(ad), valuation.WithEvents(rec))
	screens := ui.NewStorefront(mapLinks(cfg))

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	nopts := []notifier.Option{notifier.WithBus(bus)}
	if ncfg.PersistDedup {
		nopts = append(nopts, notifier.WithDedupStore(store))
	}
	notif := notifier.New(ncfg, ad, log, nopts...)
	alerts := notifier.NewAlerts(notif, store, func() []int64 { return cfgm.Get().Telegram.OwnerUserIDs }, log)
	rec.OnRecorded(alerts.HandleRecorded)

	bcfg, err := mapBroadcastConfig(cfg)
	if err != nil {
		return nil, err
	}
	bcast := broadcast.New(bcfg, store, ad, log, broadcast.WithBus(bus))

	rcfg, err := mapReminderConfig(cfg)
	if err != nil {
		return nil, err
	}
	remind := reminder.New(store, set, ad, screens, rcfg, log, reminder.WithBus(bus))

	sched := scheduler.New(mapSchedulerConfig(cfg), log)

	cmdm := router.NewCommandManager(log, ad, cfg.Telegram.OwnerUserIDs)
	adm := admin.New(admin.Deps{
		Stats:     stats,
		Store:     store,
		Settings:  set,
		Reminders: remind,
		Broadcast: bcast,
		Jobs:      sched,
	}, log)
	shop := storefront.New(store, val, rec, screens, log)
	shop.SetManagerUsername(cfg.Telegram.ManagerUsername)

	a := &App{
		cfgm:     cfgm,
		envFile:  envFile,
		log:      appLog,
		logs:     logSvc,
		bus:      bus,
		store:    store,
		settings: set,
		mirror:   mirror,
		adapter:  ad,
		screens:  screens,
		stats:    stats,
		notif:    notif,
		alerts:   alerts,
		bcast:    bcast,
		remind:   remind,
		sched:    sched,
		cmdm:     cmdm,
		adm:      adm,
		shop:     shop,
		updates:  make(chan transport.Update, updatesBuffer),
	}
	if err := a.registerReports(cfg); err != nil {
		return nil, err
	}
	ok = true
	return a, nil
}

// registerReports (re)binds the operator report jobs to their schedules.
func (a *App) registerReports(cfg *config.Config) error {
	abandoned, daily := reportSpecs(cfg)
	if err := a.sched.AddSchedule(notifier.JobAbandonedCheck, abandoned, 0, a.alerts.AbandonedCheckJob(a.stats)); err != nil {
		return err
	}
	return a.sched.AddSchedule(notifier.JobDailyReport, daily, 0, a.alerts.DailyReportJob(a.stats))
}

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err is the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if err := config.ApplyEnv(cfg); err != nil {
			a.log.Warn("environment override ignored", logx.Err(err))
		}
		return validateConfig(cfg)
	})

	run := a.sup.Context()
	if err := a.adapter.Start(run, a.updates); err != nil {
		return err
	}
	a.cmdm.SetRegistry(run, a.adm, a.shop)

	if a.notif.Enabled() {
		a.notif.Start(run)
	}
	a.bcast.Start(run)
	a.sched.Start(run)

	a.sup.GoRestart("reminder", a.remind.Run)
	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	evs, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-evs:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.GoRestart("env.watch", a.mirror.Watch, supervisor.WithRestartBackoff(time.Second, time.Minute))

	a.log.Info("app started",
		logx.String("bot", a.adapter.Username()),
		logx.Int("owners", len(a.cfgm.Get().Telegram.OwnerUserIDs)),
		logx.String("storage", a.store.Driver()))
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
