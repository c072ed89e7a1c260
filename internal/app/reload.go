package app

import (
	"context"
	"slices"
	"strings"
	"time"

	"valubot/internal/config"
	"valubot/internal/eventbus"
	"valubot/pkg/logx"
)

const serviceToggleTimeout = 3 * time.Second

// reloadLoop applies committed configs to the running components. Bursts
// are coalesced so only the newest config is applied.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			next = drainLatest(sub, next)
			if next == nil {
				continue
			}
			a.applyConfig(ctx, last, next)
			last = next
		}
	}
}

func drainLatest(sub chan *config.Config, cur *config.Config) *config.Config {
	for {
		select {
		case newer, ok := <-sub:
			if !ok {
				return cur
			}
			if newer != nil {
				cur = newer
			}
		default:
			return cur
		}
	}
}

func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	changed := logx.String("changed", strings.Join(sections, ","))
	a.log.Debug("config change summary", append([]logx.Field{changed}, attrs...)...)

	if slices.Contains(sections, "storage") {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}
	if slices.Contains(sections, "env_file") {
		a.log.Warn("env_file changed; restart required to mirror the new file", logx.String("active", a.envFile))
	}
	if prev.Telegram.Token != next.Telegram.Token {
		a.log.Warn("telegram token changed; restart required")
	}
	if prev.Telegram.PollTimeout != next.Telegram.PollTimeout {
		a.log.Warn("telegram.poll_timeout changed; restart required")
	}

	applyLogging(a.logs, next)
	a.cmdm.SetOwners(next.Telegram.OwnerUserIDs)
	a.screens.SetLinks(mapLinks(next))
	a.shop.SetManagerUsername(next.Telegram.ManagerUsername)

	if ncfg, err := mapNotifierConfig(next); err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		wasEnabled := a.notif.Enabled()
		a.notif.Apply(ncfg)
		switch {
		case wasEnabled && !ncfg.Enabled:
			a.log.Info("notifier disabled via config")
			stopCtx, cancel := context.WithTimeout(ctx, serviceToggleTimeout)
			a.notif.Stop(stopCtx)
			cancel()
		case !wasEnabled && ncfg.Enabled:
			a.log.Info("notifier enabled via config")
			a.notif.Start(ctx)
		}
	}

	if rcfg, err := mapReminderConfig(next); err != nil {
		a.log.Warn("invalid reminder config; keeping previous", logx.Err(err))
	} else {
		a.remind.Apply(rcfg)
	}
	if bcfg, err := mapBroadcastConfig(next); err != nil {
		a.log.Warn("invalid broadcast config; keeping previous", logx.Err(err))
	} else {
		a.bcast.Apply(bcfg)
	}

	if slices.Contains(sections, "report") {
		a.sched.Apply(mapSchedulerConfig(next))
		if err := a.registerReports(next); err != nil {
			a.log.Warn("report schedules not updated", logx.Err(err))
		}
		if prev.Report.Timezone != next.Report.Timezone {
			a.log.Warn("report.timezone changed; statistics use the new timezone after restart")
		}
	}

	a.bus.Publish(eventbus.Event{Type: eventbus.TopicConfigReloaded, Time: time.Now(), Data: sections})
	a.log.Info("config reloaded", append([]logx.Field{changed}, attrs...)...)
}
