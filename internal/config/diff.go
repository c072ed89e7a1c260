package config

import (
	"reflect"
	"sort"
	"strings"

	"valubot/pkg/logx"
)

// SummarizeChange lists the changed sections and safe fields to log.
// Secrets (token, DSN) never appear in the fields.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		fields  []logx.Field
	)
	mark := func(section string, fs ...logx.Field) {
		changed = append(changed, section)
		fields = append(fields, fs...)
	}

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	ot.Token, nt.Token = "", ""
	if !reflect.DeepEqual(ot, nt) || (oldCfg.Telegram.Token == "") != (newCfg.Telegram.Token == "") {
		mark("telegram",
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.String("telegram.poll_timeout", strings.TrimSpace(nt.PollTimeout)),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(nt.GroupLog) != ""))
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		mark("logging",
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled))
	}
	oldS, newS := oldCfg.Storage, newCfg.Storage
	if oldS != newS {
		mark("storage",
			logx.String("storage.driver", newS.Driver),
			logx.Bool("storage.dsn_set", newS.DSN != ""),
			logx.Bool("storage.restart_required", true))
	}
	if oldCfg.Reminder != newCfg.Reminder {
		mark("reminder",
			logx.String("reminder.tick", newCfg.Reminder.Tick),
			logx.String("reminder.send_timeout", newCfg.Reminder.SendTimeout))
	}
	if oldCfg.Broadcast != newCfg.Broadcast {
		mark("broadcast", logx.String("broadcast.delay", newCfg.Broadcast.Delay))
	}
	on, nn := notifierOrDefault(oldCfg.Notifier), notifierOrDefault(newCfg.Notifier)
	if on != nn {
		mark("notifier",
			logx.Bool("notifier.enabled", nn.Enabled),
			logx.Int("notifier.workers", nn.Workers),
			logx.Int("notifier.rate_per_sec", nn.RatePerSec))
	}
	if oldCfg.Report != newCfg.Report {
		mark("report",
			logx.String("report.timezone", newCfg.Report.Timezone),
			logx.String("report.daily_spec", newCfg.Report.DailySpec),
			logx.String("report.abandoned_spec", newCfg.Report.AbandonedSpec))
	}
	if oldCfg.EnvFile != newCfg.EnvFile {
		mark("env_file", logx.String("env_file", newCfg.EnvFile))
	}

	sort.Strings(changed)
	return changed, fields
}

func notifierOrDefault(n *NotifierConfig) NotifierConfig {
	if n == nil {
		return DefaultNotifier()
	}
	return *n
}
