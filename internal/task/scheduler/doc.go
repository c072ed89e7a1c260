// Package scheduler fires named jobs on cron expressions or fixed
// intervals in a configured timezone.
//
// Each job runs with its own timeout. A trigger that arrives while the
// previous run of the same job is still going is skipped.
package scheduler
