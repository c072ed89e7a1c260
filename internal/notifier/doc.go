// Package notifier delivers operator alerts asynchronously.
//
// Alerts are small, high-signal messages for operators: a new user, an
// order, a spike in abandoned checkouts, the daily report. A Service
// queues them and a worker pool sends them through a transport.Sender
// with a shared rate limit, jittered retries and a content dedup window
// that can survive restarts through storage.
//
// # Alerts
//
// Alerts decides which operators get which message. It reads each
// operator's notification settings and enqueues one notification per
// operator, so a failure for one never holds back the others. It also
// listens on the event bus and turns recorded first_start and
// successful_order events into new-user and order alerts.
package notifier
