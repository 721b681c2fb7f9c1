package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/observability"
)

// ReporterWorker periodically logs a stats snapshot (counters plus process
// RSS/CPU). Purely observational; losing a tick is harmless.
type ReporterWorker struct {
	log      *slog.Logger
	monitor  *observability.Monitor
	interval time.Duration
}

func NewReporterWorker(log *slog.Logger, monitor *observability.Monitor, interval time.Duration) *ReporterWorker {
	return &ReporterWorker{log: log, monitor: monitor, interval: interval}
}

func (w *ReporterWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats := w.monitor.Snapshot()
			w.log.Info("stats",
				"sent", stats.MessagesSent,
				"edited", stats.MessagesEdited,
				"deleted", stats.MessagesDeleted,
				"published", stats.EventsPublished,
				"delivered", stats.EventsDelivered,
				"dropped", stats.EventsDropped,
				"pruned", stats.SinksPruned,
				"subscriptions", stats.Subscriptions,
				"rss_bytes", stats.RSSBytes,
				"cpu_percent", stats.CPUPercent,
			)
		}
	}
}
