// Package observability aggregates runtime counters for logs and the debug
// endpoint. It observes; it never participates in domain logic.
package observability

import (
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Stats is one point-in-time snapshot for the reporter and /debug/stats.
type Stats struct {
	MessagesSent    uint64  `json:"messages_sent"`
	MessagesEdited  uint64  `json:"messages_edited"`
	MessagesDeleted uint64  `json:"messages_deleted"`
	EventsPublished uint64  `json:"events_published"`
	EventsDelivered uint64  `json:"events_delivered"`
	EventsDropped   uint64  `json:"events_dropped"`
	SinksPruned     uint64  `json:"sinks_pruned"`
	Subscriptions   int64   `json:"subscriptions"`
	AllocMemMb      uint64  `json:"alloc_mem_mb"`
	NumGC           uint32  `json:"num_gc"`
	RSSBytes        uint64  `json:"rss_bytes"`
	CPUPercent      float64 `json:"cpu_percent"`
	CollectedAt     string  `json:"collected_at"`
}

// Monitor holds atomic counters shared by the gateway and the broker.
type Monitor struct {
	log *slog.Logger
	pid *process.Process

	messagesSent    atomic.Uint64
	messagesEdited  atomic.Uint64
	messagesDeleted atomic.Uint64
	eventsPublished atomic.Uint64
	eventsDelivered atomic.Uint64
	eventsDropped   atomic.Uint64
	sinksPruned     atomic.Uint64
	subscriptions   atomic.Int64
}

func NewMonitor(log *slog.Logger) *Monitor {
	m := &Monitor{log: log}
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		// Self-stats become zero; counters still work.
		log.Warn("process handle unavailable, self stats disabled", "error", err)
	} else {
		m.pid = p
	}
	return m
}

func (m *Monitor) IncrMessagesSent()    { m.messagesSent.Add(1) }
func (m *Monitor) IncrMessagesEdited()  { m.messagesEdited.Add(1) }
func (m *Monitor) IncrMessagesDeleted() { m.messagesDeleted.Add(1) }
func (m *Monitor) IncrEventsPublished() { m.eventsPublished.Add(1) }
func (m *Monitor) IncrEventsDelivered() { m.eventsDelivered.Add(1) }
func (m *Monitor) IncrEventsDropped()   { m.eventsDropped.Add(1) }
func (m *Monitor) IncrSinksPruned()     { m.sinksPruned.Add(1) }
func (m *Monitor) AddSubscriptions(n int64) {
	m.subscriptions.Add(n)
}

// Snapshot collects counters plus process self-stats (RSS, CPU) via gopsutil.
func (m *Monitor) Snapshot() Stats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stats := Stats{
		MessagesSent:    m.messagesSent.Load(),
		MessagesEdited:  m.messagesEdited.Load(),
		MessagesDeleted: m.messagesDeleted.Load(),
		EventsPublished: m.eventsPublished.Load(),
		EventsDelivered: m.eventsDelivered.Load(),
		EventsDropped:   m.eventsDropped.Load(),
		SinksPruned:     m.sinksPruned.Load(),
		Subscriptions:   m.subscriptions.Load(),
		AllocMemMb:      mem.Alloc / 1024 / 1024,
		NumGC:           mem.NumGC,
		CollectedAt:     time.Now().UTC().Format(time.RFC3339),
	}

	if m.pid != nil {
		if memInfo, err := m.pid.MemoryInfo(); err == nil {
			stats.RSSBytes = memInfo.RSS
		}
		if cpu, err := m.pid.CPUPercent(); err == nil {
			stats.CPUPercent = cpu
		}
	}
	return stats
}
