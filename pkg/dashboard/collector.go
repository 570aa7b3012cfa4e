package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/lumi-ai/lumi/pkg/plugins"
)

// DefaultSchedule collects every 30 seconds.
const DefaultSchedule = "@every 30s"

// Source is the part of the plugin manager the collector reads.
type Source interface {
	DispatchDashboardUpdate(ctx context.Context) []plugins.Metrics
	PluginInfo() []plugins.Info
}

// Snapshot is one collection pass.
type Snapshot struct {
	CollectedAt   time.Time         `json:"collected_at"`
	PluginMetrics []plugins.Metrics `json:"plugin_metrics"`
	PluginInfo    []plugins.Info    `json:"plugin_info"`
}

// Collector runs Collect on a cron schedule.
type Collector struct {
	source   Source
	schedule string
	log      *logrus.Logger
	now      func() time.Time

	mu     sync.RWMutex
	latest Snapshot
}

// NewCollector validates schedule and returns a collector. An empty
// schedule means DefaultSchedule.
func NewCollector(source Source, schedule string, log *logrus.Logger) (*Collector, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid dashboard schedule %q: %w", schedule, err)
	}
	if log == nil {
		log = logrus.New()
	}

	return &Collector{
		source:   source,
		schedule: schedule,
		log:      log,
		now:      time.Now,
	}, nil
}

// Collect gathers metrics and plugin info now and stores the result.
func (c *Collector) Collect(ctx context.Context) Snapshot {
	snap := Snapshot{
		CollectedAt:   c.now().UTC(),
		PluginMetrics: c.source.DispatchDashboardUpdate(ctx),
		PluginInfo:    c.source.PluginInfo(),
	}

	c.mu.Lock()
	c.latest = snap
	c.mu.Unlock()

	c.log.WithField("plugins", len(snap.PluginMetrics)).Debug("Collected dashboard metrics")
	return snap
}

// Snapshot returns the latest collection. It is zero before the first one.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}

// Run collects once, then on schedule until ctx is done. It waits for a
// running collection before returning.
func (c *Collector) Run(ctx context.Context) error {
	c.Collect(ctx)

	sched := cron.New(cron.WithChain(cron.Recover(cronLogger{c.log})))
	if _, err := sched.AddFunc(c.schedule, func() { c.Collect(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule dashboard collection: %w", err)
	}

	sched.Start()
	c.log.WithField("schedule", c.schedule).Info("Dashboard collector started")

	<-ctx.Done()

	<-sched.Stop().Done()
	c.log.Info("Dashboard collector stopped")
	return nil
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	log *logrus.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).WithError(err).Error(msg)
}

func fields(kv []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}
