package builtin

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lumi-ai/lumi/pkg/plugins"
)

// Settings keys understood by the datetime extension.
const (
	SettingIncludeSeconds = "include_seconds"
	SettingTimeFormat     = "time_format"
	SettingDateFormat     = "date_format"
)

const (
	defaultDateFormat = "2006-01-02"
	timeWithSeconds   = "15:04:05"
	timeNoSeconds     = "15:04"
)

// Longer phrases are covered by these keywords; order does not matter.
var timeKeywords = []string{"time", "date", "day", "clock", "today", "now"}

// DateTime answers questions about the current time and date.
type DateTime struct {
	plugins.Base

	now func() time.Time

	mu        sync.Mutex
	processed int
}

// NewDateTime is the factory for the datetime extension.
func NewDateTime() plugins.Plugin {
	return &DateTime{now: time.Now}
}

func (d *DateTime) Initialize(ctx context.Context) error {
	d.Host().Logger().Info("DateTime plugin initialized")
	return nil
}

func (d *DateTime) Unload(ctx context.Context) error {
	d.Host().Logger().Info("DateTime plugin unloaded")
	return nil
}

// OnMessageReceived replaces time and date questions from the user with
// the answer. Other messages pass through.
func (d *DateTime) OnMessageReceived(ctx context.Context, message string, source plugins.Source) (string, bool, error) {
	d.mu.Lock()
	d.processed++
	d.mu.Unlock()

	log := d.Host().Logger().WithField("source", source)
	if source != plugins.SourceUser {
		log.Debug("Not a user message, skipping")
		return "", false, nil
	}

	lower := strings.ToLower(strings.TrimSpace(message))
	if !isTimeRelated(lower) {
		return "", false, nil
	}

	response := d.respond(lower)
	log.Infof("Answering time question: %s", response)
	return response, true, nil
}

func isTimeRelated(lower string) bool {
	for _, kw := range timeKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (d *DateTime) respond(lower string) string {
	now := d.now()
	clock := now.Format(d.timeFormat())
	date := now.Format(d.stringSetting(SettingDateFormat, defaultDateFormat))
	day := now.Weekday().String()

	wantsTime := strings.Contains(lower, "time")
	wantsDate := strings.Contains(lower, "date")

	switch {
	case wantsTime && !wantsDate:
		return fmt.Sprintf("The current time is %s.", clock)
	case wantsDate && !wantsTime:
		return fmt.Sprintf("Today is %s, %s.", day, date)
	default:
		return fmt.Sprintf("It's currently %s on %s, %s.", clock, day, date)
	}
}

func (d *DateTime) timeFormat() string {
	if f := d.stringSetting(SettingTimeFormat, ""); f != "" {
		return f
	}
	if seconds, ok := d.Host().ConfigValue(SettingIncludeSeconds, true).(bool); ok && !seconds {
		return timeNoSeconds
	}
	return timeWithSeconds
}

func (d *DateTime) stringSetting(key, def string) string {
	if s, ok := d.Host().ConfigValue(key, def).(string); ok && s != "" {
		return s
	}
	return def
}

func (d *DateTime) OnDashboardUpdate(ctx context.Context) (plugins.Metrics, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return plugins.Metrics{
		"messages_processed": d.processed,
		"status":             "active",
		"last_checked":       d.now().Format(time.RFC3339),
		"plugin_name":        "DateTime Plugin",
	}, nil
}
