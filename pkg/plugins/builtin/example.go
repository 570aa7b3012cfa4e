package builtin

import (
	"context"
	"sync"

	"github.com/lumi-ai/lumi/pkg/plugins"
)

const messageCountFile = "message_count.json"

// Example counts received messages and keeps the count across restarts.
type Example struct {
	plugins.Base

	mu    sync.Mutex
	count int
}

// NewExample is the factory for the example extension.
func NewExample() plugins.Plugin {
	return &Example{}
}

func (e *Example) Initialize(ctx context.Context) error {
	e.Host().Logger().Info("Example plugin initializing")

	var count int
	found, err := e.Host().LoadData(messageCountFile, &count)
	if err != nil {
		e.Host().Logger().WithError(err).Warn("Failed to load message count, starting at 0")
	}

	e.mu.Lock()
	if found {
		e.count = count
	}
	e.mu.Unlock()
	return nil
}

func (e *Example) Unload(ctx context.Context) error {
	e.mu.Lock()
	count := e.count
	e.mu.Unlock()

	if err := e.Host().SaveData(messageCountFile, count); err != nil {
		return err
	}
	e.Host().Logger().Info("Example plugin unloaded")
	return nil
}

// OnMessageReceived counts the message and leaves it unchanged.
func (e *Example) OnMessageReceived(ctx context.Context, message string, source plugins.Source) (string, bool, error) {
	e.mu.Lock()
	e.count++
	n := e.count
	e.mu.Unlock()

	e.Host().Logger().Infof("Example plugin processed message #%d: %s", n, truncate(message, 50))
	return "", false, nil
}

func (e *Example) OnDashboardUpdate(ctx context.Context) (plugins.Metrics, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return plugins.Metrics{
		"message_count": e.count,
		"status":        "active",
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
