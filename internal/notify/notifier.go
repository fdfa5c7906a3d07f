// Package notify delivers job outcome notices. Delivery backends are
// interchangeable behind the Notifier interface.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Notifier delivers one notice to the given recipients.
type Notifier interface {
	Notify(ctx context.Context, recipients []string, subject, body string) error
}

// LogNotifier writes notices to the service log. It is the default backend.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the notice.
func (n *LogNotifier) Notify(_ context.Context, recipients []string, subject, body string) error {
	n.logger.Info("notification",
		zap.Strings("recipients", recipients),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}

// Notice captures one delivered notice for inspection in tests.
type Notice struct {
	Recipients []string
	Subject    string
	Body       string
}

// MemoryNotifier records notices in-memory.
type MemoryNotifier struct {
	mu      sync.RWMutex
	notices []Notice
}

// NewMemoryNotifier returns an empty MemoryNotifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

// Notify records the notice.
func (n *MemoryNotifier) Notify(_ context.Context, recipients []string, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, Notice{
		Recipients: append([]string(nil), recipients...),
		Subject:    subject,
		Body:       body,
	})
	return nil
}

// Notices returns the recorded notices.
func (n *MemoryNotifier) Notices() []Notice {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Notice, len(n.notices))
	copy(out, n.notices)
	return out
}
