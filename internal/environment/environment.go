package environment

import (
	"context"

	"github.com/nerrad567/gray-logic-automation/internal/bus"
)

// Publisher publishes payloads on the bus. *bus.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, payload bus.Payload, scope string) error
}

// Logger defines the logging interface used by the adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
