package logx

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/EonsofStupid/EzDbMigrate/internal/events"
)

// busHook republishes each log line as an events.LogEvent, so any front end
// subscribed to the bus sees the same log stream the process writes.
type busHook struct {
	bus *events.Bus
}

func (h busHook) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	if msg == "" {
		return
	}
	h.bus.Publish(events.LogEvent{
		Time:    time.Now().UTC(),
		Level:   level.String(),
		Message: msg,
	})
}

// WithBus returns a child of base that additionally publishes every log line
// to bus as a LogEvent.
func WithBus(base zerolog.Logger, bus *events.Bus) zerolog.Logger {
	return base.Hook(busHook{bus: bus})
}
