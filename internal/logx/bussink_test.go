package logx

import (
	"io"
	"testing"

	"github.com/rs/zerolog"

	"github.com/EonsofStupid/EzDbMigrate/internal/events"
)

func TestWithBusMirrorsLogLines(t *testing.T) {
	bus := events.NewBus()

	var got []events.LogEvent
	bus.Subscribe(func(e events.Event) {
		if le, ok := e.(events.LogEvent); ok {
			got = append(got, le)
		}
	})

	logger := WithBus(zerolog.New(io.Discard), bus)
	logger.Info().Str("action", "verify").Msg("connection verified")
	logger.Warn().Msg("offsite replication failed")

	if len(got) != 2 {
		t.Fatalf("log events = %d, want 2", len(got))
	}
	if got[0].Level != "info" || got[0].Message != "connection verified" {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].Level != "warn" {
		t.Fatalf("second level = %s, want warn", got[1].Level)
	}
}

func TestWithBusSkipsEmptyMessages(t *testing.T) {
	bus := events.NewBus()

	count := 0
	bus.Subscribe(func(events.Event) { count++ })

	logger := WithBus(zerolog.New(io.Discard), bus)
	logger.Info().Msg("")

	if count != 0 {
		t.Fatalf("events = %d, want 0 for empty message", count)
	}
}
