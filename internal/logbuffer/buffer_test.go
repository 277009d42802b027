package logbuffer

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestBufferWrapsInChronologicalOrder(t *testing.T) {
	b := New(3)
	for _, msg := range []string{"a", "b", "c", "d"} {
		b.Add(LogEntry{Message: msg})
	}

	all := b.GetAll()
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	want := []string{"b", "c", "d"}
	for i, entry := range all {
		if entry.Message != want[i] {
			t.Errorf("entry %d = %q, want %q", i, entry.Message, want[i])
		}
	}
}

func TestQueryFilters(t *testing.T) {
	b := New(10)
	now := time.Now()
	b.Add(LogEntry{Timestamp: now.Add(-time.Minute), Level: "info", Message: "destination shown", Component: "rotation", Fields: map[string]any{"destination_id": "a"}})
	b.Add(LogEntry{Timestamp: now, Level: "warn", Message: "show failed", Component: "rotation", Fields: map[string]any{"destination_id": "b"}})
	b.Add(LogEntry{Timestamp: now, Level: "info", Message: "config saved", Component: "configstore"})

	tests := []struct {
		name   string
		params QueryParams
		want   int
	}{
		{"all", QueryParams{}, 3},
		{"level", QueryParams{Level: "warn"}, 1},
		{"component", QueryParams{Component: "rotation"}, 2},
		{"destination", QueryParams{DestinationID: "a"}, 1},
		{"search is case insensitive", QueryParams{Search: "SHOW"}, 2},
		{"since", QueryParams{Since: now.Add(-time.Second)}, 2},
		{"limit", QueryParams{Limit: 1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Query(tt.params)
			if len(got) != tt.want {
				t.Fatalf("Query(%+v) returned %d entries, want %d", tt.params, len(got), tt.want)
			}
		})
	}

	desc := b.Query(QueryParams{Descending: true, Limit: 1})
	if desc[0].Message != "config saved" {
		t.Fatalf("expected newest entry first, got %q", desc[0].Message)
	}
}

func TestWriterCapturesZerologOutput(t *testing.T) {
	b := New(10)
	logger := zerolog.New(NewWriter(b, nil))
	logger.Warn().Str("component", "rotation").Str("destination_id", "x").Msg("show failed")

	entries := b.GetAll()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != "warn" || entry.Message != "show failed" || entry.Component != "rotation" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Fields["destination_id"] != "x" {
		t.Fatalf("expected destination_id field, got %+v", entry.Fields)
	}

	stats := b.Stats()
	if stats.Count != 1 || stats.LevelCount["warn"] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
