package models

import (
	"errors"
	"testing"
)

func TestDefaultRotationConfig(t *testing.T) {
	cfg := DefaultRotationConfig()

	if len(cfg.Destinations) != 2 {
		t.Fatalf("expected 2 default destinations, got %d", len(cfg.Destinations))
	}
	if cfg.Destinations[0].DurationSeconds != 30 || cfg.Destinations[1].DurationSeconds != 45 {
		t.Fatalf("unexpected default durations: %+v", cfg.Destinations)
	}
	if !cfg.Loop || cfg.AutoStart {
		t.Fatalf("expected loop=true auto_start=false, got loop=%v auto_start=%v", cfg.Loop, cfg.AutoStart)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	for i, d := range cfg.Destinations {
		if d.ID == "" {
			t.Errorf("destination %d has no id", i)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RotationConfig
		wantErr bool
	}{
		{"empty is storable", RotationConfig{}, false},
		{"zero duration", RotationConfig{Destinations: []Destination{{URL: "https://a", DurationSeconds: 0}}}, false},
		{"missing url", RotationConfig{Destinations: []Destination{{URL: "  ", DurationSeconds: 5}}}, true},
		{"negative duration", RotationConfig{Destinations: []Destination{{URL: "https://a", DurationSeconds: -1}}}, true},
		{"duplicate ids", RotationConfig{Destinations: []Destination{
			{ID: "x", URL: "https://a", DurationSeconds: 1},
			{ID: "x", URL: "https://b", DurationSeconds: 1},
		}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidDestination) {
				t.Fatalf("expected ErrInvalidDestination, got %v", err)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := RotationConfig{Destinations: []Destination{{ID: "a", URL: "https://a", DurationSeconds: 5}}, Loop: true}
	clone := orig.Clone()
	orig.Destinations[0].URL = "https://changed"

	if clone.Destinations[0].URL != "https://a" {
		t.Fatalf("clone observed an edit to the original: %q", clone.Destinations[0].URL)
	}
}

func TestNormalizeAssignsIDs(t *testing.T) {
	cfg := RotationConfig{Destinations: []Destination{{URL: " https://a "}, {ID: "keep", URL: "https://b"}}}
	cfg.Normalize()

	if cfg.Destinations[0].ID == "" {
		t.Fatal("expected generated id")
	}
	if cfg.Destinations[0].URL != "https://a" {
		t.Fatalf("expected trimmed url, got %q", cfg.Destinations[0].URL)
	}
	if cfg.Destinations[1].ID != "keep" {
		t.Fatalf("existing id replaced: %q", cfg.Destinations[1].ID)
	}
}

func TestDestinationLabel(t *testing.T) {
	if got := (Destination{URL: "https://a"}).Label(); got != "https://a" {
		t.Fatalf("Label() = %q", got)
	}
	if got := (Destination{URL: "https://a", Name: "A"}).Label(); got != "A" {
		t.Fatalf("Label() = %q", got)
	}
}
