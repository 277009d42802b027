package configstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/friendsincode/grimnir_kiosk/internal/config"
	"github.com/friendsincode/grimnir_kiosk/internal/db"
	"github.com/friendsincode/grimnir_kiosk/internal/events"
	"github.com/friendsincode/grimnir_kiosk/internal/models"
	"github.com/friendsincode/grimnir_kiosk/internal/storage"
	"github.com/rs/zerolog"
)

func sampleConfig() models.RotationConfig {
	return models.RotationConfig{
		Destinations: []models.Destination{
			{ID: "a", URL: "https://status.example.com", DurationSeconds: 20, Name: "Status"},
			{ID: "b", URL: "https://grafana.example.com", DurationSeconds: 0},
		},
		Loop:      false,
		AutoStart: true,
	}
}

func assertSample(t *testing.T, cfg models.RotationConfig) {
	t.Helper()
	if len(cfg.Destinations) != 2 || cfg.Loop || !cfg.AutoStart {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Destinations[0].URL != "https://status.example.com" || cfg.Destinations[0].Name != "Status" {
		t.Fatalf("unexpected first destination: %+v", cfg.Destinations[0])
	}
}

type memoryObjects struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func (m *memoryObjects) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *memoryObjects) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	d, ok := m.data[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return d, nil
}

func (m *memoryObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestStoresRoundTrip(t *testing.T) {
	database, err := db.Connect(config.BackendSQLite, "file::memory:")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(database) })
	if err := db.Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	dir := t.TempDir()
	stores := []Store{
		NewFileStore(filepath.Join(dir, "dashboard_config.json")),
		NewFileStore(filepath.Join(dir, "nested", "kiosk.yaml")),
		NewDBStore(database, "lobby"),
		NewObjectStore(&memoryObjects{data: map[string][]byte{}}, "configs/lobby"),
	}

	for _, store := range stores {
		t.Run(store.Name(), func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.Load(ctx); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound before first save, got %v", err)
			}
			if err := store.Save(ctx, sampleConfig()); err != nil {
				t.Fatalf("Save: %v", err)
			}
			// Second save exercises replace/upsert.
			if err := store.Save(ctx, sampleConfig()); err != nil {
				t.Fatalf("second Save: %v", err)
			}
			got, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			assertSample(t, got)
		})
	}
}

func TestFileStoreReadsOriginalFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard_config.json")
	legacy := `{"pages":[{"url":"https://www.google.com","duration_seconds":30,"name":"Google"}],"loop":true,"auto_start":false}`
	if err := os.WriteFile(path, []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(NewFileStore(path), nil, zerolog.Nop())
	cfg := m.Load(context.Background())
	if m.Source() != SourceStore {
		t.Fatalf("expected config from store, got %s", m.Source())
	}
	if len(cfg.Destinations) != 1 || cfg.Destinations[0].ID == "" {
		t.Fatalf("expected one normalized destination, got %+v", cfg.Destinations)
	}
}

func TestFileStoreYAMLOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kiosk.yml")
	store := NewFileStore(path)
	if err := store.Save(context.Background(), sampleConfig()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "pages:") || !strings.Contains(string(data), "auto_start: true") {
		t.Fatalf("expected YAML document, got:\n%s", data)
	}
}

func TestManagerFallbacks(t *testing.T) {
	ctx := context.Background()

	t.Run("missing uses default", func(t *testing.T) {
		m := NewManager(NewFileStore(filepath.Join(t.TempDir(), "none.json")), nil, zerolog.Nop())
		cfg := m.Load(ctx)
		if len(cfg.Destinations) != 2 || !cfg.Loop || cfg.AutoStart || m.Source() != SourceDefault {
			t.Fatalf("expected default config, got %+v (%s)", cfg, m.Source())
		}
	})

	t.Run("corrupt uses default", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		m := NewManager(NewFileStore(path), nil, zerolog.Nop())
		if cfg := m.Load(ctx); len(cfg.Destinations) != 2 || m.Source() != SourceDefault {
			t.Fatalf("expected default config, got %+v", cfg)
		}
	})

	t.Run("invalid uses default", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "invalid.json")
		if err := os.WriteFile(path, []byte(`{"pages":[{"url":"","duration_seconds":5}]}`), 0o644); err != nil {
			t.Fatal(err)
		}
		bus := events.NewBus()
		failures := bus.Subscribe(events.EventConfigLoadFailure)
		m := NewManager(NewFileStore(path), bus, zerolog.Nop())
		if cfg := m.Load(ctx); len(cfg.Destinations) != 2 {
			t.Fatalf("expected default config, got %+v", cfg)
		}
		select {
		case <-failures:
		default:
			t.Fatal("expected config.load_failed event")
		}
	})

	t.Run("backend error keeps last known good", func(t *testing.T) {
		objects := &memoryObjects{data: map[string][]byte{}}
		m := NewManager(NewObjectStore(objects, "lobby.json"), nil, zerolog.Nop())
		if _, err := m.Save(ctx, sampleConfig()); err != nil {
			t.Fatalf("Save: %v", err)
		}

		objects.mu.Lock()
		objects.err = errors.New("s3 unavailable")
		objects.mu.Unlock()

		cfg := m.Load(ctx)
		assertSample(t, cfg)
		if m.Source() != SourceLastKnownGood {
			t.Fatalf("expected last known good, got %s", m.Source())
		}
	})
}

func TestManagerSave(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus()
	updated := bus.Subscribe(events.EventConfigUpdated)
	path := filepath.Join(t.TempDir(), "dashboard_config.json")
	m := NewManager(NewFileStore(path), bus, zerolog.Nop())

	_, err := m.Save(ctx, models.RotationConfig{Destinations: []models.Destination{{URL: "https://a", DurationSeconds: -3}}})
	if !errors.Is(err, models.ErrInvalidDestination) {
		t.Fatalf("expected ErrInvalidDestination, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatal("invalid config must not be written")
	}

	saved, err := m.Save(ctx, models.RotationConfig{Destinations: []models.Destination{{URL: " https://a ", DurationSeconds: 3}}})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.Destinations[0].ID == "" || saved.Destinations[0].URL != "https://a" {
		t.Fatalf("expected normalized destination, got %+v", saved.Destinations[0])
	}
	if cur := m.Current(ctx); cur.Destinations[0].ID != saved.Destinations[0].ID {
		t.Fatalf("Current() did not reflect save: %+v", cur)
	}

	select {
	case p := <-updated:
		if p["total_pages"] != 1 {
			t.Fatalf("unexpected payload %+v", p)
		}
	default:
		t.Fatal("expected config.updated event")
	}

	reloaded := NewManager(NewFileStore(path), nil, zerolog.Nop()).Load(ctx)
	if reloaded.Destinations[0].ID != saved.Destinations[0].ID {
		t.Fatal("generated id was not persisted")
	}
}

func TestManagerSaveEmptyIsAllowed(t *testing.T) {
	m := NewManager(NewFileStore(filepath.Join(t.TempDir(), "c.json")), nil, zerolog.Nop())
	cfg, err := m.Save(context.Background(), models.RotationConfig{Loop: true})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(cfg.Destinations) != 0 {
		t.Fatalf("expected empty list, got %+v", cfg.Destinations)
	}
	if got := m.Load(context.Background()); len(got.Destinations) != 0 {
		t.Fatalf("empty list should load back as empty, got %+v", got.Destinations)
	}
}

func TestManagerReset(t *testing.T) {
	m := NewManager(NewFileStore(filepath.Join(t.TempDir(), "c.json")), nil, zerolog.Nop())
	cfg, err := m.Reset(context.Background())
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(cfg.Destinations) != 2 || cfg.Destinations[0].DurationSeconds != 30 {
		t.Fatalf("expected default config, got %+v", cfg)
	}
}
