package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{
		"logging": {"level": "debug", "console": true},
		"scheduler": {"capacity": 4, "drain_timeout": "10s"},
		"jobs": [
			{"name": "tick", "schedule": "every:30s", "command": ["true"], "priority": 2}
		]
	}`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Scheduler.Capacity != 4 || cfg.Scheduler.DrainTimeout != "10s" {
		t.Fatalf("scheduler = %+v", cfg.Scheduler)
	}
	if len(cfg.Jobs) != 1 || cfg.Jobs[0].Name != "tick" || !cfg.Jobs[0].IsEnabled() {
		t.Fatalf("jobs = %+v", cfg.Jobs)
	}
	if m.Get() != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", `
logging:
  level: info
  console: true
scheduler:
  capacity: 2
storage:
  driver: file
  path: ./runs
jobs:
  - name: backup
    schedule: "cron:0 3 * * *"
    command: ["/usr/bin/backup", "--fast"]
    enabled: false
`)

	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "file" || cfg.Storage.Path != "./runs" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if len(cfg.Jobs) != 1 {
		t.Fatalf("jobs = %+v", cfg.Jobs)
	}
	if cfg.Jobs[0].IsEnabled() {
		t.Fatal("explicit enabled: false ignored")
	}
	if got := cfg.Jobs[0].Command; len(got) != 2 || got[0] != "/usr/bin/backup" {
		t.Fatalf("command = %v", got)
	}
}

func TestUnknownKeyRejected(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		file string
		data string
	}{
		{"json", "config.json", `{"scheduler": {"capcity": 4}}`},
		{"yaml", "config.yaml", "scheduler:\n  capcity: 4\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.data)
			if _, err := NewManager(path).Load(); err == nil {
				t.Fatal("expected unknown-field error")
			}
		})
	}
}

func TestTrailingDataRejected(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"scheduler": {}}{"extra": true}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected trailing-data error")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	d, err := ParseDurationField("scheduler.drain_timeout", "1m30s")
	if err != nil {
		t.Fatalf("ParseDurationField error: %v", err)
	}
	if d != 90*time.Second {
		t.Fatalf("d = %v, want 90s", d)
	}

	if d, err := ParseDurationField("x", "  "); err != nil || d != 0 {
		t.Fatalf("blank field = (%v, %v), want (0, nil)", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("expected error for negative duration")
	}
	if _, err := ParseDurationField("x", "soon"); err == nil {
		t.Fatal("expected error for garbage duration")
	}

	if d, err := ParseDurationOrDefault("x", "", 5*time.Second); err != nil || d != 5*time.Second {
		t.Fatalf("default = (%v, %v), want (5s, nil)", d, err)
	}
}

func TestSubscribePublish(t *testing.T) {
	t.Parallel()
	m := NewManager("unused.json")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first := &Config{Scheduler: SchedulerConfig{Capacity: 1}}
	second := &Config{Scheduler: SchedulerConfig{Capacity: 2}}
	m.publish(first)
	m.publish(second) // buffer full: stale item dropped, latest delivered

	select {
	case got := <-ch:
		if got.Scheduler.Capacity != 2 {
			t.Fatalf("got capacity %d, want latest (2)", got.Scheduler.Capacity)
		}
	case <-time.After(time.Second):
		t.Fatal("no config delivered")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	m := NewManager("unused.json")
	ch := m.Subscribe(1)
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel not closed by Unsubscribe")
	}
	m.Unsubscribe(ch) // second call is a no-op
}
