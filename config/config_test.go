package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimal = `
storage:
  driver: sqlite
  sqlite:
    path: ./data/chat.db
security:
  jwt:
    ephemeral: true
`

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.GRPC.Addr != ":9090" {
		t.Fatalf("addr defaults: %+v %+v", cfg.HTTP, cfg.GRPC)
	}
	if cfg.Realtime.Driver != "memory" || cfg.Realtime.BufferSize != 100 {
		t.Fatalf("realtime defaults: %+v", cfg.Realtime)
	}
	if cfg.Session.HeartbeatInterval != 30*time.Second {
		t.Fatalf("heartbeat default: %v", cfg.Session.HeartbeatInterval)
	}
	if cfg.Security.JWT.AccessTTL != 15*time.Minute || cfg.Security.Password.MinLength != 6 {
		t.Fatalf("security defaults: %+v", cfg.Security)
	}
	if cfg.Attachments.Driver != "local" || cfg.Attachments.MaxBytes != 10<<20 {
		t.Fatalf("attachments defaults: %+v", cfg.Attachments)
	}
}

func TestParse_Validation(t *testing.T) {
	cases := map[string]string{
		"postgres without dsn": `
storage: {driver: postgres}
security: {jwt: {ephemeral: true}}`,
		"unknown realtime driver": minimal + `
realtime: {driver: kafka}`,
		"redis without address": minimal + `
realtime: {driver: redis}`,
		"jwt keys missing": `
storage: {driver: sqlite, sqlite: {path: x.db}}`,
		"short password policy": minimal + `
  password: {minLength: 3}`,
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadConfig_FromEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	doc := minimal + `
session:
  heartbeatInterval: 5s
media:
  audio: true
  video: false
  iceServers: ["stun:stun.l.google.com:19302"]
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Session.HeartbeatInterval != 5*time.Second {
		t.Fatalf("heartbeat = %v", cfg.Session.HeartbeatInterval)
	}
	if !cfg.Media.Audio || cfg.Media.Video || len(cfg.Media.ICEServers) != 1 {
		t.Fatalf("media = %+v", cfg.Media)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := LoadConfig()
	if err == nil || !strings.Contains(err.Error(), "read config") {
		t.Fatalf("expected read error, got %v", err)
	}
}
