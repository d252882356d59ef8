package engine

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `
environment: test
log_level: debug
server:
  addr: ":9090"
vendors:
  stt:
    provider: deepgram
    settings:
      api_key: ${TEST_DG_KEY}
      model: nova-2
  tts:
    provider: elevenlabs
    settings:
      api_key: el-key
      voice_id: voice-1
  turn:
    provider: mock
interview:
  min_words: 4
persistence:
  driver: sqlite
  path: /tmp/sessions.db
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("TEST_DG_KEY", "dg-secret")
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Fatalf("addr = %s", cfg.Server.Addr)
	}
	if cfg.Vendors.STT.Settings["api_key"] != "dg-secret" {
		t.Fatalf("env var not expanded: %v", cfg.Vendors.STT.Settings["api_key"])
	}
	if cfg.Interview.MinWords != 4 {
		t.Fatalf("min_words = %d", cfg.Interview.MinWords)
	}
	if cfg.Interview.MinChars != 12 {
		t.Fatalf("min_chars default = %d", cfg.Interview.MinChars)
	}
	if cfg.Interview.RateLimitCooldownMS != 30000 {
		t.Fatalf("rate_limit_cooldown_ms default = %d", cfg.Interview.RateLimitCooldownMS)
	}
}

func TestLoadConfigRejectsMissingProvider(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
vendors:
  stt:
    provider: mock
  tts:
    provider: mock
`))
	if err == nil {
		t.Fatal("missing turn provider accepted")
	}
}

func TestLoadConfigRejectsSQLiteWithoutPath(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
vendors:
  stt: {provider: mock}
  tts: {provider: mock}
  turn: {provider: mock}
persistence:
  driver: sqlite
`))
	if err == nil {
		t.Fatal("sqlite without path accepted")
	}
}
