package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestReplaceRestores(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	restore := Replace(zap.New(core))
	L().Info("room_create", zap.String("room_id", "ABC123"))
	restore()
	L().Info("dropped")
	if logs.Len() != 1 {
		t.Fatalf("expected 1 captured entry, got %d", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["room_id"]; got != "ABC123" {
		t.Fatalf("room_id field: got %v", got)
	}
}

func TestInitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "othello.log")
	restore := Replace(nil)
	t.Cleanup(restore)
	if err := Init(Options{Level: "debug", Format: "json", ToFile: true, File: path}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	L().Debug("sweep_tick", zap.Int("removed", 2))
	Sync()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"msg":"sweep_tick"`) {
		t.Fatalf("log file missing entry: %s", raw)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v want %v", in, got, want)
		}
	}
}
