package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tokenized/pkg/logger"
)

func TestContextWithLoggerFormats(t *testing.T) {
	dir := t.TempDir()

	for _, isText := range []bool{true, false} {
		path := filepath.Join(dir, "text", "gacha.log")
		if !isText {
			path = filepath.Join(dir, "json", "gacha.log")
		}

		ctx := ContextWithLogger(context.Background(), false, isText, path)
		logger.Info(ctx, "Pull submitted : %s", "0x01")

		b, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Failed to read log file : %s", err)
		}
		entry := strings.TrimSpace(string(b))

		if !strings.Contains(entry, "Pull submitted : 0x01") {
			t.Fatalf("Missing entry : %q", entry)
		}
		if isJSON := strings.HasPrefix(entry, "{"); isJSON == isText {
			t.Fatalf("Wrong format (text %t) : %q", isText, entry)
		}
	}
}

func TestContextWithLoggerSubSystems(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gacha.log")
	ctx := ContextWithLogger(context.Background(), false, true, path, "Pull")

	logger.Info(logger.ContextWithLogSubSystem(ctx, "Pull"), "enabled")
	logger.Info(logger.ContextWithLogSubSystem(ctx, "Other"), "disabled")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file : %s", err)
	}
	if !strings.Contains(string(b), "enabled") || strings.Contains(string(b), "disabled") {
		t.Fatalf("Wrong subsystem filtering : %q", b)
	}
}
