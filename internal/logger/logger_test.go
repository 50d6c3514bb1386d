package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"taskdesk/internal/logger"
)

func TestNewWritesJSONWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.New(logger.Config{Level: "debug", Encoding: "json", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	ctx := logger.ContextWithRequestID(context.Background(), "req-1")
	logger.WithRequestID(ctx, log).Debug("hello")
	_ = log.Sync()

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if entry["msg"] != "hello" || entry["request_id"] != "req-1" {
		t.Fatalf("entry = %v", entry)
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Fatalf("missing timestamp key: %v", entry)
	}
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, _ := logger.New(logger.Config{Level: "loud", Output: &buf})
	log.Debug("hidden")
	log.Info("shown")
	if bytes.Contains(buf.Bytes(), []byte("hidden")) || !bytes.Contains(buf.Bytes(), []byte("shown")) {
		t.Fatalf("unexpected output %q", buf.String())
	}
	if logger.OrNop(nil) == nil {
		t.Fatalf("OrNop returned nil")
	}
}
