package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"healthchat/pkg/config"
)

func TestLoggerJSONEntryShape(t *testing.T) {
	unsetLoggingEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json", Level: "info"}, &out)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.With("component", "chat.client").Info("Transcript event", "message_id", "42", "is_error", true)

	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected log output")
	}

	var entry LogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("unmarshal log entry: %v", err)
	}

	if entry.Level != "info" {
		t.Fatalf("level = %q, want %q", entry.Level, "info")
	}
	if entry.Message != "Transcript event" {
		t.Fatalf("message = %q, want %q", entry.Message, "Transcript event")
	}
	if entry.Component != "chat.client" {
		t.Fatalf("component = %q, want %q", entry.Component, "chat.client")
	}
	if entry.Timestamp == "" {
		t.Fatal("expected timestamp")
	}
	if got := entry.Fields["message_id"]; got != "42" {
		t.Fatalf("fields.message_id = %v, want %q", got, "42")
	}
	if got := entry.Fields["is_error"]; got != true {
		t.Fatalf("fields.is_error = %v, want true", got)
	}
}

func TestLoggerPromotesSessionFields(t *testing.T) {
	unsetLoggingEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json", Level: "info"}, &out)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.With("component", "chat.client", "user_id", "user_abc123def").
		Info("Session started", "session_id", "sess-1", "message_id", uint64(1))

	var entry LogEntry
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &entry); err != nil {
		t.Fatalf("unmarshal log entry: %v", err)
	}

	if entry.SessionID != "sess-1" {
		t.Fatalf("session_id = %q, want %q", entry.SessionID, "sess-1")
	}
	if entry.UserID != "user_abc123def" {
		t.Fatalf("user_id = %q, want %q", entry.UserID, "user_abc123def")
	}
	if _, ok := entry.Fields["session_id"]; ok {
		t.Fatal("session_id should not be repeated in fields")
	}
	if _, ok := entry.Fields["user_id"]; ok {
		t.Fatal("user_id should not be repeated in fields")
	}
	if _, ok := entry.Fields["message_id"]; !ok {
		t.Fatal("expected message_id to stay in fields")
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	unsetLoggingEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json", Level: "error"}, &out)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.Info("Ignored")
	if got := strings.TrimSpace(out.String()); got != "" {
		t.Fatalf("expected no output for info, got %q", got)
	}

	log.Error("Kept")
	if got := strings.TrimSpace(out.String()); got == "" {
		t.Fatal("expected output for error")
	}
}

func TestLoggerEnvironmentOverrides(t *testing.T) {
	t.Setenv("HEALTHCHAT_LOG_LEVEL", "debug")
	t.Setenv("HEALTHCHAT_LOG_FORMAT", "text")
	defer unsetLoggingEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{Format: "json", Level: "error"}, &out)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.Debug("Debug enabled", "component", "test")
	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected debug output with env override")
	}
	if strings.HasPrefix(line, "{") {
		t.Fatalf("expected text format override, got %q", line)
	}
}

func TestLoggerDefaultsToTextFormat(t *testing.T) {
	unsetLoggingEnv(t)

	var out bytes.Buffer
	log, err := newWithWriter(config.LoggingConfig{}, &out)
	if err != nil {
		t.Fatalf("newWithWriter error: %v", err)
	}

	log.Info("Default format")
	line := strings.TrimSpace(out.String())
	if line == "" {
		t.Fatal("expected log output")
	}
	if strings.HasPrefix(line, "{") {
		t.Fatalf("expected text format by default, got %q", line)
	}
}

func unsetLoggingEnv(t *testing.T) {
	t.Helper()
	_ = os.Unsetenv("HEALTHCHAT_LOG_LEVEL")
	_ = os.Unsetenv("HEALTHCHAT_LOG_FORMAT")
	_ = os.Unsetenv("HEALTHCHAT_LOG_ADD_SOURCE")
	_ = os.Unsetenv("HEALTHCHAT_LOG_FILE")
}

func TestLoggerWritesToConfiguredFile(t *testing.T) {
	unsetLoggingEnv(t)

	path := filepath.Join(t.TempDir(), "logs", "healthchat.log")
	log, closeLog, err := New(config.LoggingConfig{Format: "json", Level: "info", File: path})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	log.Info("Session started", "component", "chat.client")
	if err := closeLog(); err != nil {
		t.Fatalf("close log file: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "Session started") {
		t.Fatalf("log file = %q, want it to contain the message", content)
	}
}
