package logger

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoggerErrorIncludesContextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf})

	ctx := context.Background()
	ctx = log.WithRequestID(ctx, "req-123")
	ctx = log.WithTenant(ctx, "shop.example.com")

	log.Error(ctx, "boom", errors.New("boom"))

	if !bytes.Contains(buf.Bytes(), []byte(`"request_id":"req-123"`)) {
		t.Fatalf("expected request_id to be preserved; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"tenant_domain":"shop.example.com"`)) {
		t.Fatalf("expected tenant_domain field; entry=%s", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected stack trace on error; entry=%s", buf.String())
	}
}

func TestLoggerWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Level: ParseLevel("debug"), Output: buf, WarnStack: true})
	log.Warn(context.Background(), "warny")
	if !bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("expected stack when warn stack enabled")
	}

	buf.Reset()
	log = New(Options{ServiceName: "test", Output: buf})
	log.Warn(context.Background(), "warny")
	if bytes.Contains(buf.Bytes(), []byte(`"stack"`)) {
		t.Fatalf("stack should be omitted by default")
	}
}

func TestWithCartTokenNeverLogsRawToken(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})
	token := "4b0c2d1e-9a51-4c53-8a77-2f6c1f1d7e10"

	ctx := log.WithCartToken(context.Background(), token)
	log.Info(ctx, "cart.view")

	out := buf.String()
	if strings.Contains(out, token) {
		t.Fatalf("raw token leaked into log: %s", out)
	}
	if !strings.Contains(out, TokenDigest(token)) {
		t.Fatalf("expected token digest in log: %s", out)
	}
	if len(TokenDigest(token)) != 12 {
		t.Fatalf("unexpected digest length")
	}
}

func TestParseLevelDefaults(t *testing.T) {
	if lvl := ParseLevel(""); lvl != zerolog.InfoLevel {
		t.Fatalf("expected default info level, got %v", lvl)
	}
	if lvl := ParseLevel("invalid"); lvl != zerolog.InfoLevel {
		t.Fatalf("invalid level should fallback to info, got %v", lvl)
	}
	if lvl := ParseLevel(" DEBUG "); lvl != zerolog.DebugLevel {
		t.Fatalf("expected debug, got %v", lvl)
	}
}

func TestFieldsDoNotLeakAcrossContexts(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "test", Output: buf})

	base := log.WithTenant(context.Background(), "a.example.com")
	_ = log.WithField(base, "order_no", "00000001")
	log.Info(base, "cart.view")

	out := buf.String()
	if !strings.Contains(out, `"tenant_domain":"a.example.com"`) {
		t.Fatalf("expected tenant field: %s", out)
	}
	if strings.Contains(out, "order_no") {
		t.Fatalf("child field leaked into parent context: %s", out)
	}
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	ctx := log.WithRequestID(context.Background(), "req")
	log.Error(ctx, "ignored", errors.New("x"))
}
