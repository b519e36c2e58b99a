package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleNote()); err != nil {
		t.Fatalf("Telegram Notify 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	text := received["text"]
	if !strings.Contains(text, "Defects: 3 (1.50% of news)") {
		t.Fatalf("text 缺少缺陷摘要: %s", text)
	}
	if !strings.Contains(text, "price_parity: 2") {
		t.Fatalf("text 缺少分类统计: %s", text)
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleNote()); err == nil {
		t.Fatal("ok=false 应报错")
	}
}

func TestRenderMessageTruncatesSamples(t *testing.T) {
	note := sampleNote()
	note.Samples = []string{"a", "b", "c", "d", "e", "f", "g"}
	text := renderMessage(note)
	if !strings.Contains(text, "... 2 more") {
		t.Fatalf("应截断样本: %s", text)
	}
	if strings.Contains(text, "  f\n") {
		t.Fatalf("第六条样本不应出现: %s", text)
	}
}

func TestDefectRateWithoutNews(t *testing.T) {
	if !(Notification{Defects: 4}).DefectRate().IsZero() {
		t.Fatal("无新闻时缺陷率应为 0")
	}
}

func sampleNote() Notification {
	return Notification{
		RunID:     "run-1",
		Mode:      "validate",
		Seed:      12345,
		Day:       500,
		Ticks:     500,
		NewsItems: 200,
		Defects:   3,
		ByKind:    map[string]int{"price_parity": 2, "orphan_phase": 1},
		Samples:   []string{"[price_parity] D4 AAA: log says $10.00, price shows $10.10"},
		Channels:  []string{"telegram"},
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
