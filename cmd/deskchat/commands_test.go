package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alexschlessinger/deskchat/messages"
	"github.com/alexschlessinger/deskchat/sessions"
	"github.com/alexschlessinger/deskchat/tools"
	"github.com/google/go-cmp/cmp"
)

func TestWriteConversations(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	convs := []messages.Conversation{
		{ID: "aaaa1111", Title: "Newest", CreatedAt: now.Add(-30 * time.Second), MessageCount: 2},
		{ID: "bbbb2222", Title: "Older", CreatedAt: now.Add(-3 * time.Hour), MessageCount: 6},
		{ID: "cccc3333", Title: "Oldest", CreatedAt: now.Add(-50 * time.Hour)},
	}

	var out bytes.Buffer
	writeConversations(&out, convs, "bbbb2222", now)

	want := "  aaaa1111  Newest (2 messages, just now)\n" +
		"* bbbb2222  Older (6 messages, 3h ago)\n" +
		"  cccc3333  Oldest (0 messages, 2d ago)\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteConversationsEmpty(t *testing.T) {
	var out bytes.Buffer
	writeConversations(&out, nil, "", time.Now())
	if out.String() != "No conversations\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{90 * time.Minute, "1h ago"},
		{49 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		if got := formatAge(tt.d); got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestOpenStore(t *testing.T) {
	cfg := &Config{DataDir: t.TempDir(), Model: "echo/echo", MaxHistory: 2}

	mem, err := openStore(cfg, true)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := mem.(*sessions.MemoryStore); !ok {
		t.Errorf("--memory should give a MemoryStore, got %T", mem)
	}

	store, err := openStore(cfg, false)
	if err != nil {
		t.Fatalf("openStore failed: %v", err)
	}
	fs, ok := store.(*sessions.FileStore)
	if !ok {
		t.Fatalf("got %T, want *sessions.FileStore", store)
	}
	if !strings.HasPrefix(fs.BaseDir(), cfg.DataDir) {
		t.Errorf("BaseDir = %q, want under %q", fs.BaseDir(), cfg.DataDir)
	}

	conv, err := store.Create("")
	if err != nil {
		t.Fatal(err)
	}
	if conv.Model() != "echo/echo" {
		t.Errorf("new conversations should default to the configured model, got %q", conv.Model())
	}

	for _, text := range []string{"one", "two", "three"} {
		if _, err := store.Append(conv.ID, messages.ChatMessage{Role: messages.MessageRoleUser, Content: text}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := store.Get(conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.History) != 2 || got.Title() != "one" {
		t.Errorf("max_history not applied: %d messages, title %q", len(got.History), got.Title())
	}
}

func TestWireSchema(t *testing.T) {
	schema, err := wireSchema("chat-request")
	if err != nil {
		t.Fatalf("wireSchema failed: %v", err)
	}
	if schema.Type != "object" {
		t.Errorf("type = %q", schema.Type)
	}
	if diff := cmp.Diff([]string{"text"}, schema.Required); diff != "" {
		t.Errorf("required mismatch (-want +got):\n%s", diff)
	}

	mode, ok := schema.Properties.Get("mode")
	if !ok {
		t.Fatal("mode property missing")
	}
	if len(mode.Enum) != len(messages.Modes) {
		t.Errorf("mode enum = %v", mode.Enum)
	}

	// Round-trips as JSON for the schema command's output
	data, err := json.Marshal(schema)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"web_search"`) {
		t.Errorf("schema JSON lacks web_search: %s", data)
	}
}

func TestWireSchemaUnknown(t *testing.T) {
	if _, err := wireSchema("nope"); err == nil || !strings.Contains(err.Error(), "chat-request") {
		t.Errorf("err = %v", err)
	}
}

func TestWriteToolList(t *testing.T) {
	registry, closeAll, err := buildRegistry(context.Background(), &Config{Server: "http://127.0.0.1:1"}, "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer closeAll()

	var out bytes.Buffer
	writeToolList(&out, registry, "")
	got := out.String()

	for _, name := range []string{"assistant", "doc_qa", "media_analysis", "ppt_outline", "email", "ai_draw"} {
		if !strings.Contains(got, name+"  ") {
			t.Errorf("tool %s missing from listing:\n%s", name, got)
		}
	}
	if !strings.Contains(got, "* topic") {
		t.Errorf("required arguments should be starred:\n%s", got)
	}
}

func TestWriteToolListCategory(t *testing.T) {
	registry, closeAll, err := buildRegistry(context.Background(), &Config{Server: "http://127.0.0.1:1"}, "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer closeAll()

	var out bytes.Buffer
	writeToolList(&out, registry, tools.CategoryWork)
	got := out.String()

	for _, name := range []string{"polish", "report", "email", "interview"} {
		if !strings.Contains(got, name+"  [work]") {
			t.Errorf("work preset %s missing:\n%s", name, got)
		}
	}
	for _, name := range []string{"ppt_outline", "ai_draw", "math"} {
		if strings.Contains(got, name+"  ") {
			t.Errorf("%s listed under work:\n%s", name, got)
		}
	}
}

func TestProgressTitle(t *testing.T) {
	if got := progressTitle("Generating…\n  120 chars"); got != "Generating… 120 chars" {
		t.Errorf("got %q", got)
	}

	long := strings.Repeat("ab ", 40) + "end"
	got := progressTitle(long)
	if n := len([]rune(got)); n != progressTitleRunes {
		t.Errorf("length = %d, want %d", n, progressTitleRunes)
	}
	if !strings.HasPrefix(got, "…") || !strings.HasSuffix(got, "end") {
		t.Errorf("got %q", got)
	}
}
