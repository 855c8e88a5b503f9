package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexschlessinger/deskchat/client"
	"github.com/alexschlessinger/deskchat/llm"
	"github.com/alexschlessinger/deskchat/messages"
	"github.com/alexschlessinger/deskchat/sessions"
	"github.com/alexschlessinger/deskchat/stream"
	"github.com/google/go-cmp/cmp"
)

// newTestBackend runs a server over a memory store and the offline echo
// provider, returning a client for it
func newTestBackend(t *testing.T) (*Server, *client.Client) {
	t.Helper()
	store := sessions.NewMemoryStore(nil)
	srv := New(store, llm.NewMultiPass(nil), Config{DefaultModel: "echo/echo"})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, client.New(ts.URL)
}

// recorder captures the callbacks of one stream
type recorder struct {
	progress []string
	events   []stream.Event
}

func (r *recorder) handlers() stream.Handlers {
	return stream.Handlers{
		OnProgress: func(text string) { r.progress = append(r.progress, text) },
		OnEvent:    func(ev stream.Event) { r.events = append(r.events, ev) },
	}
}

func (r *recorder) eventNames() []string {
	var names []string
	for _, ev := range r.events {
		names = append(names, ev.Name)
	}
	return names
}

func TestChatPersistent(t *testing.T) {
	srv, c := newTestBackend(t)
	ctx := context.Background()

	rec := &recorder{}
	text, err := c.Stream(ctx, messages.ChatRequest{Text: "hello there world"}, rec.handlers())
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if text != "hello there world" {
		t.Errorf("text = %q", text)
	}

	if diff := cmp.Diff([]string{"hello ", "hello there ", "hello there world"}, rec.progress); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{stream.EventTitle, stream.EventDone}, rec.eventNames()); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}

	var title messages.TitleUpdate
	if err := rec.events[0].Decode(&title); err != nil {
		t.Fatalf("decoding title: %v", err)
	}
	if title.ID != srv.CurrentID() || title.Title != "hello there world" {
		t.Errorf("title = %+v, current id %q", title, srv.CurrentID())
	}

	history, err := c.SwitchConversation(ctx, title.ID)
	if err != nil {
		t.Fatalf("SwitchConversation failed: %v", err)
	}
	want := []messages.ChatMessage{
		{Role: messages.MessageRoleUser, Content: "hello there world"},
		{Role: messages.MessageRoleAssistant, Content: "hello there world"},
	}
	if diff := cmp.Diff(want, history); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestChatContinuesCurrentConversation(t *testing.T) {
	_, c := newTestBackend(t)
	ctx := context.Background()

	for _, prompt := range []string{"first question", "second question"} {
		if _, err := c.Stream(ctx, messages.ChatRequest{Text: prompt}, stream.Handlers{}); err != nil {
			t.Fatalf("Stream(%q) failed: %v", prompt, err)
		}
	}

	convs, err := c.Conversations(ctx)
	if err != nil {
		t.Fatalf("Conversations failed: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("expected one conversation, got %d", len(convs))
	}
	if convs[0].MessageCount != 4 || convs[0].Title != "first question" {
		t.Errorf("conversation = %+v", convs[0])
	}
}

func TestChatEphemeral(t *testing.T) {
	srv, c := newTestBackend(t)
	ctx := context.Background()

	rec := &recorder{}
	text, err := c.Stream(ctx, messages.ChatRequest{Text: "one off", Ephemeral: true}, rec.handlers())
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if text != "one off" {
		t.Errorf("text = %q", text)
	}
	if diff := cmp.Diff([]string{stream.EventDone}, rec.eventNames()); diff != "" {
		t.Errorf("ephemeral streams carry no title (-want +got):\n%s", diff)
	}

	convs, err := c.Conversations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 0 || srv.CurrentID() != "" {
		t.Errorf("ephemeral chat touched history: %+v", convs)
	}
}

func TestChatRejectsEmptyText(t *testing.T) {
	_, c := newTestBackend(t)

	called := false
	_, err := c.Stream(context.Background(), messages.ChatRequest{Text: "   "}, stream.Handlers{
		OnProgress: func(string) { called = true },
	})

	var te *stream.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *stream.TransportError, got %v", err)
	}
	if te.StatusCode != http.StatusBadRequest || te.Body != "empty" {
		t.Errorf("unexpected transport error: %+v", te)
	}
	if called {
		t.Error("handlers must not run for a rejected request")
	}
}

func TestChatUpstreamError(t *testing.T) {
	_, c := newTestBackend(t)
	ctx := context.Background()

	var gotErr error
	p := &errorCapture{onError: func(err error) { gotErr = err }}
	text, err := c.StreamWith(ctx, messages.ChatRequest{Text: "hello there", Model: "echo/fail"}, p)
	if err != nil {
		t.Fatalf("StreamWith failed: %v", err)
	}

	want := "hello " + stream.DefaultErrorMarker + llm.ErrEchoFailure.Error()
	if text != want {
		t.Errorf("text = %q, want %q", text, want)
	}
	var upstream *messages.UpstreamError
	if !errors.As(gotErr, &upstream) || upstream.Message != llm.ErrEchoFailure.Error() {
		t.Errorf("OnError got %v", gotErr)
	}

	id, err := c.CurrentConversationID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	history, err := c.SwitchConversation(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Errorf("failed replies must not be stored, history = %+v", history)
	}
}

func TestChatMissingProviderKey(t *testing.T) {
	_, c := newTestBackend(t)

	rec := &recorder{}
	text, err := c.Stream(context.Background(), messages.ChatRequest{Text: "hi", Model: "openai/gpt-4o", Ephemeral: true}, rec.handlers())
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	if !strings.Contains(text, "missing API key for provider 'openai'") {
		t.Errorf("text = %q", text)
	}
	if diff := cmp.Diff([]string{stream.EventError, stream.EventDone}, rec.eventNames()); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestChatHeaders(t *testing.T) {
	srv, _ := newTestBackend(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"text":"hi","model":"echo/echo"}`))
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	want := map[string]string{
		"Content-Type":      "text/event-stream",
		"Cache-Control":     "no-cache",
		"Connection":        "keep-alive",
		"X-Accel-Buffering": "no",
	}
	for k, v := range want {
		if got := rr.Header().Get(k); got != v {
			t.Errorf("header %s = %q, want %q", k, got, v)
		}
	}
	if !strings.HasSuffix(rr.Body.String(), "event: done\ndata: {}\n\n") {
		t.Errorf("stream should end with the done frame, got %q", rr.Body.String())
	}
}

func TestConversationEndpoints(t *testing.T) {
	_, c := newTestBackend(t)
	ctx := context.Background()

	if id, err := c.CurrentConversationID(ctx); err != nil || id != "" {
		t.Fatalf("CurrentConversationID() = %q, %v", id, err)
	}

	conv, err := c.NewConversation(ctx)
	if err != nil {
		t.Fatalf("NewConversation failed: %v", err)
	}
	if conv.Title != sessions.DefaultTitle || len(conv.ID) != 8 {
		t.Errorf("new conversation = %+v", conv)
	}
	if id, _ := c.CurrentConversationID(ctx); id != conv.ID {
		t.Errorf("current id = %q, want %q", id, conv.ID)
	}

	if err := c.RenameConversation(ctx, conv.ID, "Renamed"); err != nil {
		t.Fatalf("RenameConversation failed: %v", err)
	}
	convs, _ := c.Conversations(ctx)
	if len(convs) != 1 || convs[0].Title != "Renamed" {
		t.Errorf("conversations = %+v", convs)
	}

	if err := c.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}
	if id, _ := c.CurrentConversationID(ctx); id != "" {
		t.Errorf("deleting the current conversation should clear it, got %q", id)
	}

	for name, call := range map[string]func() error{
		"switch": func() error { _, err := c.SwitchConversation(ctx, conv.ID); return err },
		"delete": func() error { return c.DeleteConversation(ctx, conv.ID) },
		"rename": func() error { return c.RenameConversation(ctx, conv.ID, "x") },
	} {
		var te *stream.TransportError
		if err := call(); !errors.As(err, &te) || te.StatusCode != http.StatusNotFound {
			t.Errorf("%s of a missing conversation: got %v, want 404", name, err)
		}
	}
}

func TestModelEndpoints(t *testing.T) {
	_, c := newTestBackend(t)
	ctx := context.Background()

	models, err := c.Models(ctx)
	if err != nil {
		t.Fatalf("Models failed: %v", err)
	}
	if diff := cmp.Diff(DefaultModels, models); diff != "" {
		t.Errorf("models mismatch (-want +got):\n%s", diff)
	}

	if m, _ := c.CurrentModel(ctx); m != "echo/echo" {
		t.Errorf("CurrentModel() = %q", m)
	}

	conv, err := c.NewConversation(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.SetModel(ctx, "echo/slow"); err != nil {
		t.Fatalf("SetModel failed: %v", err)
	}
	if m, _ := c.CurrentModel(ctx); m != "echo/slow" {
		t.Errorf("CurrentModel() after SetModel = %q", m)
	}

	// With the conversation gone the default model answers, and it changed too
	if err := c.DeleteConversation(ctx, conv.ID); err != nil {
		t.Fatal(err)
	}
	if m, _ := c.CurrentModel(ctx); m != "echo/slow" {
		t.Errorf("default model = %q, want echo/slow", m)
	}

	var te *stream.TransportError
	if err := c.SetModel(ctx, " "); !errors.As(err, &te) || te.StatusCode != http.StatusBadRequest {
		t.Errorf("SetModel with empty model: %v", err)
	}
}

func TestSystemInfoEndpoint(t *testing.T) {
	_, c := newTestBackend(t)

	info, err := c.SystemInfo(context.Background())
	if err != nil {
		t.Fatalf("SystemInfo failed: %v", err)
	}
	if info.OS == "" || info.CPU == "" {
		t.Errorf("system info = %+v", info)
	}
}

func TestSystemPromptFallback(t *testing.T) {
	if SystemPrompt("nonsense") != SystemPrompt(messages.ModeChat) {
		t.Error("unknown modes should use the chat prompt")
	}
	for _, mode := range messages.Modes {
		if SystemPrompt(mode) == "" {
			t.Errorf("mode %s has no prompt", mode)
		}
	}
}

func TestServeShutsDown(t *testing.T) {
	srv := New(sessions.NewMemoryStore(nil), llm.NewMultiPass(nil), Config{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	c := client.New("http://" + ln.Addr().String())
	if _, err := c.Models(context.Background()); err != nil {
		t.Fatalf("Models failed: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

type errorCapture struct {
	messages.BaseEventProcessor
	onError func(error)
}

func (e *errorCapture) OnError(err error) {
	e.onError(err)
}
