package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexschlessinger/deskchat/messages"
	"github.com/alexschlessinger/deskchat/stream"
	"github.com/google/go-cmp/cmp"
)

func writeFrame(w http.ResponseWriter, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func TestStreamSendsRequestAndDecodes(t *testing.T) {
	var got messages.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		writeFrame(w, "token", `"Hel"`)
		writeFrame(w, "token", `"lo"`)
		writeFrame(w, "done", `{}`)
	}))
	defer srv.Close()

	var progress []string
	req := messages.ChatRequest{Text: "hi", Mode: messages.ModeCode, Model: "echo/words", Ephemeral: true}
	text, err := New(srv.URL).Stream(context.Background(), req, stream.Handlers{
		OnProgress: func(s string) { progress = append(progress, s) },
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if text != "Hello" {
		t.Errorf("text = %q", text)
	}
	if diff := cmp.Diff([]string{"Hel", "Hello"}, progress); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(req, got); diff != "" {
		t.Errorf("request body mismatch (-want +got):\n%s", diff)
	}
}

func TestStreamNon2xxIsTransportError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantBody string
	}{
		{"empty prompt", http.StatusBadRequest, `{"error":"empty"}`, "empty"},
		{"plain body", http.StatusBadGateway, "upstream down", "upstream down"},
		{"no body", http.StatusServiceUnavailable, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			called := false
			text, err := New(srv.URL).Stream(context.Background(), messages.ChatRequest{Text: "x"}, stream.Handlers{
				OnProgress: func(string) { called = true },
				OnEvent:    func(stream.Event) { called = true },
			})

			var te *stream.TransportError
			if !errors.As(err, &te) {
				t.Fatalf("expected *stream.TransportError, got %T: %v", err, err)
			}
			if te.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", te.StatusCode, tt.status)
			}
			if te.Body != tt.wantBody {
				t.Errorf("Body = %q, want %q", te.Body, tt.wantBody)
			}
			if text != "" || called {
				t.Errorf("decoder should not have run: text=%q called=%v", text, called)
			}
		})
	}
}

func TestStreamNetworkFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).Stream(context.Background(), messages.ChatRequest{Text: "x"}, stream.Handlers{})
	var te *stream.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *stream.TransportError, got %T: %v", err, err)
	}
	if te.StatusCode != 0 || te.Err == nil {
		t.Errorf("unexpected transport error %+v", te)
	}
}

func TestStreamMidStreamDropKeepsPartial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Error("response writer cannot hijack")
			return
		}
		conn, bw, err := hj.Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		defer conn.Close()

		// Chunked response cut off before its terminating chunk
		body := "event: token\ndata: \"Hel\"\n\nevent: token\ndata: \"lo\"\n\n"
		fmt.Fprintf(bw, "HTTP/1.1 200 OK\r\nContent-Type: text/event-stream\r\nTransfer-Encoding: chunked\r\n\r\n")
		fmt.Fprintf(bw, "%x\r\n%s\r\n", len(body), body)
		bw.Flush()
	}))
	defer srv.Close()

	text, err := New(srv.URL).Stream(context.Background(), messages.ChatRequest{Text: "x"}, stream.Handlers{})

	var si *stream.StreamInterruptedError
	if !errors.As(err, &si) {
		t.Fatalf("expected *stream.StreamInterruptedError, got %T: %v", err, err)
	}
	if si.Partial != "Hello" || text != "Hello" {
		t.Errorf("partial = %q, text = %q; want Hello", si.Partial, text)
	}
}

func TestStreamCancellationKeepsPartial(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFrame(w, "token", `"Hel"`)
		writeFrame(w, "token", `"lo"`)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var progress []string
	text, err := New(srv.URL).Stream(ctx, messages.ChatRequest{Text: "x"}, stream.Handlers{
		OnProgress: func(s string) {
			progress = append(progress, s)
			if s == "Hello" {
				cancel()
			}
		},
	})
	if err != nil {
		t.Fatalf("cancelled stream returned error: %v", err)
	}
	if text != "Hello" {
		t.Errorf("text = %q, want Hello", text)
	}
	if diff := cmp.Diff([]string{"Hel", "Hello"}, progress); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
}

type recordingSurface struct {
	messages.BaseEventProcessor
	titles []messages.TitleUpdate
	errs   []error
}

func (s *recordingSurface) OnTitle(u messages.TitleUpdate) { s.titles = append(s.titles, u) }
func (s *recordingSurface) OnError(err error)              { s.errs = append(s.errs, err) }

func TestStreamWithSurface(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeFrame(w, "title", `{"id":"c1","title":"Hi"}`)
		writeFrame(w, "token", `"Hi"`)
		writeFrame(w, "error", `"boom"`)
		writeFrame(w, "done", `{}`)
	}))
	defer srv.Close()

	s := &recordingSurface{}
	text, err := New(srv.URL).StreamWith(context.Background(), messages.ChatRequest{Text: "Hi"}, s)
	if err != nil {
		t.Fatalf("StreamWith: %v", err)
	}
	if want := "Hi\n\n⚠️ boom"; text != want || s.GetResponse() != want {
		t.Errorf("text = %q, response = %q", text, s.GetResponse())
	}
	if diff := cmp.Diff([]messages.TitleUpdate{{ID: "c1", Title: "Hi"}}, s.titles); diff != "" {
		t.Errorf("titles mismatch (-want +got):\n%s", diff)
	}
	if len(s.errs) != 1 || s.errs[0].Error() != "boom" {
		t.Errorf("errors = %v", s.errs)
	}
}

func TestJSONEndpoints(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/conversations", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]messages.Conversation{{ID: "a1", Title: "first", CreatedAt: created, MessageCount: 2}})
	})
	mux.HandleFunc("GET /api/models", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]messages.Model{{ID: "echo/words", Name: "Echo", Provider: "echo"}})
	})
	mux.HandleFunc("GET /api/model/current", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `"echo/words"`)
	})
	mux.HandleFunc("GET /api/current-conv-id", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `null`)
	})
	mux.HandleFunc("POST /api/conversations/delete", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"conversation not found"}`)
	})
	mux.HandleFunc("POST /api/upload", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		json.NewEncoder(w).Encode(messages.UploadResult{
			Text: string(data),
			Type: "text",
			Meta: messages.UploadMeta{Name: hdr.Filename, Size: int64(len(data))},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, WithTimeout(5*time.Second))
	ctx := context.Background()

	convs, err := c.Conversations(ctx)
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if diff := cmp.Diff([]messages.Conversation{{ID: "a1", Title: "first", CreatedAt: created, MessageCount: 2}}, convs); diff != "" {
		t.Errorf("conversations mismatch (-want +got):\n%s", diff)
	}

	models, err := c.Models(ctx)
	if err != nil || len(models) != 1 || models[0].ID != "echo/words" {
		t.Errorf("Models = %v, %v", models, err)
	}

	model, err := c.CurrentModel(ctx)
	if err != nil || model != "echo/words" {
		t.Errorf("CurrentModel = %q, %v", model, err)
	}

	id, err := c.CurrentConversationID(ctx)
	if err != nil || id != "" {
		t.Errorf("CurrentConversationID = %q, %v", id, err)
	}

	err = c.DeleteConversation(ctx, "missing")
	var te *stream.TransportError
	if !errors.As(err, &te) || te.StatusCode != http.StatusNotFound || te.Body != "conversation not found" {
		t.Errorf("DeleteConversation error = %v", err)
	}

	res, err := c.Upload(ctx, "notes.txt", strings.NewReader("hello file"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.Meta.Name != "notes.txt" || res.Text != "hello file" || res.Meta.Size != 10 {
		t.Errorf("Upload = %+v", res)
	}
}
