package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/alexschlessinger/deskchat/llm"
	"github.com/alexschlessinger/deskchat/messages"
	"github.com/alexschlessinger/deskchat/sessions"
	"github.com/alexschlessinger/deskchat/stream"
)

// chat streams one reply as an event stream. Persistent requests are recorded
// in the current conversation; ephemeral ones leave history untouched.
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req messages.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "empty")
		return
	}

	mode, known := messages.ParseMode(string(req.Mode))
	if !known {
		s.logger.Debugw("server_unknown_mode", "mode", req.Mode)
		mode = messages.ModeChat
	}

	userMsg := messages.ChatMessage{Role: messages.MessageRoleUser, Content: text}
	model := strings.TrimSpace(req.Model)

	var conv *sessions.Conversation
	var history []messages.ChatMessage
	if req.Ephemeral {
		history = []messages.ChatMessage{userMsg}
		if model == "" {
			s.mu.Lock()
			model = s.currentModelLocked()
			s.mu.Unlock()
		}
	} else {
		var err error
		conv, err = s.appendToCurrent(userMsg)
		if err != nil {
			s.storeError(w, err)
			return
		}
		if err := s.store.Update(conv.ID, &sessions.Metadata{Mode: string(mode), WebSearch: req.WebSearch}); err != nil {
			s.logger.Warnw("server_metadata_update_failed", "id", conv.ID, "error", err)
		}
		history = conv.History
		if model == "" {
			model = conv.Model()
		}
		if model == "" {
			s.mu.Lock()
			model = s.model
			s.mu.Unlock()
		}
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	convID := ""
	if conv != nil {
		convID = conv.ID
		if err := sse.Send(stream.EventTitle, messages.TitleUpdate{ID: conv.ID, Title: conv.Title()}); err != nil {
			s.logger.Debugw("server_chat_client_gone", "id", convID, "error", err)
			return
		}
	}

	ctx := r.Context()
	start := time.Now()
	s.logger.Infow("server_chat_started",
		"id", convID,
		"model", model,
		"mode", mode,
		"ephemeral", req.Ephemeral,
		"web_search", req.WebSearch,
		"history", len(history),
	)

	creq := &llm.CompletionRequest{
		Model:          model,
		Messages:       withSystemPrompt(mode, history),
		Temperature:    s.cfg.Temperature,
		MaxTokens:      s.cfg.MaxTokens,
		Timeout:        s.cfg.Timeout,
		ThinkingEffort: llm.ThinkingForMode(mode),
		StripThinking:  s.cfg.StripThinking,
	}

	var reply strings.Builder
	var failed bool
	var writeErr error
	for ev := range s.provider.ChatCompletionStream(ctx, creq, messages.NewStreamProcessor()) {
		// Keep draining after the client leaves so the provider goroutines finish
		if writeErr != nil {
			continue
		}
		switch ev.Type {
		case messages.EventTypeToken:
			reply.WriteString(ev.Content)
			writeErr = sse.Token(ev.Content)
		case messages.EventTypeError:
			failed = true
			s.logger.Warnw("server_chat_upstream_error", "id", convID, "model", model, "error", ev.Error)
			writeErr = sse.Error(ev.Error.Error())
		}
	}

	if writeErr != nil || ctx.Err() != nil {
		s.logger.Infow("server_chat_aborted", "id", convID, "partial_length", reply.Len(), "error", writeErr)
		return
	}

	if conv != nil && !failed {
		assistant := messages.ChatMessage{Role: messages.MessageRoleAssistant, Content: reply.String()}
		if _, err := s.store.Append(conv.ID, assistant); err != nil {
			s.logger.Errorw("server_reply_not_saved", "id", conv.ID, "error", err)
		}
	}

	if err := sse.Done(); err != nil {
		s.logger.Debugw("server_chat_client_gone", "id", convID, "error", err)
	}
	s.logger.Infow("server_chat_finished",
		"id", convID,
		"length", reply.Len(),
		"failed", failed,
		"duration", time.Since(start),
	)
}

func withSystemPrompt(mode messages.Mode, history []messages.ChatMessage) []messages.ChatMessage {
	out := make([]messages.ChatMessage, 0, len(history)+1)
	out = append(out, messages.ChatMessage{Role: messages.MessageRoleSystem, Content: SystemPrompt(mode)})
	return append(out, history...)
}
