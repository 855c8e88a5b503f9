package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/alexschlessinger/deskchat/messages"
	"github.com/alexschlessinger/deskchat/sessions"
)

type idRequest struct {
	ID string `json:"id"`
}

type renameRequest struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type modelRequest struct {
	Model string `json:"model"`
}

var okResponse = map[string]bool{"ok": true}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.store.List()
	if err != nil {
		s.storeError(w, err)
		return
	}

	out := make([]messages.Conversation, 0, len(convs))
	for _, conv := range convs {
		out = append(out, conv.Summary())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) newConversation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	conv, err := s.store.Create(s.model)
	if err == nil {
		s.currentID = conv.ID
	}
	s.mu.Unlock()

	if err != nil {
		s.storeError(w, err)
		return
	}
	s.logger.Infow("server_conversation_created", "id", conv.ID)
	writeJSON(w, http.StatusOK, messages.TitleUpdate{ID: conv.ID, Title: conv.Title()})
}

func (s *Server) switchConversation(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := s.store.Get(req.ID)
	if err != nil {
		s.storeError(w, err)
		return
	}

	s.mu.Lock()
	s.currentID = conv.ID
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, conv.History)
}

func (s *Server) deleteConversation(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	err := s.store.Delete(req.ID)
	if err == nil && s.currentID == req.ID {
		s.currentID = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.storeError(w, err)
		return
	}
	s.logger.Infow("server_conversation_deleted", "id", req.ID)
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) renameConversation(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeError(w, http.StatusBadRequest, "empty title")
		return
	}

	if err := s.store.Rename(req.ID, title); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) currentConversationID(w http.ResponseWriter, r *http.Request) {
	id := s.CurrentID()
	if id == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, id)
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Models)
}

// setModel changes the default model and rebinds the current conversation
func (s *Server) setModel(w http.ResponseWriter, r *http.Request) {
	var req modelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		writeError(w, http.StatusBadRequest, "empty model")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.model = model
	if s.currentID != "" {
		if err := s.store.SetModel(s.currentID, model); err != nil && !errors.Is(err, sessions.ErrNotFound) {
			s.storeError(w, err)
			return
		}
	}
	s.logger.Infow("server_model_set", "model", model)
	writeJSON(w, http.StatusOK, okResponse)
}

func (s *Server) currentModel(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	model := s.currentModelLocked()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, model)
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sessions.ErrNotFound):
		writeError(w, http.StatusNotFound, sessions.ErrNotFound.Error())
		return
	case errors.Is(err, sessions.ErrInvalidID):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Errorw("server_store_failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}
