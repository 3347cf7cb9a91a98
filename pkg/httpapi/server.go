// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpapi exposes the advising assistant over HTTP+JSON.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/campusworks/advisor/pkg/agent"
	"github.com/campusworks/advisor/pkg/document"
	"github.com/campusworks/advisor/pkg/errors"
	"github.com/campusworks/advisor/pkg/session"
)

// maxUploadBytes bounds multipart uploads before extraction.
const maxUploadBytes = 10 << 20

// Responder handles one conversational turn. Both Advisor and Orchestrator
// satisfy it.
type Responder interface {
	Respond(ctx context.Context, in agent.TurnInput) (*agent.TurnOutput, error)
}

// Server routes HTTP requests to the advising agents.
type Server struct {
	responder Responder
	sessions  *session.Store
	logger    *slog.Logger
}

// New creates the HTTP server surface.
func New(responder Responder, sessions *session.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{responder: responder, sessions: sessions, logger: logger}
}

// ChatRequest is the POST /chat payload.
type ChatRequest struct {
	Message          string `json:"message"`
	UserID           string `json:"user_id,omitempty"`
	SessionID        string `json:"session_id,omitempty"`
	IsDocumentUpload bool   `json:"is_document_upload,omitempty"`
}

// ChatResponse is the POST /chat reply. Admission refusals arrive here as a
// normal response carrying the refusal text.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// DocumentUploadResponse is the POST /upload-document reply.
type DocumentUploadResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	ExtractedText  string `json:"extracted_text"`
	CharacterCount int    `json:"character_count"`
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /upload-document", s.handleUploadDocument)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /sessions", s.handleSessions)
	mux.HandleFunc("DELETE /session/{user_id}/{session_id}", s.handleDeleteSession)
	return mux
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.New(errors.CodeInvalidInput, "invalid request body", err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, errors.New(errors.CodeInvalidInput, "message is required", nil))
		return
	}
	if req.UserID == "" {
		req.UserID = "web_user"
	}

	out, err := s.responder.Respond(r.Context(), agent.TurnInput{
		UserID:         req.UserID,
		SessionID:      req.SessionID,
		Message:        req.Message,
		DocumentUpload: req.IsDocumentUpload,
	})
	if err != nil {
		s.logger.Error("httpapi.chat.failed",
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Response:  out.Response,
		SessionID: out.SessionID,
		UserID:    out.UserID,
	})
}

// handleUploadDocument extracts text from the uploaded file and runs it
// through a chat turn flagged as a document upload.
func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, errors.New(errors.CodeInvalidInput, "invalid multipart form", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, errors.New(errors.CodeInvalidInput, "file field is required", err))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, errors.New(errors.CodeInvalidInput, "cannot read upload", err))
		return
	}

	fileType := r.FormValue("file_type")
	if fileType == "" {
		fileType = extensionOf(header.Filename)
	}

	text, err := document.Parse(content, fileType)
	if err != nil {
		writeError(w, err)
		return
	}

	userID := r.FormValue("user_id")
	if userID == "" {
		userID = "web_user"
	}

	out, err := s.responder.Respond(r.Context(), agent.TurnInput{
		UserID:         userID,
		SessionID:      r.FormValue("session_id"),
		Message:        text,
		DocumentUpload: true,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, DocumentUploadResponse{
		Success:        !out.Rejected,
		Message:        out.Response,
		ExtractedText:  text,
		CharacterCount: len(text),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	keys := s.sessions.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"active_sessions": keys,
		"count":           len(keys),
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	sessionID := r.PathValue("session_id")
	if !s.sessions.Delete(r.Context(), userID, sessionID) {
		writeError(w, errors.New(errors.CodeNotFound, "session not found", nil).
			WithContext("user_id", userID).
			WithContext("session_id", sessionID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "session deleted"})
}

func extensionOf(filename string) string {
	if i := strings.LastIndex(filename, "."); i >= 0 {
		return strings.ToLower(filename[i+1:])
	}
	return ""
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	ae := errors.AsAdvisorError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ae.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": ae})
}
