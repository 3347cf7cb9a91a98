// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/campusworks/advisor/pkg/agent"
	"github.com/campusworks/advisor/pkg/session"
)

// stubResponder echoes a canned answer and records the last input.
type stubResponder struct {
	response string
	rejected bool
	err      error
	last     agent.TurnInput
}

func (s *stubResponder) Respond(_ context.Context, in agent.TurnInput) (*agent.TurnOutput, error) {
	s.last = in
	if s.err != nil {
		return nil, s.err
	}
	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = "generated-session"
	}
	return &agent.TurnOutput{
		Response:  s.response,
		UserID:    in.UserID,
		SessionID: sessionID,
		Rejected:  s.rejected,
	}, nil
}

func newTestServer(responder *stubResponder) (*Server, *session.Store) {
	sessions := session.NewStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(responder, sessions, logger), sessions
}

func postJSON(t *testing.T, h http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChat(t *testing.T) {
	responder := &stubResponder{response: "CS521 is offered in the fall."}
	srv, _ := newTestServer(responder)

	rec := postJSON(t, srv.Handler(), "/chat", ChatRequest{
		Message: "when is CS521 offered?",
		UserID:  "alice",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Response != "CS521 is offered in the fall." {
		t.Errorf("unexpected response: %q", resp.Response)
	}
	if resp.SessionID == "" {
		t.Error("expected a session id")
	}
	if responder.last.DocumentUpload {
		t.Error("chat turn should not be flagged as document upload")
	}
}

func TestChatDefaultsUserID(t *testing.T) {
	responder := &stubResponder{response: "hi"}
	srv, _ := newTestServer(responder)

	rec := postJSON(t, srv.Handler(), "/chat", ChatRequest{Message: "hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if responder.last.UserID != "web_user" {
		t.Errorf("expected web_user default, got %q", responder.last.UserID)
	}
}

func TestChatMissingMessage(t *testing.T) {
	srv, _ := newTestServer(&stubResponder{})

	rec := postJSON(t, srv.Handler(), "/chat", ChatRequest{Message: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestChatRejectionIsNormalResponse(t *testing.T) {
	refusal := "I'm receiving too many requests right now. Please wait 42 seconds before trying again."
	responder := &stubResponder{response: refusal, rejected: true}
	srv, _ := newTestServer(responder)

	rec := postJSON(t, srv.Handler(), "/chat", ChatRequest{Message: "hello", UserID: "bob"})
	// Refusals ride a normal 200 chat response so the client renders them
	// like any other reply.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Response != refusal {
		t.Errorf("refusal not forwarded verbatim: %q", resp.Response)
	}
}

func uploadRequest(t *testing.T, filename, fileType, userID string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if fileType != "" {
		mw.WriteField("file_type", fileType)
	}
	if userID != "" {
		mw.WriteField("user_id", userID)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload-document", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadDocument(t *testing.T) {
	responder := &stubResponder{response: "Your transcript looks complete."}
	srv, _ := newTestServer(responder)

	req := uploadRequest(t, "transcript.txt", "", "carol", []byte("completed CS521 and CS633"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp DocumentUploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success {
		t.Error("expected success")
	}
	if resp.ExtractedText != "completed CS521 and CS633" {
		t.Errorf("unexpected extracted text: %q", resp.ExtractedText)
	}
	if resp.CharacterCount != len(resp.ExtractedText) {
		t.Errorf("character count mismatch: %d", resp.CharacterCount)
	}
	// The turn reaching the agent is flagged as a document upload so the
	// larger token ceiling applies.
	if !responder.last.DocumentUpload {
		t.Error("expected document upload flag on the turn")
	}
	if responder.last.UserID != "carol" {
		t.Errorf("unexpected user id: %q", responder.last.UserID)
	}
}

func TestUploadDocumentRejected(t *testing.T) {
	refusal := "I cannot process this document upload as it exceeds the token limit of 3500. Please try a shorter input."
	responder := &stubResponder{response: refusal, rejected: true}
	srv, _ := newTestServer(responder)

	req := uploadRequest(t, "notes.txt", "txt", "", []byte("some notes"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp DocumentUploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success {
		t.Error("expected success=false for a rejected upload")
	}
	if resp.Message != refusal {
		t.Errorf("refusal not forwarded: %q", resp.Message)
	}
}

func TestUploadDocumentUnsupportedType(t *testing.T) {
	srv, _ := newTestServer(&stubResponder{})

	req := uploadRequest(t, "report.pdf", "", "", []byte("%PDF-1.4"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "unsupported file type") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(&stubResponder{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestSessionsAndDelete(t *testing.T) {
	srv, sessions := newTestServer(&stubResponder{})
	sessions.GetOrCreate(context.Background(), "alice", "s1")

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "alice_s1") {
		t.Errorf("expected session key in listing: %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/session/alice/s1", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/session/alice/s1", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing session, got %d", rec.Code)
	}
}
