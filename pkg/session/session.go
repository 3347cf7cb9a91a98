// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

// Package session keeps per-user conversation state in memory.
// State lives for the process lifetime only; a restart starts fresh.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campusworks/advisor/pkg/errors"
)

// Message is a single conversation turn.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // system, user, assistant, tool
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is one user's conversation. A user may hold several sessions.
type Session struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`

	messages []Message
}

// Key returns the registry key for the session.
func (s *Session) Key() string {
	return s.UserID + "_" + s.SessionID
}

// Store is an in-memory session registry.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for the given user/session pair, creating
// it on first use. An empty sessionID gets a generated one; the final ID is
// returned so callers can hand it back to the client.
func (st *Store) GetOrCreate(_ context.Context, userID, sessionID string) (*Session, string) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	key := userID + "_" + sessionID
	if s, ok := st.sessions[key]; ok {
		return s, sessionID
	}
	s := &Session{
		UserID:    userID,
		SessionID: sessionID,
		CreatedAt: time.Now(),
	}
	st.sessions[key] = s
	return s, sessionID
}

// Append adds a message to the session's history.
func (st *Store) Append(_ context.Context, userID, sessionID string, msg Message) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[userID+"_"+sessionID]
	if !ok {
		return errors.New(errors.CodeNotFound, "session not found", nil).
			WithContext("user_id", userID).
			WithContext("session_id", sessionID)
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.messages = append(s.messages, msg)
	return nil
}

// Messages returns a copy of the session's history, oldest first.
// Unknown sessions yield an empty history.
func (st *Store) Messages(_ context.Context, userID, sessionID string) []Message {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[userID+"_"+sessionID]
	if !ok {
		return nil
	}
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Recent returns at most n of the newest messages, oldest first.
func (st *Store) Recent(ctx context.Context, userID, sessionID string, n int) []Message {
	msgs := st.Messages(ctx, userID, sessionID)
	if n <= 0 || n >= len(msgs) {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

// Delete removes a session. Returns false when it does not exist.
func (st *Store) Delete(_ context.Context, userID, sessionID string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	key := userID + "_" + sessionID
	if _, ok := st.sessions[key]; !ok {
		return false
	}
	delete(st.sessions, key)
	return true
}

// List returns all active session keys, sorted.
func (st *Store) List() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	keys := make([]string, 0, len(st.sessions))
	for k := range st.sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of active sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
