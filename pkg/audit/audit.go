// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit records admission decisions for later review.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// inputAuditLimit caps how much of the user's text a decision retains.
const inputAuditLimit = 100

// Decision is the outcome of one admission check. Input holds at most the
// first 100 characters of the inspected text.
type Decision struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	SessionID     string    `json:"session_id"`
	AgentName     string    `json:"agent_name"`
	Allowed       bool      `json:"allowed"`
	InterceptorID string    `json:"interceptor_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Input         string    `json:"input,omitempty"`
	DocumentMode  bool      `json:"document_mode"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func normalizeDecision(d Decision) Decision {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if len(d.Input) > inputAuditLimit {
		d.Input = d.Input[:inputAuditLimit]
	}
	if d.OccurredAt.IsZero() {
		d.OccurredAt = time.Now().UTC()
	}
	return d
}

// Store persists admission decisions.
type Store interface {
	Record(ctx context.Context, d Decision) error
	List(ctx context.Context, filter Filter) ([]Decision, error)
}

// Filter limits decision queries.
type Filter struct {
	UserID        string
	SessionID     string
	InterceptorID string
	OnlyRejected  bool
	Limit         int
}

// MemoryStore keeps decisions in memory. Suitable for tests and for
// deployments that do not configure a database.
type MemoryStore struct {
	mu        sync.Mutex
	decisions []Decision
}

// NewMemoryStore returns an in-memory decision store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record appends a decision.
func (s *MemoryStore) Record(_ context.Context, d Decision) error {
	d = normalizeDecision(d)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = append(s.decisions, d)
	return nil
}

// List returns filtered decisions, oldest first.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Decision, 0, len(s.decisions))
	for _, d := range s.decisions {
		if filter.UserID != "" && d.UserID != filter.UserID {
			continue
		}
		if filter.SessionID != "" && d.SessionID != filter.SessionID {
			continue
		}
		if filter.InterceptorID != "" && d.InterceptorID != filter.InterceptorID {
			continue
		}
		if filter.OnlyRejected && d.Allowed {
			continue
		}
		out = append(out, d)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func normalizeTime(value time.Time) time.Time {
	if value.IsZero() {
		return time.Now().UTC()
	}
	return value.UTC()
}
