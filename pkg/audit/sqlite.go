// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"database/sql"
	"errors"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists admission decisions in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a SQLite-backed decision store and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureAdmissionSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func ensureAdmissionSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS admission_decisions (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL,
			session_id     TEXT NOT NULL,
			agent_name     TEXT NOT NULL,
			allowed        INTEGER NOT NULL,
			interceptor_id TEXT NOT NULL DEFAULT '',
			reason         TEXT NOT NULL DEFAULT '',
			input          TEXT NOT NULL DEFAULT '',
			document_mode  INTEGER NOT NULL DEFAULT 0,
			occurred_at    TIMESTAMP NOT NULL
		)
	`)
	return err
}

// Record stores a single decision.
func (s *SQLiteStore) Record(ctx context.Context, d Decision) error {
	d = normalizeDecision(d)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admission_decisions (
			id, user_id, session_id, agent_name, allowed, interceptor_id, reason, input, document_mode, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.ID,
		d.UserID,
		d.SessionID,
		d.AgentName,
		boolToInt(d.Allowed),
		d.InterceptorID,
		d.Reason,
		d.Input,
		boolToInt(d.DocumentMode),
		normalizeTime(d.OccurredAt),
	)
	return err
}

// List returns decisions matching the filter, oldest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Decision, error) {
	query := `
		SELECT id, user_id, session_id, agent_name, allowed, interceptor_id, reason, input, document_mode, occurred_at
		FROM admission_decisions
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.UserID != "" {
		addFilter("user_id = ?", filter.UserID)
	}
	if filter.SessionID != "" {
		addFilter("session_id = ?", filter.SessionID)
	}
	if filter.InterceptorID != "" {
		addFilter("interceptor_id = ?", filter.InterceptorID)
	}
	if filter.OnlyRejected {
		if where == "" {
			where = " WHERE allowed = 0"
		} else {
			where += " AND allowed = 0"
		}
	}
	query += where + " ORDER BY occurred_at ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []Decision
	for rows.Next() {
		var (
			d        Decision
			allowed  int
			document int
			occurred sql.NullTime
		)
		if err := rows.Scan(
			&d.ID,
			&d.UserID,
			&d.SessionID,
			&d.AgentName,
			&allowed,
			&d.InterceptorID,
			&d.Reason,
			&d.Input,
			&document,
			&occurred,
		); err != nil {
			return nil, err
		}
		d.Allowed = allowed != 0
		d.DocumentMode = document != 0
		if occurred.Valid {
			d.OccurredAt = occurred.Time
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
