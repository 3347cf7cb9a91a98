// Copyright 2026 © The Advisor Authors
// SPDX-License-Identifier: Apache-2.0

// Package tools holds the advising tools the agents can call and the
// course-catalog store backing them.
package tools

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/campusworks/advisor/pkg/errors"
)

// Course is one catalog entry.
type Course struct {
	CourseNumber  string `json:"course_number"`
	CourseName    string `json:"course_name"`
	CourseDetails string `json:"course_details,omitempty"`
}

// ScheduleEntry is one meeting of a course.
type ScheduleEntry struct {
	SessionNumber string `json:"session_number"`
	CourseNumber  string `json:"course_number"`
	DayOfWeek     string `json:"day_of_week"`
	Location      string `json:"location"`
}

// Catalog is the sqlite-backed course catalog.
type Catalog struct {
	db *sql.DB
}

// OpenCatalog opens (or creates) a catalog database at the given path.
// Use ":memory:" for an ephemeral catalog.
func OpenCatalog(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "open catalog database", err)
	}
	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS courses (
	course_number  TEXT PRIMARY KEY,
	course_name    TEXT NOT NULL,
	course_details TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS schedule (
	session_number TEXT NOT NULL,
	course_number  TEXT NOT NULL REFERENCES courses(course_number),
	day_of_week    TEXT NOT NULL,
	location       TEXT NOT NULL,
	PRIMARY KEY (session_number, course_number)
);
CREATE TABLE IF NOT EXISTS faq (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	question TEXT NOT NULL,
	answer   TEXT NOT NULL
);`
	if _, err := c.db.Exec(schema); err != nil {
		return errors.New(errors.CodeInternal, "migrate catalog schema", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// DB exposes the handle so other stores can share the same database file.
func (c *Catalog) DB() *sql.DB {
	return c.db
}

// AddCourse inserts or replaces a catalog entry.
func (c *Catalog) AddCourse(ctx context.Context, course Course) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO courses (course_number, course_name, course_details) VALUES (?, ?, ?)`,
		course.CourseNumber, course.CourseName, course.CourseDetails)
	if err != nil {
		return errors.New(errors.CodeInternal, "insert course", err).
			WithContext("course_number", course.CourseNumber)
	}
	return nil
}

// AddSchedule inserts or replaces a schedule entry.
func (c *Catalog) AddSchedule(ctx context.Context, entry ScheduleEntry) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO schedule (session_number, course_number, day_of_week, location) VALUES (?, ?, ?, ?)`,
		entry.SessionNumber, entry.CourseNumber, entry.DayOfWeek, entry.Location)
	if err != nil {
		return errors.New(errors.CodeInternal, "insert schedule entry", err).
			WithContext("course_number", entry.CourseNumber)
	}
	return nil
}

// Courses lists all courses with number and name only, ordered by number.
func (c *Catalog) Courses(ctx context.Context) ([]Course, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT course_number, course_name FROM courses ORDER BY course_number`)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "query courses", err)
	}
	defer rows.Close()

	var out []Course
	for rows.Next() {
		var course Course
		if err := rows.Scan(&course.CourseNumber, &course.CourseName); err != nil {
			return nil, errors.New(errors.CodeInternal, "scan course row", err)
		}
		out = append(out, course)
	}
	return out, rows.Err()
}

// Course fetches the full record for a single course.
func (c *Catalog) Course(ctx context.Context, number string) (*Course, error) {
	var course Course
	err := c.db.QueryRowContext(ctx,
		`SELECT course_number, course_name, course_details FROM courses WHERE course_number = ?`,
		number).Scan(&course.CourseNumber, &course.CourseName, &course.CourseDetails)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.CodeNotFound,
			fmt.Sprintf("course number '%s' was not found in the catalog", number), nil).
			WithContext("course_number", number)
	}
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "query course", err)
	}
	return &course, nil
}

// Schedule returns the schedule entries for a course, ordered by session.
func (c *Catalog) Schedule(ctx context.Context, courseNumber string) ([]ScheduleEntry, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT session_number, course_number, day_of_week, location FROM schedule WHERE course_number = ? ORDER BY session_number`,
		courseNumber)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "query schedule", err)
	}
	defer rows.Close()

	var out []ScheduleEntry
	for rows.Next() {
		var entry ScheduleEntry
		if err := rows.Scan(&entry.SessionNumber, &entry.CourseNumber, &entry.DayOfWeek, &entry.Location); err != nil {
			return nil, errors.New(errors.CodeInternal, "scan schedule row", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// FAQEntry is one question/answer pair.
type FAQEntry struct {
	ID       int64  `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// AddFAQ inserts a question/answer pair.
func (c *Catalog) AddFAQ(ctx context.Context, question, answer string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO faq (question, answer) VALUES (?, ?)`, question, answer)
	if err != nil {
		return errors.New(errors.CodeInternal, "insert faq entry", err)
	}
	return nil
}

// SearchFAQ returns entries whose question or answer contains the term,
// case-insensitively.
func (c *Catalog) SearchFAQ(ctx context.Context, term string) ([]FAQEntry, error) {
	pattern := "%" + term + "%"
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, question, answer FROM faq WHERE question LIKE ? OR answer LIKE ? ORDER BY id`,
		pattern, pattern)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "search faq", err)
	}
	defer rows.Close()

	var out []FAQEntry
	for rows.Next() {
		var entry FAQEntry
		if err := rows.Scan(&entry.ID, &entry.Question, &entry.Answer); err != nil {
			return nil, errors.New(errors.CodeInternal, "scan faq row", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Seed loads a small starter catalog. Existing rows with matching keys are
// replaced, so calling it twice is harmless.
func (c *Catalog) Seed(ctx context.Context) error {
	courses := []Course{
		{"CS521", "Information Structures", "Data structures and algorithms with an emphasis on practical implementation. Prerequisite: CS200 or instructor consent."},
		{"CS633", "Software Quality, Testing, and Security Management", "Techniques for verifying software quality including unit, integration, and security testing. Prerequisite: CS521."},
		{"CS669", "Database Design and Implementation", "Relational modeling, normalization, SQL, and transaction management. No prerequisite."},
		{"CS682", "Information Systems Analysis and Design", "Requirements elicitation, system modeling, and architecture tradeoffs. Prerequisite: CS521."},
	}
	for _, course := range courses {
		if err := c.AddCourse(ctx, course); err != nil {
			return err
		}
	}

	entries := []ScheduleEntry{
		{"S1", "CS521", "Monday", "CAS 313"},
		{"S2", "CS521", "Wednesday", "CAS 313"},
		{"S1", "CS633", "Tuesday", "MET 101"},
		{"S1", "CS669", "Thursday", "MET 205"},
		{"S1", "CS682", "Friday", "CAS 116"},
	}
	for _, entry := range entries {
		if err := c.AddSchedule(ctx, entry); err != nil {
			return err
		}
	}

	// FAQ rows have no natural key, so only seed them once.
	var faqCount int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM faq`).Scan(&faqCount); err != nil {
		return errors.New(errors.CodeInternal, "count faq entries", err)
	}
	if faqCount > 0 {
		return nil
	}

	faqs := [][2]string{
		{"When are office hours?", "Office hours are Tuesday and Thursday, 4pm to 6pm, or by appointment."},
		{"What is the late submission policy?", "Assignments lose 10% per day late, up to three days. After that the grade is zero."},
		{"Is there a final exam in CS633?", "No. CS633 ends with a term project presented in the last week."},
	}
	for _, qa := range faqs {
		if err := c.AddFAQ(ctx, qa[0], qa[1]); err != nil {
			return err
		}
	}
	return nil
}
