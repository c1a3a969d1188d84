package backend

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is returned when the backend answers 404.
var ErrNotFound = errors.New("not found")

// RowError is one rejected cell, as reported by the backend. Register is
// the row number within the submitted batch.
type RowError struct {
	Register int    `json:"register"`
	Message  string `json:"message"`
}

// ColumnDetail groups the row errors of one column.
type ColumnDetail struct {
	Column string     `json:"column"`
	Errors []RowError `json:"errors"`
}

// RejectionError is a 400 from the record load endpoint. Nothing from the
// batch was stored.
type RejectionError struct {
	Message string         `json:"message,omitempty"`
	Details []ColumnDetail `json:"details"`
}

func (e *RejectionError) Error() string {
	n := 0
	for _, d := range e.Details {
		n += len(d.Errors)
	}
	if e.Message != "" {
		return fmt.Sprintf("records rejected: %s (%d errors)", e.Message, n)
	}
	return fmt.Sprintf("records rejected: %d errors in %d columns", n, len(e.Details))
}

// FieldErrors maps column names to their row errors, sorted by row.
func (e *RejectionError) FieldErrors() map[string][]RowError {
	out := make(map[string][]RowError, len(e.Details))
	for _, d := range e.Details {
		out[d.Column] = append(out[d.Column], d.Errors...)
	}
	for col := range out {
		sort.SliceStable(out[col], func(i, j int) bool {
			return out[col][i].Register < out[col][j].Register
		})
	}
	return out
}

// StatusError is any other unexpected status code.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("%s: backend returned status %d: %s", e.Op, e.Status, body)
}

// Unwrap lets errors.Is match ErrNotFound on 404s.
func (e *StatusError) Unwrap() error {
	if e.Status == 404 {
		return ErrNotFound
	}
	return nil
}
