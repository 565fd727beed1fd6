// Package realtime implements the row-level change feed consumed by live views.
//
// Writers (database triggers, other service instances) emit Events; drivers turn
// them into Hub.Publish calls; consumers hold a Subscription per live view.
package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultChannel is the notification channel the notify_table_change triggers
// in migrations/0001_init.sql publish on.
const DefaultChannel = "table_changes"

// Change operations. OpResync is synthesised by drivers after a reconnect, when
// notifications may have been lost, and matches every subscription.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
	OpResync = "RESYNC"
)

// Event describes one row-level change.
type Event struct {
	Table     string `json:"table"`
	Op        string `json:"op"`
	ID        string `json:"id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	StudentID string `json:"student_id,omitempty"`
}

// Field returns the value of a filterable column.
func (e Event) Field(column string) (string, bool) {
	switch column {
	case "id":
		return e.ID, true
	case "user_id":
		return e.UserID, true
	case "student_id":
		return e.StudentID, true
	}
	return "", false
}

// Filter restricts a subscription to a table, optionally to rows where Column = Value.
type Filter struct {
	Table  string
	Column string
	Value  string
}

// Table subscribes to every change on table.
func Table(table string) Filter {
	return Filter{Table: table}
}

// Where subscribes to changes on table rows whose column equals value.
func Where(table, column, value string) Filter {
	return Filter{Table: table, Column: column, Value: value}
}

// Matches reports whether e should be delivered to a subscription holding f.
func (f Filter) Matches(e Event) bool {
	if e.Op == OpResync {
		return true
	}
	if !strings.EqualFold(f.Table, e.Table) {
		return false
	}
	if f.Column == "" {
		return true
	}
	v, ok := e.Field(f.Column)
	return ok && v == f.Value
}

func (f Filter) String() string {
	if f.Column == "" {
		return f.Table
	}
	return fmt.Sprintf("%s:%s=eq.%s", f.Table, f.Column, f.Value)
}

// ParseEvent decodes a JSON notification payload.
func ParseEvent(raw []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, fmt.Errorf("decode change event: %w", err)
	}
	e.Op = strings.ToUpper(e.Op)
	// a resync is table-less; it is forwarded as is by bridges
	if e.Table == "" && e.Op != OpResync {
		return Event{}, fmt.Errorf("decode change event: missing table")
	}
	return e, nil
}
