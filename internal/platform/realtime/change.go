// Package realtime delivers row-change notifications to WebSocket clients.
// Clients subscribe to a table ("appointments") or to a filtered topic
// ("appointments:doctor_id=eq.<uuid>") and refetch whenever an event arrives.
package realtime

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Change describes one committed write. Filters holds the row's foreign-key
// columns that clients may filter on, e.g. {"patient_id": "..."}.
type Change struct {
	Table     string            `json:"table"`
	Op        Op                `json:"op"`
	ID        string            `json:"id,omitempty"`
	Filters   map[string]string `json:"filters,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Publisher is implemented by the Hub (single instance) and the RedisBridge
// (multi instance). Publishing is best effort and never fails the write.
type Publisher interface {
	Publish(ctx context.Context, change Change)
}

// Nop discards changes.
type Nop struct{}

func (Nop) Publish(context.Context, Change) {}

// Topics returns the table topic followed by one filtered topic per filter
// column, in column order.
func (c Change) Topics() []string {
	topics := []string{c.Table}
	cols := make([]string, 0, len(c.Filters))
	for col := range c.Filters {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		if v := c.Filters[col]; v != "" {
			topics = append(topics, FilterTopic(c.Table, col, v))
		}
	}
	return topics
}

// FilterTopic formats "<table>:<column>=eq.<value>".
func FilterTopic(table, column, value string) string {
	return fmt.Sprintf("%s:%s=eq.%s", table, column, value)
}

// Topic is a parsed subscription topic. Column and Value are empty for a
// whole-table topic.
type Topic struct {
	Table  string
	Column string
	Value  string
}

// ParseTopic validates and splits a subscription topic.
func ParseTopic(s string) (Topic, error) {
	table, filter, hasFilter := strings.Cut(s, ":")
	if !validIdent(table) {
		return Topic{}, fmt.Errorf("invalid topic table %q", table)
	}
	if !hasFilter {
		return Topic{Table: table}, nil
	}

	col, rest, ok := strings.Cut(filter, "=")
	if !ok || !validIdent(col) {
		return Topic{}, fmt.Errorf("invalid topic filter %q", filter)
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok || value == "" {
		return Topic{}, fmt.Errorf("only eq filters are supported: %q", filter)
	}
	return Topic{Table: table, Column: col, Value: value}, nil
}

func validIdent(s string) bool {
	if s == "" || len(s) > 63 {
		return false
	}
	for _, r := range s {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
