package models

import (
	"encoding/json"
	"time"
)

// Collection names
const (
	CollectionProducts            = "products"
	CollectionCategories          = "categories"
	CollectionVendors             = "vendors"
	CollectionOrders              = "orders"
	CollectionInventory           = "inventory"
	CollectionNotifications       = "notifications"
	CollectionAuditLogs           = "audit_logs"
	CollectionNotificationHistory = "notification_history"
	CollectionBackups             = "backups"
	CollectionReports             = "reports"
	CollectionUsers               = "users"
)

// TrackedCollections are the collections included in a full backup.
var TrackedCollections = []string{
	CollectionProducts,
	CollectionCategories,
	CollectionVendors,
	CollectionOrders,
	CollectionInventory,
	CollectionNotifications,
	CollectionAuditLogs,
	CollectionReports,
}

// TimeLayout is fixed width so timestamps stored as strings order lexically.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t in TimeLayout (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime accepts TimeLayout and RFC 3339 timestamps.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

type serverTimestamp struct{}

func (serverTimestamp) MarshalJSON() ([]byte, error) {
	return []byte(`null`), nil
}

// ServerTimestamp is a placeholder field value the store replaces with its
// own clock when the document is written.
var ServerTimestamp = serverTimestamp{}

// IsServerTimestamp reports whether v is the ServerTimestamp placeholder.
func IsServerTimestamp(v any) bool {
	_, ok := v.(serverTimestamp)
	return ok
}

// Document is a schemaless record. The "id" key carries the identifier once
// the document has been read back from a store.
type Document map[string]any

// ID returns the document identifier.
func (d Document) ID() string {
	return ToString(d["id"])
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneMap(d)
}

// Without returns a copy of d without the given keys.
func (d Document) Without(keys ...string) Document {
	out := d.Clone()
	if out == nil {
		out = Document{}
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Merge returns a copy of d with fields applied on top.
func (d Document) Merge(fields map[string]any) Document {
	out := d.Clone()
	if out == nil {
		out = Document{}
	}
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

// ResolveTimestamps replaces every ServerTimestamp placeholder in d,
// including nested maps, with now.
func (d Document) ResolveTimestamps(now time.Time) {
	resolve(d, FormatTime(now))
}

// HasServerTimestamps reports whether any placeholder remains in d.
func (d Document) HasServerTimestamps() bool {
	return hasPlaceholder(d)
}

// DecodeDocuments converts a JSON array of objects into documents.
func DecodeDocuments(data []byte) ([]Document, error) {
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func resolve(m map[string]any, ts string) {
	for k, v := range m {
		if IsServerTimestamp(v) {
			m[k] = ts
			continue
		}
		switch nested := v.(type) {
		case map[string]any:
			resolve(nested, ts)
		case Document:
			resolve(nested, ts)
		}
	}
}

func hasPlaceholder(m map[string]any) bool {
	for _, v := range m {
		if IsServerTimestamp(v) {
			return true
		}
		if nested := ToMap(v); nested != nil && hasPlaceholder(nested) {
			return true
		}
	}
	return false
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return Document(cloneMap(t))
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i := range t {
			out[i] = cloneMap(t[i])
		}
		return out
	default:
		return v
	}
}
