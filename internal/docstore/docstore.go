// Package docstore defines the document store contract the feeds and the class
// directory read and write through, with postgres and in-memory implementations.
package docstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stemsi/classroom-client/internal/apperr"
)

// CreateTimeField orders by the server-assigned creation time instead of a field.
const CreateTimeField = "@created"

// Collection paths.
const (
	ClassesPath = "classes"
	UsersPath   = "users"
)

// AnnouncementsPath is the announcement sub-collection of a class.
func AnnouncementsPath(classID string) string {
	return ClassesPath + "/" + classID + "/announcements"
}

// AssignmentsPath is the assignment sub-collection of a class.
func AssignmentsPath(classID string) string {
	return ClassesPath + "/" + classID + "/assignments"
}

// Record is one stored document. Field values are JSON-shaped: numbers come
// back as float64, lists as []any.
type Record struct {
	ID         string
	Fields     map[string]any
	CreateTime time.Time
	UpdateTime time.Time
}

// String returns the string field key, or "" when absent or not a string.
func (r Record) String(key string) string {
	s, _ := r.Fields[key].(string)
	return s
}

// Int64 returns the numeric field key truncated to int64.
func (r Record) Int64(key string) int64 {
	switch v := r.Fields[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// Strings returns the string elements of the list field key.
func (r Record) Strings(key string) []string {
	raw, _ := r.Fields[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// OrderBy names the ordering of a query. Field is a document field or CreateTimeField.
type OrderBy struct {
	Field string
	Desc  bool
}

// FilterOp is the comparison a Filter applies.
type FilterOp int

const (
	OpEqual FilterOp = iota
	OpArrayContains
)

// Filter selects documents whose Field matches Value under Op.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// Cursor is the keyset position after the last returned record.
type Cursor struct {
	Value any    `json:"v"`
	ID    string `json:"id"`
}

// Encode renders the cursor as an opaque string.
func (c *Cursor) Encode() string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses a string produced by Encode.
func DecodeCursor(s string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, apperr.New(apperr.CodeBadCursor, "docstore.decode_cursor", err)
	}
	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil || c.ID == "" {
		return nil, apperr.New(apperr.CodeBadCursor, "docstore.decode_cursor", err)
	}
	return &c, nil
}

// Page is one query result. Next is nil once the collection is exhausted.
type Page struct {
	Records []Record
	Next    *Cursor
}

// Store is the document store contract.
type Store interface {
	// GetDocument returns nil, nil when the document does not exist.
	GetDocument(ctx context.Context, path, id string) (*Record, error)
	QueryPage(ctx context.Context, path string, order OrderBy, after *Cursor, pageSize int) (Page, error)
	QueryWhere(ctx context.Context, path string, filter Filter, order OrderBy) ([]Record, error)
	CreateDocument(ctx context.Context, path string, fields map[string]any) (string, error)
	SetDocument(ctx context.Context, path, id string, fields map[string]any) error
	// UpdateDocument merges fields into an existing document.
	UpdateDocument(ctx context.Context, path, id string, fields map[string]any) error
}

// cursorFor builds the keyset position of r under order.
func cursorFor(r Record, order OrderBy) *Cursor {
	if order.Field == CreateTimeField {
		return &Cursor{Value: r.CreateTime.UTC().Format(time.RFC3339Nano), ID: r.ID}
	}
	return &Cursor{Value: r.Fields[order.Field], ID: r.ID}
}

// normalize round-trips fields through JSON so every implementation hands back
// the same value shapes.
func normalize(fields map[string]any) (map[string]any, error) {
	if fields == nil {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	out := make(map[string]any, len(fields))
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return out, nil
}
