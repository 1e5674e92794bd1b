// Package docstore defines the document store contract the ward domains are
// written against: point reads, filtered queries, live change subscriptions,
// and atomic multi-document batch writes. Two implementations are provided, a
// PostgreSQL JSONB backend for deployment and an in-memory backend for tests.
package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get for a missing document.
	ErrNotFound = errors.New("document not found")

	// ErrConflict is returned by Batch.Commit when a Delete or Update names a
	// document that no longer exists. A supersede that races another writer
	// fails with this error instead of silently clobbering the other write.
	ErrConflict = errors.New("document missing or superseded")
)

// Document is a single schemaless record in a named collection.
type Document struct {
	Collection string
	ID         string
	Data       map[string]interface{}
	UpdatedAt  time.Time
}

// Op is a filter comparison operator.
type Op string

const (
	OpEqual   Op = "=="
	OpGreater Op = ">="
	OpLess    Op = "<"
	OpIn      Op = "in"
)

// Filter restricts a query to documents whose field satisfies Op against Value.
type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

// Order sorts query results by a single field.
type Order struct {
	Field string
	Desc  bool
}

// ChangeFunc receives documents added or modified by a committed batch, and
// the IDs of documents the batch removed.
type ChangeFunc func(changed []Document, removed []string)

// Subscription is a live query registration; Cancel stops delivery.
type Subscription interface {
	Cancel()
}

// Batch accumulates writes that Commit applies atomically: either every
// operation takes effect or none do.
type Batch interface {
	Set(doc Document)
	Update(collection, id string, fields map[string]interface{})
	Delete(collection, id string)
	Commit(ctx context.Context) error
}

// Store is the document database client contract.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection string, filters []Filter, orderBy *Order, limit int) ([]Document, error)
	Subscribe(collection string, filters []Filter, fn ChangeFunc) Subscription
	Batch() Batch

	// ServerTimestamp returns an opaque marker resolved to the store's clock
	// at commit time.
	ServerTimestamp() interface{}
}

// serverTimestamp is the marker value returned by ServerTimestamp.
type serverTimestamp struct{}

// timeWire is the canonical fixed-width UTC encoding for time values stored
// in document data. Fixed width keeps lexicographic order equal to
// chronological order, which the PostgreSQL backend relies on for ORDER BY
// over JSONB text fields.
const timeWire = "2006-01-02T15:04:05.000000000Z"

// EncodeTime converts a time to its canonical stored representation.
func EncodeTime(t time.Time) string {
	return t.UTC().Format(timeWire)
}

// DecodeTime parses a stored time value.
func DecodeTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// resolveValues normalizes a data map for storage: server timestamp markers
// become now, and time values become their canonical string encoding. The
// input map is not modified.
func resolveValues(data map[string]interface{}, now time.Time) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = resolveValue(v, now)
	}
	return out
}

func resolveValue(v interface{}, now time.Time) interface{} {
	switch val := v.(type) {
	case serverTimestamp, *serverTimestamp:
		return EncodeTime(now)
	case time.Time:
		return EncodeTime(val)
	case map[string]interface{}:
		return resolveValues(val, now)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = resolveValue(item, now)
		}
		return out
	default:
		return v
	}
}

// copyData deep-copies a document data map so committed documents stay
// immutable even if the caller mutates its map afterwards.
func copyData(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return copyData(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
