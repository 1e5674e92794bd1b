package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store on a single PostgreSQL JSONB table. Batches run in
// one transaction; deletes and updates of missing rows roll the whole batch
// back with ErrConflict.
type PGStore struct {
	pool        *pgxpool.Pool
	subscribers *subscriberSet
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool, subscribers: newSubscriberSet()}
}

func (s *PGStore) ServerTimestamp() interface{} {
	return serverTimestamp{}
}

func (s *PGStore) Get(ctx context.Context, collection, id string) (Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT data, updated_at FROM documents WHERE collection = $1 AND id = $2`,
		collection, id)

	var raw []byte
	var updatedAt time.Time
	if err := row.Scan(&raw, &updatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	data := make(map[string]interface{})
	if err := json.Unmarshal(raw, &data); err != nil {
		return Document{}, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}

	return Document{Collection: collection, ID: id, Data: data, UpdatedAt: updatedAt}, nil
}

func (s *PGStore) Query(ctx context.Context, collection string, filters []Filter, orderBy *Order, limit int) ([]Document, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, data, updated_at FROM documents WHERE collection = $1`)
	args := []interface{}{collection}

	for _, f := range filters {
		clause, arg, err := filterClause(f, len(args)+1)
		if err != nil {
			return nil, err
		}
		sb.WriteString(" AND ")
		sb.WriteString(clause)
		args = append(args, arg)
	}

	if orderBy != nil {
		sb.WriteString(fmt.Sprintf(` ORDER BY data->>'%s'`, sqlIdent(orderBy.Field)))
		if orderBy.Desc {
			sb.WriteString(" DESC")
		}
	}
	if limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", limit))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	var results []Document
	for rows.Next() {
		var id string
		var raw []byte
		var updatedAt time.Time
		if err := rows.Scan(&id, &raw, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		data := make(map[string]interface{})
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		results = append(results, Document{Collection: collection, ID: id, Data: data, UpdatedAt: updatedAt})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}

	return results, nil
}

// filterClause renders one filter as SQL over the JSONB data column. Time
// values are stored in a fixed-width UTC encoding, so text comparison is
// chronological; numeric values get a cast.
func filterClause(f Filter, argPos int) (string, interface{}, error) {
	field := sqlIdent(f.Field)

	switch f.Op {
	case OpEqual, OpGreater, OpLess:
		op := string(f.Op)
		if f.Op == OpEqual {
			op = "="
		}
		if _, numeric := asFloat(f.Value); numeric {
			return fmt.Sprintf(`(data->>'%s')::numeric %s $%d`, field, op, argPos), f.Value, nil
		}
		return fmt.Sprintf(`data->>'%s' %s $%d`, field, op, argPos), encodeArg(f.Value), nil
	case OpIn:
		values, ok := f.Value.([]interface{})
		if !ok {
			return "", nil, fmt.Errorf("filter %s: in operator requires a slice", f.Field)
		}
		encoded := make([]string, len(values))
		for i, v := range values {
			encoded[i] = fmt.Sprintf("%v", encodeArg(v))
		}
		return fmt.Sprintf(`data->>'%s' = ANY($%d)`, field, argPos), encoded, nil
	default:
		return "", nil, fmt.Errorf("filter %s: unsupported operator %q", f.Field, f.Op)
	}
}

func encodeArg(v interface{}) interface{} {
	switch val := v.(type) {
	case time.Time:
		return EncodeTime(val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return v
	}
}

// sqlIdent strips characters that would break out of a quoted JSONB path.
// Field names come from code, not users, so this is belt and braces.
func sqlIdent(s string) string {
	return strings.NewReplacer("'", "", `"`, "", ";", "", "\\", "").Replace(s)
}

func (s *PGStore) Subscribe(collection string, filters []Filter, fn ChangeFunc) Subscription {
	return s.subscribers.add(collection, filters, fn)
}

func (s *PGStore) Batch() Batch {
	return &pgBatch{store: s}
}

type pgBatch struct {
	store *PGStore
	ops   []batchOp
	done  bool
}

func (b *pgBatch) Set(doc Document) {
	b.ops = append(b.ops, batchOp{kind: "set", collection: doc.Collection, id: doc.ID, data: doc.Data})
}

func (b *pgBatch) Update(collection, id string, fields map[string]interface{}) {
	b.ops = append(b.ops, batchOp{kind: "update", collection: collection, id: id, data: fields})
}

func (b *pgBatch) Delete(collection, id string) {
	b.ops = append(b.ops, batchOp{kind: "delete", collection: collection, id: id})
}

func (b *pgBatch) Commit(ctx context.Context) error {
	if b.done {
		return fmt.Errorf("batch already committed")
	}
	b.done = true

	tx, err := b.store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	var changed []Document
	removed := make(map[string][]string)

	for _, op := range b.ops {
		switch op.kind {
		case "set":
			data := resolveValues(op.data, now)
			raw, err := json.Marshal(data)
			if err != nil {
				return fmt.Errorf("encode %s/%s: %w", op.collection, op.id, err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO documents (collection, id, data, updated_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (collection, id)
				DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
				op.collection, op.id, raw, now)
			if err != nil {
				return fmt.Errorf("set %s/%s: %w", op.collection, op.id, err)
			}
			changed = append(changed, Document{Collection: op.collection, ID: op.id, Data: data, UpdatedAt: now})

		case "update":
			row := tx.QueryRow(ctx,
				`SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
				op.collection, op.id)
			var raw []byte
			if err := row.Scan(&raw); err != nil {
				if err == pgx.ErrNoRows {
					return fmt.Errorf("update %s/%s: %w", op.collection, op.id, ErrConflict)
				}
				return fmt.Errorf("update %s/%s: %w", op.collection, op.id, err)
			}
			data := make(map[string]interface{})
			if err := json.Unmarshal(raw, &data); err != nil {
				return fmt.Errorf("decode %s/%s: %w", op.collection, op.id, err)
			}
			for k, v := range resolveValues(op.data, now) {
				data[k] = v
			}
			merged, err := json.Marshal(data)
			if err != nil {
				return fmt.Errorf("encode %s/%s: %w", op.collection, op.id, err)
			}
			_, err = tx.Exec(ctx,
				`UPDATE documents SET data = $3, updated_at = $4 WHERE collection = $1 AND id = $2`,
				op.collection, op.id, merged, now)
			if err != nil {
				return fmt.Errorf("update %s/%s: %w", op.collection, op.id, err)
			}
			changed = append(changed, Document{Collection: op.collection, ID: op.id, Data: data, UpdatedAt: now})

		case "delete":
			tag, err := tx.Exec(ctx,
				`DELETE FROM documents WHERE collection = $1 AND id = $2`,
				op.collection, op.id)
			if err != nil {
				return fmt.Errorf("delete %s/%s: %w", op.collection, op.id, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("delete %s/%s: %w", op.collection, op.id, ErrConflict)
			}
			removed[op.collection] = append(removed[op.collection], op.id)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}

	b.store.subscribers.notify(changed, removed)
	return nil
}
