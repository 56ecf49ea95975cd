package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
)

type collection struct {
	db    *sql.DB
	table string
}

// Insert persists a new document under id.
func (c *collection) Insert(ctx context.Context, id primitive.ObjectID, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s document: %w", c.table, err)
	}
	_, err = c.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %q(id, data) VALUES(?, ?)`, c.table), id.Hex(), string(data))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert %s: %w", c.table, storage.ErrDuplicate)
		}
		return fmt.Errorf("insert %s: %w", c.table, err)
	}
	return nil
}

// Get fetches a single document by id.
func (c *collection) Get(ctx context.Context, id primitive.ObjectID, out any) error {
	var data string
	err := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %q WHERE id = ?`, c.table), id.Hex()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", c.table, err)
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return fmt.Errorf("decode %s document: %w", c.table, err)
	}
	return nil
}

// FindOne fetches the first document matching q.
func (c *collection) FindOne(ctx context.Context, q storage.Query, out any) error {
	if err := q.Validate(); err != nil {
		return err
	}
	where, args := whereClause(q)
	stmt := fmt.Sprintf(`SELECT data FROM %q WHERE %s%s LIMIT 1`, c.table, where, orderClause(q))

	var data string
	err := c.db.QueryRowContext(ctx, stmt, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find %s: %w", c.table, err)
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return fmt.Errorf("decode %s document: %w", c.table, err)
	}
	return nil
}

// Find fetches every document matching q into the slice out points to.
func (c *collection) Find(ctx context.Context, q storage.Query, out any) error {
	if err := q.Validate(); err != nil {
		return err
	}
	where, args := whereClause(q)
	limit, limitArgs := limitClause(q)
	stmt := fmt.Sprintf(`SELECT data FROM %q WHERE %s%s%s`, c.table, where, orderClause(q), limit)

	rows, err := c.db.QueryContext(ctx, stmt, append(args, limitArgs...)...)
	if err != nil {
		return fmt.Errorf("list %s: %w", c.table, err)
	}
	defer rows.Close()

	var docs []string
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return fmt.Errorf("scan %s: %w", c.table, err)
		}
		docs = append(docs, data)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list %s: %w", c.table, err)
	}

	// Documents are stored as JSON already; joining them yields the array.
	if err := json.Unmarshal([]byte("["+strings.Join(docs, ",")+"]"), out); err != nil {
		return fmt.Errorf("decode %s documents: %w", c.table, err)
	}
	return nil
}

// Count returns the number of documents matching q, ignoring paging.
func (c *collection) Count(ctx context.Context, q storage.Query) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	where, args := whereClause(q)
	var n int64
	err := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q WHERE %s`, c.table, where), args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.table, err)
	}
	return n, nil
}

// Replace overwrites the stored document.
func (c *collection) Replace(ctx context.Context, id primitive.ObjectID, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s document: %w", c.table, err)
	}
	res, err := c.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %q SET data = ? WHERE id = ?`, c.table), string(data), id.Hex())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update %s: %w", c.table, storage.ErrDuplicate)
		}
		return fmt.Errorf("update %s: %w", c.table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Delete removes a document by id.
func (c *collection) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := c.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, c.table), id.Hex())
	if err != nil {
		return fmt.Errorf("delete %s: %w", c.table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteMany removes every document matching q.
func (c *collection) DeleteMany(ctx context.Context, q storage.Query) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	where, args := whereClause(q)
	res, err := c.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q WHERE %s`, c.table, where), args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", c.table, err)
	}
	return res.RowsAffected()
}

// Pull removes value from the array field of matching documents.
func (c *collection) Pull(ctx context.Context, q storage.Query, field string, value any) (int64, error) {
	if err := storage.ValidateField(field); err != nil {
		return 0, err
	}
	q = q.And(storage.AnyIn(field, value))
	if err := q.Validate(); err != nil {
		return 0, err
	}
	where, args := whereClause(q)
	path := "$." + field
	stmt := fmt.Sprintf(`UPDATE %q SET data = json_set(data, ?, json((
            SELECT json_group_array(value) FROM json_each(data, ?) WHERE value IS NOT ?
        ))) WHERE %s`, c.table, where)

	res, err := c.db.ExecContext(ctx, stmt, append([]any{path, path, sqlValue(value)}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("pull %s.%s: %w", c.table, field, err)
	}
	return res.RowsAffected()
}

// Set assigns value to field on matching documents.
func (c *collection) Set(ctx context.Context, q storage.Query, field string, value any) (int64, error) {
	if err := storage.ValidateField(field); err != nil {
		return 0, err
	}
	if err := q.Validate(); err != nil {
		return 0, err
	}
	encoded, err := jsonValue(value)
	if err != nil {
		return 0, err
	}
	where, args := whereClause(q)
	stmt := fmt.Sprintf(`UPDATE %q SET data = json_set(data, ?, json(?)) WHERE %s`, c.table, where)

	res, err := c.db.ExecContext(ctx, stmt, append([]any{"$." + field, encoded}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("set %s.%s: %w", c.table, field, err)
	}
	return res.RowsAffected()
}
