package repository

import (
	"context"
	"database/sql"
	"fmt"

	"pantrypal-api/internal/model"
	"pantrypal-api/pkg/uid"
)

// SQLiteItemRepository implements ItemRepository using SQLite. Documents are
// stored as JSON text next to indexed owner and creation-time columns.
type SQLiteItemRepository struct {
	db *sql.DB
}

// NewSQLiteItemRepository wraps a migrated database.
func NewSQLiteItemRepository(db *sql.DB) *SQLiteItemRepository {
	return &SQLiteItemRepository{db: db}
}

// QueryItems returns the user's documents ordered by createdAt.
func (r *SQLiteItemRepository) QueryItems(ctx context.Context, q model.ItemQuery) ([]model.Document, error) {
	if err := checkQuery(q); err != nil {
		return nil, err
	}

	order := "ASC"
	if q.Descending {
		order = "DESC"
	}
	query := `SELECT id, data FROM items WHERE user_id = ?
		ORDER BY created_at IS NULL, created_at ` + order + `, rowid ` + order

	rows, err := r.db.QueryContext(ctx, query, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		docs = append(docs, decodeDocument(id, []byte(data)))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}
	return docs, nil
}

// CreateItem stores a new document.
func (r *SQLiteItemRepository) CreateItem(ctx context.Context, userID string, fields model.Fields) (string, error) {
	data, err := model.EncodeFields(ownedFields(userID, fields))
	if err != nil {
		return "", fmt.Errorf("failed to encode item: %w", err)
	}

	id := uid.New()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO items (id, user_id, data, created_at) VALUES (?, ?, ?, ?)`,
		id, userID, string(data), createdAtNanos(fields))
	if err != nil {
		return "", fmt.Errorf("failed to insert item: %w", err)
	}
	return id, nil
}

// UpdateItem merges fields into the stored document with json_patch.
func (r *SQLiteItemRepository) UpdateItem(ctx context.Context, userID, id string, fields model.Fields) error {
	fields = withoutOwner(fields)
	patch, err := model.EncodeFields(fields)
	if err != nil {
		return fmt.Errorf("failed to encode update: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE items SET data = json_patch(data, ?), created_at = COALESCE(?, created_at)
		WHERE id = ? AND user_id = ?`,
		string(patch), createdAtNanos(fields), id, userID)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

// DeleteItem removes the user's document.
func (r *SQLiteItemRepository) DeleteItem(ctx context.Context, userID, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

// GetStats returns statistics about the item database.
func (r *SQLiteItemRepository) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var items, owners int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT user_id) FROM items`).Scan(&items, &owners)
	if err != nil {
		return nil, err
	}
	stats["total_items"] = items
	stats["users_with_items"] = owners

	// Database file size (approximate from page count)
	var pageCount, pageSize int64
	r.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	r.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	stats["db_size_bytes"] = pageCount * pageSize

	return stats, nil
}

// Close closes the database connection.
func (r *SQLiteItemRepository) Close() error {
	return r.db.Close()
}

// decodeDocument turns a stored JSON column into a Document. A corrupt
// column becomes a document without data, which normalization discards.
func decodeDocument(id string, data []byte) model.Document {
	fields, err := model.DecodeFields(data)
	if err != nil {
		return model.Document{ID: id}
	}
	return model.Document{ID: id, Data: fields}
}

func createdAtNanos(fields model.Fields) sql.NullInt64 {
	if t, ok := model.AsTime(fields["createdAt"]); ok {
		return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
	}
	return sql.NullInt64{}
}

// Ensure SQLiteItemRepository implements ItemRepository
var _ ItemRepository = (*SQLiteItemRepository)(nil)
