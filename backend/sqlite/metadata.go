package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"time"

	"github.com/google/uuid"
)

type metadata struct {
	mode        fs.FileMode
	size        int64
	modifyTime  time.Time
	contentType string
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// createMetaUnsafe inserts a new node for key and registers it in the B-tree.
// MUST be called while holding the lock.
func (sb *SQLiteBackend) createMetaUnsafe(ctx context.Context, key string, dir bool, mode fs.FileMode) (node, error) {
	n := node{
		id:  uuid.NewString(),
		dir: dir,
	}

	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return node{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO vfs_metadata (id, key, dir, mode, size, modify_time)
		VALUES (?, ?, ?, ?, 0, ?)
	`, n.id, key, boolInt(dir), int64(mode), time.Now().UnixNano()); err != nil {
		return node{}, err
	}

	if !dir {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO vfs_data (id, content) VALUES (?, NULL)", n.id); err != nil {
			return node{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return node{}, err
	}

	sb.keys.Set(key, n)
	return n, nil
}

func (sb *SQLiteBackend) readMeta(ctx context.Context, n node) (*metadata, error) {
	var meta metadata
	var mode, modifyTime int64
	var contentType sql.NullString

	err := sb.db.QueryRowContext(ctx, `
		SELECT mode, size, modify_time, content_type FROM vfs_metadata WHERE id = ?
	`, n.id).Scan(&mode, &meta.size, &modifyTime, &contentType)
	if err != nil {
		return nil, err
	}

	meta.mode = fs.FileMode(mode)
	meta.modifyTime = time.Unix(0, modifyTime)
	if contentType.Valid {
		meta.contentType = contentType.String
	}
	return &meta, nil
}

// readContent returns nil for empty files.
func (sb *SQLiteBackend) readContent(ctx context.Context, n node) ([]byte, error) {
	var content []byte

	err := sb.db.QueryRowContext(ctx,
		"SELECT content FROM vfs_data WHERE id = ?", n.id).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return content, err
}

// writeContent replaces the content of n. Writing to a node that was deleted
// meanwhile changes no rows and is not an error.
func (sb *SQLiteBackend) writeContent(ctx context.Context, n node, content []byte) error {
	tx, err := sb.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"UPDATE vfs_data SET content = ? WHERE id = ?", content, n.id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE vfs_metadata SET size = ?, modify_time = ? WHERE id = ?
	`, len(content), time.Now().UnixNano(), n.id); err != nil {
		return err
	}

	return tx.Commit()
}

func (sb *SQLiteBackend) updateMeta(ctx context.Context, n node, mode *fs.FileMode, contentType *string) error {
	if mode != nil {
		if _, err := sb.db.ExecContext(ctx,
			"UPDATE vfs_metadata SET mode = ? WHERE id = ?", int64(*mode), n.id); err != nil {
			return err
		}
	}

	if contentType != nil {
		if _, err := sb.db.ExecContext(ctx,
			"UPDATE vfs_metadata SET content_type = ? WHERE id = ?", nullString(*contentType), n.id); err != nil {
			return err
		}
	}
	return nil
}

func deleteMeta(ctx context.Context, q querier, n node) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM vfs_data WHERE id = ?", n.id); err != nil {
		return err
	}
	_, err := q.ExecContext(ctx, "DELETE FROM vfs_metadata WHERE id = ?", n.id)
	return err
}

func renameMeta(ctx context.Context, q querier, n node, key string) error {
	_, err := q.ExecContext(ctx, "UPDATE vfs_metadata SET key = ? WHERE id = ?", key, n.id)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
